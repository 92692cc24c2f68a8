package hardware

// Channel names shared by the hardware layer, the controller and the config.
const (
	ChannelRed              = "red"
	ChannelYellow           = "yellow"
	ChannelGreen            = "green"
	ChannelButtonMode       = "button_mode"
	ChannelButtonPedestrian = "button_pedestrian"
)

// Bias values accepted for input lines.
const (
	BiasNone     = ""
	BiasDisabled = "disabled"
	BiasPullUp   = "pull-up"
	BiasPullDown = "pull-down"
)

const consumerName = "traffic-service"

// LineConfig describes one GPIO line claimed by the service.
type LineConfig struct {
	Name      string
	Chip      string
	Line      int
	Output    bool
	ActiveLow bool
	Bias      string
}

// LightChannels lists the signal head outputs in red, yellow, green order.
var LightChannels = [3]string{ChannelRed, ChannelYellow, ChannelGreen}
