package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"traffic-service/internal/config"
	"traffic-service/internal/control"
	"traffic-service/internal/core"
	"traffic-service/internal/hardware"
	"traffic-service/internal/logger"
	"traffic-service/internal/messaging"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	logLevel := flag.Int("log", -1, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG); overrides log_level")
	redisHost := flag.String("redis-host", "", "Redis host; overrides the config file")
	redisPort := flag.Int("redis-port", 0, "Redis port; overrides the config file")
	noRedis := flag.Bool("no-redis", false, "Run without the Redis control transport")
	simulate := flag.Bool("simulate", false, "Use in-memory GPIO instead of the GPIO character device")
	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.New(os.Stderr, "", 0).Fatalf("FATAL: %v", err)
	}

	level, ok := logger.ParseLevel(cfg.LogLevel)
	if *logLevel >= 0 {
		level, ok = logger.LogLevel(*logLevel), true
	}
	l := logger.NewLogger(stdLogger, level)
	if !ok {
		l.Warnf("Unknown log_level %q, using info", cfg.LogLevel)
	}

	if *redisHost != "" {
		cfg.Redis.Host = *redisHost
	}
	if *redisPort != 0 {
		cfg.Redis.Port = *redisPort
	}
	if *noRedis {
		cfg.Redis.Host = ""
	}

	l.Infof("Starting traffic service...")

	lines := cfg.Pins.Lines()
	var hw core.HardwareIO
	var sim *hardware.SimulatedIO
	if *simulate {
		sim = hardware.NewSimulatedIO(lines, l)
		hw = sim
	} else {
		gpio := hardware.NewLinuxHardwareIO(lines, cfg.Timing.Debounce, l)
		// Request green already lit so startup does not blink all-off.
		gpio.SetInitialValue(hardware.ChannelGreen, true)
		hw = gpio
	}

	opts := core.Options{
		BaseUnit: cfg.Timing.BaseUnit,
		Cycle:    cfg.Timing.Cycle(),
	}

	// The surface is bound after the system exists; the Redis callbacks only
	// fire once StartListening runs.
	var surface *control.Surface
	var redisClient *messaging.RedisClient
	if cfg.Redis.Host != "" {
		callbacks := messaging.Callbacks{
			RateCallback: func(value string) error {
				return surface.WriteRate(value)
			},
		}
		if sim != nil {
			callbacks.ButtonCallback = func(button string, pressed bool) error {
				return sim.SetInput(simButtonChannel(button), pressed)
			}
		}
		redisClient = messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, l, callbacks)
		if err := redisClient.Connect(); err != nil {
			l.Fatalf("Failed to connect to Redis: %v", err)
		}
		opts.Publisher = redisClient
	}

	system := core.NewTrafficSystem(hw, opts, l)
	surface = control.NewSurface(system, l)

	if err := system.Start(); err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		l.Fatalf("Failed to start system: %v", err)
	}

	if redisClient != nil {
		if err := redisClient.StartListening(); err != nil {
			l.Fatalf("Failed to start Redis listeners: %v", err)
		}
	}

	l.Infof("System started successfully")
	l.Debugf("Initial status:\n%s", readStatus(surface))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	var transport io.Closer
	if redisClient != nil {
		transport = redisClient
	}
	stopServices(system, transport)
	l.Infof("Shutdown complete")
}

// stopServices stops the controller before closing the transport; the
// controller's publisher may still be writing to it until Shutdown returns.
func stopServices(system interface{ Shutdown() }, transport io.Closer) {
	system.Shutdown()
	if transport != nil {
		transport.Close()
	}
}

func simButtonChannel(button string) string {
	if button == "a" {
		return hardware.ChannelButtonMode
	}
	return hardware.ChannelButtonPedestrian
}

func readStatus(s *control.Surface) string {
	h, _ := s.Open()
	defer h.Close()
	buf := make([]byte, control.StatusBufferSize)
	n, err := h.Read(buf)
	if err != nil {
		return fmt.Sprintf("status unavailable: %v", err)
	}
	return string(buf[:n])
}
