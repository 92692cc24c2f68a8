package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"traffic-service/internal/control"
	"traffic-service/internal/logger"
	"traffic-service/internal/types"
)

const (
	statusHash    = "traffic"
	statusChannel = "traffic"
	faultStream   = "events:faults"
	faultGroup    = "traffic"

	rateCommandKey   = "traffic:rate"
	buttonCommandKey = "traffic:button"

	faultStreamMaxLen = 1000
	brpopTimeout      = 5 * time.Second
)

type Callbacks struct {
	RateCallback   func(string) error       // raw text, forwarded to the control surface
	ButtonCallback func(string, bool) error // "a"/"b", pressed; only in simulation
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	instance  string
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l.WithTag("Redis"),
		instance:  uuid.NewString(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Instance identifies this process in published status and fault events.
func (r *RedisClient) Instance() string {
	return r.instance
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Connected to Redis, instance %s", r.instance)
	return nil
}

// StartListening starts the list command listeners. Call after the controller
// has started.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	if r.callbacks.RateCallback != nil {
		r.wg.Add(1)
		go r.listCommandListener(rateCommandKey, r.handleRateCommand)
	}
	if r.callbacks.ButtonCallback != nil {
		r.wg.Add(1)
		go r.listCommandListener(buttonCommandKey, r.handleButtonCommand)
	}
	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
		}

		// Short BRPOP timeout so cancellation is noticed.
		result, err := r.client.BRPop(r.ctx, brpopTimeout, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				r.logger.Infof("Context cancelled, exiting %s listener", key)
				return
			}
			r.logger.Warnf("Error reading from %s list: %v", key, err)
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if len(result) >= 2 { // BRPOP returns [key, value]
			value := result[1]
			r.logger.Debugf("Received command from %s: %s", key, value)
			if err := handler(value); err != nil {
				r.logger.Warnf("Error handling %s command: %v", key, err)
			}
		}
	}
}

func (r *RedisClient) handleRateCommand(value string) error {
	return r.callbacks.RateCallback(value)
}

func (r *RedisClient) handleButtonCommand(value string) error {
	button, pressed, err := ParseButtonCommand(value)
	if err != nil {
		return err
	}
	return r.callbacks.ButtonCallback(button, pressed)
}

// ParseButtonCommand parses "<a|b>:<press|release>".
func ParseButtonCommand(value string) (string, bool, error) {
	button, action, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return "", false, fmt.Errorf("invalid button command: %s", value)
	}
	switch button {
	case "a", "b":
	default:
		return "", false, fmt.Errorf("invalid button %q in command: %s", button, value)
	}
	switch action {
	case "press":
		return button, true, nil
	case "release":
		return button, false, nil
	default:
		return "", false, fmt.Errorf("invalid button action %q in command: %s", action, value)
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// statusFields flattens a snapshot into the traffic hash.
func (r *RedisClient) statusFields(st types.Status) map[string]interface{} {
	pedestrian := "absent"
	if st.Pedestrian {
		pedestrian = "present"
	}
	var deadline int64
	if !st.Deadline.IsZero() {
		deadline = st.Deadline.UnixMilli()
	}
	return map[string]interface{}{
		"mode":       st.Mode.String(),
		"color":      st.Color.String(),
		"rate":       st.Rate,
		"red":        onOff(st.Lights.Red),
		"yellow":     onOff(st.Lights.Yellow),
		"green":      onOff(st.Lights.Green),
		"pedestrian": pedestrian,
		"deadline":   deadline,
		"status":     control.FormatStatus(st),
		"instance":   r.instance,
		"timestamp":  time.Now().Format(time.RFC3339),
	}
}

// PublishStatus atomically updates the traffic hash and announces the change.
func (r *RedisClient) PublishStatus(st types.Status) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, statusHash, r.statusFields(st))
	pipe.Publish(r.ctx, statusChannel, "status")
	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	r.logger.Debugf("Published status: mode=%s color=%s rate=%d", st.Mode, st.Color, st.Rate)
	return nil
}

// ReportFault appends a fault event to the shared fault stream.
func (r *RedisClient) ReportFault(code int, description string) error {
	r.logger.Infof("Reporting fault: code=%d, description=%s", code, description)

	pipe := r.client.Pipeline()
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: faultStream,
		MaxLen: faultStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"group":       faultGroup,
			"code":        code,
			"description": description,
			"instance":    r.instance,
			"ts":          time.Now().Unix(),
		},
	})
	pipe.Publish(r.ctx, statusChannel, "fault")
	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to report fault %d: %w", code, err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(brpopTimeout):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
