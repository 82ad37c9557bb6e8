package cs104

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-iec104/apci"
	"github.com/arloliu/go-iec104/asdu"
	"github.com/arloliu/go-iec104/logger"
)

// WindowPolicy selects what Send does while k I frames are unacknowledged.
type WindowPolicy uint8

const (
	// WindowBlock makes Send wait until the peer acknowledges, the context is done or
	// the connection closes.
	WindowBlock WindowPolicy = iota
	// WindowFailFast makes Send return apci.ErrWindowFull immediately.
	WindowFailFast
)

func (p WindowPolicy) String() string {
	switch p {
	case WindowBlock:
		return "block"
	case WindowFailFast:
		return "fail_fast"
	default:
		return "unknown"
	}
}

// ConnectionConfig represents the configuration parameters of an IEC 60870-5-104 connection.
type ConnectionConfig struct {
	// k is the maximum number of unacknowledged I frames sent.
	// Defaults to 12.
	k int
	// w is the number of received I frames after which an acknowledgment is sent.
	// Defaults to 8.
	w int

	// t0Timeout is the connection establishment timeout used by Dial.
	// Defaults to 30 seconds.
	t0Timeout time.Duration
	// t1Timeout is the timeout for the acknowledgment of sent I frames and U requests.
	// Defaults to 15 seconds.
	t1Timeout time.Duration
	// t2Timeout is the acknowledgment delay for received I frames. It must be shorter than t1.
	// Defaults to 10 seconds.
	t2Timeout time.Duration
	// t3Timeout is the idle time after which a TESTFR request is sent.
	// Defaults to 20 seconds.
	t3Timeout time.Duration

	// fragmentTimeout bounds the time between the start byte and the last byte of a frame.
	// Defaults to 5 seconds.
	fragmentTimeout time.Duration

	// closeTimeout bounds the wait for the connection goroutines when a server shuts down.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	params       asdu.Params
	windowPolicy WindowPolicy
	extensions   []asdu.Extension

	// eventQueueSize enables buffered delivery through Connection.Events when positive.
	eventQueueSize int

	// responseTimeout enables waiting for command confirmations when positive.
	responseTimeout time.Duration

	// originator is the originator address written into units built by the command helpers.
	originator uint8

	logger logger.Logger
}

// NewConnectionConfig creates a connection configuration with default values and applies opts.
//
// Returns the configuration and an error if an option is invalid, w exceeds k, or t2 is
// not shorter than t1.
func NewConnectionConfig(opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		k:               apci.DefaultK,
		w:               apci.DefaultW,
		t0Timeout:       apci.DefaultT0,
		t1Timeout:       apci.DefaultT1,
		t2Timeout:       apci.DefaultT2,
		t3Timeout:       apci.DefaultT3,
		fragmentTimeout: 5 * time.Second,
		closeTimeout:    3 * time.Second,
		params:          asdu.DefaultParams,
		windowPolicy:    WindowBlock,
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (cfg *ConnectionConfig) validate() error {
	if cfg.w > cfg.k {
		return fmt.Errorf("w %d must not exceed k %d", cfg.w, cfg.k)
	}
	if cfg.t2Timeout >= cfg.t1Timeout {
		return errors.New("t2 timeout must be shorter than t1 timeout")
	}

	return nil
}

func (cfg *ConnectionConfig) K() int                         { return cfg.k }
func (cfg *ConnectionConfig) W() int                         { return cfg.w }
func (cfg *ConnectionConfig) T0Timeout() time.Duration       { return cfg.t0Timeout }
func (cfg *ConnectionConfig) T1Timeout() time.Duration       { return cfg.t1Timeout }
func (cfg *ConnectionConfig) T2Timeout() time.Duration       { return cfg.t2Timeout }
func (cfg *ConnectionConfig) T3Timeout() time.Duration       { return cfg.t3Timeout }
func (cfg *ConnectionConfig) Params() asdu.Params            { return cfg.params }
func (cfg *ConnectionConfig) WindowPolicy() WindowPolicy     { return cfg.windowPolicy }
func (cfg *ConnectionConfig) ResponseTimeout() time.Duration { return cfg.responseTimeout }

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return ErrConnConfigNil
	}

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// WithK sets the maximum number of unacknowledged I frames sent, in range [1, 32767].
//
// The default value is 12.
func WithK(k int) ConnOption {
	return newConnOptFunc("WithK", func(cfg *ConnectionConfig) error {
		if k < 1 || k > apci.MaxWindow {
			return fmt.Errorf("k out of range [1, %d]", apci.MaxWindow)
		}
		cfg.k = k

		return nil
	})
}

// WithW sets the number of received I frames after which an S frame is sent, in
// range [1, 32767]. It must not exceed k.
//
// The default value is 8.
func WithW(w int) ConnOption {
	return newConnOptFunc("WithW", func(cfg *ConnectionConfig) error {
		if w < 1 || w > apci.MaxWindow {
			return fmt.Errorf("w out of range [1, %d]", apci.MaxWindow)
		}
		cfg.w = w

		return nil
	})
}

// WithT0Timeout sets the connection establishment timeout used by Dial.
// An error is returned if the timeout is outside the valid range (1-255 seconds).
//
// The default value is 30 seconds.
func WithT0Timeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithT0Timeout", func(cfg *ConnectionConfig) error {
		if val < 1*time.Second || val > 255*time.Second {
			return errors.New("t0 timeout out of range [1, 255]")
		}
		cfg.t0Timeout = val

		return nil
	})
}

// WithT1Timeout sets the timeout for the acknowledgment of sent I frames and U requests.
// An error is returned if the timeout is outside the valid range (0.01-255 seconds).
//
// The default value is 15 seconds.
func WithT1Timeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithT1Timeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 255*time.Second {
			return errors.New("t1 timeout out of range [0.01, 255]")
		}
		cfg.t1Timeout = val

		return nil
	})
}

// WithT2Timeout sets the acknowledgment delay for received I frames.
// An error is returned if the timeout is outside the valid range (0.01-255 seconds).
//
// The default value is 10 seconds.
func WithT2Timeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithT2Timeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 255*time.Second {
			return errors.New("t2 timeout out of range [0.01, 255]")
		}
		cfg.t2Timeout = val

		return nil
	})
}

// WithT3Timeout sets the idle time after which a TESTFR request is sent.
// An error is returned if the timeout is outside the valid range (0.01-172800 seconds).
//
// The default value is 20 seconds.
func WithT3Timeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithT3Timeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 48*time.Hour {
			return errors.New("t3 timeout out of range [0.01, 172800]")
		}
		cfg.t3Timeout = val

		return nil
	})
}

// WithFragmentTimeout sets the time allowed between the start byte and the last byte of
// a frame. An error is returned if the timeout is outside the valid range (0.01-255 seconds).
//
// The default value is 5 seconds.
func WithFragmentTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithFragmentTimeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 255*time.Second {
			return errors.New("fragment timeout out of range [0.01, 255]")
		}
		cfg.fragmentTimeout = val

		return nil
	})
}

// WithCloseTimeout sets how long a shutting down server waits for the goroutines of the
// connection. An error is returned if the timeout is outside the valid range (0.01-30 seconds).
//
// The default value is 3 seconds.
func WithCloseTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithCloseTimeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 30*time.Second {
			return errors.New("close timeout out of range [0.01, 30]")
		}
		cfg.closeTimeout = val

		return nil
	})
}

// WithParams sets the widths of the cause of transmission, common address and
// information object address fields.
//
// The default is asdu.DefaultParams.
func WithParams(p asdu.Params) ConnOption {
	return newConnOptFunc("WithParams", func(cfg *ConnectionConfig) error {
		if err := p.Valid(); err != nil {
			return err
		}
		cfg.params = p

		return nil
	})
}

// WithWindowPolicy selects the behavior of Send while the send window is full.
//
// The default is WindowBlock.
func WithWindowPolicy(p WindowPolicy) ConnOption {
	return newConnOptFunc("WithWindowPolicy", func(cfg *ConnectionConfig) error {
		if p != WindowBlock && p != WindowFailFast {
			return fmt.Errorf("unknown window policy %d", p)
		}
		cfg.windowPolicy = p

		return nil
	})
}

// WithEventQueue enables buffered delivery: every unit, link state change and the final
// close are published in order to Connection.Events, a channel of the given size.
// Handlers are still invoked. A size of 0 disables the queue.
func WithEventQueue(size int) ConnOption {
	return newConnOptFunc("WithEventQueue", func(cfg *ConnectionConfig) error {
		if size < 0 || size > 65536 {
			return errors.New("event queue size out of range [0, 65536]")
		}
		cfg.eventQueueSize = size

		return nil
	})
}

// WithExtensions supplies decoders for private type identifications. Claims are
// resolved once when the connection is built.
func WithExtensions(exts ...asdu.Extension) ConnOption {
	return newConnOptFunc("WithExtensions", func(cfg *ConnectionConfig) error {
		cfg.extensions = append(cfg.extensions, exts...)
		return nil
	})
}

// WithWaitConfirmation makes the command helpers of Connection wait up to timeout for
// the peer's activation or deactivation confirmation. A timeout of 0 disables waiting.
func WithWaitConfirmation(timeout time.Duration) ConnOption {
	return newConnOptFunc("WithWaitConfirmation", func(cfg *ConnectionConfig) error {
		if timeout < 0 || timeout > time.Hour {
			return errors.New("response timeout out of range [0, 3600]")
		}
		cfg.responseTimeout = timeout

		return nil
	})
}

// WithOriginator sets the originator address of units built by the command helpers.
// It is only transmitted with a two octet cause of transmission.
func WithOriginator(addr uint8) ConnOption {
	return newConnOptFunc("WithOriginator", func(cfg *ConnectionConfig) error {
		cfg.originator = addr
		return nil
	})
}

// WithLogger sets the logger of the connection.
//
// The default is the package default logger.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
