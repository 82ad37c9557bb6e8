package cs104

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/arloliu/go-iec104/logger"
	"golang.org/x/time/rate"
)

// DefaultPort is the registered TCP port of IEC 60870-5-104.
const DefaultPort = 2404

// ListenFunc creates the listener of a server.
type ListenFunc func(ctx context.Context, address string) (net.Listener, error)

// ServerConfig represents the configuration parameters of a Server.
type ServerConfig struct {
	// address is the host:port the server listens on.
	address string

	// maxConnections limits the number of live connections. 0 means unlimited.
	maxConnections int

	// allowList holds the remote address prefixes permitted to connect. Empty means all.
	allowList []netip.Prefix

	// listen creates the listener. Defaults to a TCP listener from net.ListenConfig.
	listen ListenFunc

	// acceptLimit and acceptBurst throttle the accept loop. Disabled by default.
	acceptLimit rate.Limit
	acceptBurst int

	connOpts []ConnOption
	connCfg  *ConnectionConfig

	logger logger.Logger
}

// NewServerConfig creates a server configuration listening on address with default
// values and applies opts. An empty host listens on all interfaces.
func NewServerConfig(address string, opts ...ServerOption) (*ServerConfig, error) {
	cfg := &ServerConfig{
		listen: defaultListen,
		logger: logger.GetLogger(),
	}

	if err := withAddress(address).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	connCfg, err := NewConnectionConfig(cfg.connOpts...)
	if err != nil {
		return cfg, fmt.Errorf("connection options: %w", err)
	}
	cfg.connCfg = connCfg

	return cfg, nil
}

func defaultListen(ctx context.Context, address string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", address)
}

// Address returns the configured listen address.
func (cfg *ServerConfig) Address() string { return cfg.address }

// MaxConnections returns the connection limit, 0 when unlimited.
func (cfg *ServerConfig) MaxConnections() int { return cfg.maxConnections }

// ConnectionConfig returns the configuration applied to accepted connections.
func (cfg *ServerConfig) ConnectionConfig() *ConnectionConfig { return cfg.connCfg }

// allowed reports whether the remote address may connect.
func (cfg *ServerConfig) allowed(addr net.Addr) bool {
	if len(cfg.allowList) == 0 {
		return true
	}

	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return false
	}
	ip := ap.Addr().Unmap()
	for _, prefix := range cfg.allowList {
		if prefix.Contains(ip) {
			return true
		}
	}

	return false
}

// ServerOption represents a functional option for configuring a ServerConfig.
type ServerOption interface {
	apply(*ServerConfig) error
}

type serverOptFunc struct {
	name      string
	applyFunc func(*ServerConfig) error
}

func (s *serverOptFunc) apply(cfg *ServerConfig) error {
	if cfg == nil {
		return ErrServerConfigNil
	}

	return s.applyFunc(cfg)
}

func newServerOptFunc(name string, f func(*ServerConfig) error) *serverOptFunc {
	return &serverOptFunc{name: name, applyFunc: f}
}

// withAddress validates and sets the listen address.
func withAddress(address string) ServerOption {
	return newServerOptFunc("withAddress", func(cfg *ServerConfig) error {
		host, portStr, err := net.SplitHostPort(address)
		if err != nil {
			return errors.New("invalid address")
		}

		port, err := strconv.Atoi(portStr)
		if err != nil || port < 0 || port > 65535 {
			return errors.New("port is out of range [0, 65535]")
		}

		if strings.ContainsAny(host, " \t/") {
			return errors.New("invalid host")
		}
		cfg.address = net.JoinHostPort(host, strconv.Itoa(port))

		return nil
	})
}

// WithMaxConnections limits the number of live connections, in range [0, 65535].
// Connections beyond the limit are closed before any protocol byte is exchanged.
//
// The default value is 0 (unlimited).
func WithMaxConnections(n int) ServerOption {
	return newServerOptFunc("WithMaxConnections", func(cfg *ServerConfig) error {
		if n < 0 || n > 65535 {
			return errors.New("max connections out of range [0, 65535]")
		}
		cfg.maxConnections = n

		return nil
	})
}

// WithAllowList restricts the remote addresses allowed to connect. Each entry is an IP
// address or a CIDR prefix. Connections from other addresses are closed before any
// protocol byte is exchanged.
func WithAllowList(entries ...string) ServerOption {
	return newServerOptFunc("WithAllowList", func(cfg *ServerConfig) error {
		for _, entry := range entries {
			prefix, err := parseAllowEntry(entry)
			if err != nil {
				return err
			}
			cfg.allowList = append(cfg.allowList, prefix)
		}

		return nil
	})
}

func parseAllowEntry(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid allow list entry %q", entry)
		}

		return prefix.Masked(), nil
	}

	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid allow list entry %q", entry)
	}
	addr = addr.Unmap()

	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// WithListener replaces the function creating the server listener, e.g. to serve TLS
// or a pre-bound socket.
func WithListener(fn ListenFunc) ServerOption {
	return newServerOptFunc("WithListener", func(cfg *ServerConfig) error {
		if fn == nil {
			return errors.New("listen func is nil")
		}
		cfg.listen = fn

		return nil
	})
}

// WithAcceptRate throttles the accept loop to perSecond connections with the given burst.
func WithAcceptRate(perSecond float64, burst int) ServerOption {
	return newServerOptFunc("WithAcceptRate", func(cfg *ServerConfig) error {
		if perSecond <= 0 {
			return errors.New("accept rate must be positive")
		}
		if burst < 1 {
			return errors.New("accept burst out of range [1, inf)")
		}
		cfg.acceptLimit = rate.Limit(perSecond)
		cfg.acceptBurst = burst

		return nil
	})
}

// WithConnOptions sets the options applied to every accepted connection.
func WithConnOptions(opts ...ConnOption) ServerOption {
	return newServerOptFunc("WithConnOptions", func(cfg *ServerConfig) error {
		cfg.connOpts = append(cfg.connOpts, opts...)
		return nil
	})
}

// WithServerLogger sets the logger of the server. Accepted connections use it too unless
// WithConnOptions supplies WithLogger.
func WithServerLogger(l logger.Logger) ServerOption {
	return newServerOptFunc("WithServerLogger", func(cfg *ServerConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l
		cfg.connOpts = append([]ConnOption{WithLogger(l)}, cfg.connOpts...)

		return nil
	})
}
