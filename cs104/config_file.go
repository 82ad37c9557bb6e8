package cs104

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-iec104/asdu"
)

// FileConfig is the YAML representation of a server and its connections.
//
// Example:
//
//	connection:
//	  k: 12
//	  w: 8
//	  t1: 15s
//	  t2: 10s
//	  t3: 20s
//	  window_policy: block
//	server:
//	  address: ":2404"
//	  max_connections: 8
//	  allow_list: ["10.0.0.0/8"]
type FileConfig struct {
	Connection ConnectionFileConfig `yaml:"connection"`
	Server     ServerFileConfig     `yaml:"server"`
}

// ConnectionFileConfig holds the connection settings of a FileConfig. Zero values keep
// the defaults.
type ConnectionFileConfig struct {
	K                int           `yaml:"k"`
	W                int           `yaml:"w"`
	T0               time.Duration `yaml:"t0"`
	T1               time.Duration `yaml:"t1"`
	T2               time.Duration `yaml:"t2"`
	T3               time.Duration `yaml:"t3"`
	FragmentTimeout  time.Duration `yaml:"fragment_timeout"`
	CloseTimeout     time.Duration `yaml:"close_timeout"`
	CauseSize        int           `yaml:"cause_size"`
	CommonAddrSize   int           `yaml:"common_addr_size"`
	IOASize          int           `yaml:"ioa_size"`
	WindowPolicy     string        `yaml:"window_policy"`
	EventQueue       int           `yaml:"event_queue"`
	WaitConfirmation time.Duration `yaml:"wait_confirmation"`
	Originator       uint8         `yaml:"originator"`
}

// ServerFileConfig holds the server settings of a FileConfig.
type ServerFileConfig struct {
	Address        string   `yaml:"address"`
	MaxConnections int      `yaml:"max_connections"`
	AllowList      []string `yaml:"allow_list"`
	AcceptRate     float64  `yaml:"accept_rate"`
	AcceptBurst    int      `yaml:"accept_burst"`
}

// LoadConfigFile reads and parses the YAML configuration file at path.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

// ParseConfig parses a YAML configuration. Unknown fields are rejected.
func ParseConfig(data []byte) (*FileConfig, error) {
	cfg := &FileConfig{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// ConnOptions converts the connection section into connection options.
func (fc *FileConfig) ConnOptions() ([]ConnOption, error) {
	c := fc.Connection
	var opts []ConnOption

	if c.K != 0 {
		opts = append(opts, WithK(c.K))
	}
	if c.W != 0 {
		opts = append(opts, WithW(c.W))
	}
	if c.T0 != 0 {
		opts = append(opts, WithT0Timeout(c.T0))
	}
	if c.T1 != 0 {
		opts = append(opts, WithT1Timeout(c.T1))
	}
	if c.T2 != 0 {
		opts = append(opts, WithT2Timeout(c.T2))
	}
	if c.T3 != 0 {
		opts = append(opts, WithT3Timeout(c.T3))
	}
	if c.FragmentTimeout != 0 {
		opts = append(opts, WithFragmentTimeout(c.FragmentTimeout))
	}
	if c.CloseTimeout != 0 {
		opts = append(opts, WithCloseTimeout(c.CloseTimeout))
	}

	if c.CauseSize != 0 || c.CommonAddrSize != 0 || c.IOASize != 0 {
		p := asdu.DefaultParams
		if c.CauseSize != 0 {
			p.CauseSize = c.CauseSize
		}
		if c.CommonAddrSize != 0 {
			p.CommonAddrSize = c.CommonAddrSize
		}
		if c.IOASize != 0 {
			p.IOASize = c.IOASize
		}
		opts = append(opts, WithParams(p))
	}

	switch c.WindowPolicy {
	case "", WindowBlock.String():
	case WindowFailFast.String():
		opts = append(opts, WithWindowPolicy(WindowFailFast))
	default:
		return nil, fmt.Errorf("unknown window policy %q", c.WindowPolicy)
	}

	if c.EventQueue != 0 {
		opts = append(opts, WithEventQueue(c.EventQueue))
	}
	if c.WaitConfirmation != 0 {
		opts = append(opts, WithWaitConfirmation(c.WaitConfirmation))
	}
	if c.Originator != 0 {
		opts = append(opts, WithOriginator(c.Originator))
	}

	return opts, nil
}

// ConnectionConfig builds the connection configuration of the connection section.
func (fc *FileConfig) ConnectionConfig() (*ConnectionConfig, error) {
	opts, err := fc.ConnOptions()
	if err != nil {
		return nil, err
	}

	return NewConnectionConfig(opts...)
}

// ServerOptions converts the server section into server options. The connection
// section is included with WithConnOptions.
func (fc *FileConfig) ServerOptions() ([]ServerOption, error) {
	connOpts, err := fc.ConnOptions()
	if err != nil {
		return nil, err
	}

	s := fc.Server
	opts := []ServerOption{WithConnOptions(connOpts...)}

	if s.MaxConnections != 0 {
		opts = append(opts, WithMaxConnections(s.MaxConnections))
	}
	if len(s.AllowList) > 0 {
		opts = append(opts, WithAllowList(s.AllowList...))
	}
	if s.AcceptRate != 0 {
		burst := s.AcceptBurst
		if burst == 0 {
			burst = 1
		}
		opts = append(opts, WithAcceptRate(s.AcceptRate, burst))
	}

	return opts, nil
}

// ServerConfig builds the server configuration of the file. The address defaults to
// all interfaces on DefaultPort.
func (fc *FileConfig) ServerConfig() (*ServerConfig, error) {
	opts, err := fc.ServerOptions()
	if err != nil {
		return nil, err
	}

	address := fc.Server.Address
	if address == "" {
		address = fmt.Sprintf(":%d", DefaultPort)
	}

	return NewServerConfig(address, opts...)
}
