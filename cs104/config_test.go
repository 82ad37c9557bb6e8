package cs104

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-iec104/apci"
	"github.com/arloliu/go-iec104/asdu"
)

func TestNewConnectionConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConnectionConfig()
	require.NoError(err)
	require.Equal(12, cfg.K())
	require.Equal(8, cfg.W())
	require.Equal(30*time.Second, cfg.T0Timeout())
	require.Equal(15*time.Second, cfg.T1Timeout())
	require.Equal(10*time.Second, cfg.T2Timeout())
	require.Equal(20*time.Second, cfg.T3Timeout())
	require.Equal(asdu.DefaultParams, cfg.Params())
	require.Equal(WindowBlock, cfg.WindowPolicy())
	require.Zero(cfg.ResponseTimeout())
}

func TestNewConnectionConfig_Options(t *testing.T) {
	tests := []struct {
		desc  string
		opts  []ConnOption
		isErr bool
	}{
		{desc: "k and w", opts: []ConnOption{WithK(20), WithW(10)}},
		{desc: "k too small", opts: []ConnOption{WithK(0)}, isErr: true},
		{desc: "k too large", opts: []ConnOption{WithK(apci.MaxWindow + 1)}, isErr: true},
		{desc: "w too small", opts: []ConnOption{WithW(0)}, isErr: true},
		{desc: "w exceeds k", opts: []ConnOption{WithK(4), WithW(5)}, isErr: true},
		{desc: "w equals k", opts: []ConnOption{WithK(4), WithW(4)}},
		{desc: "t0 too short", opts: []ConnOption{WithT0Timeout(500 * time.Millisecond)}, isErr: true},
		{desc: "t0 too long", opts: []ConnOption{WithT0Timeout(256 * time.Second)}, isErr: true},
		{desc: "t1 too short", opts: []ConnOption{WithT1Timeout(time.Millisecond)}, isErr: true},
		{desc: "t2 equals t1", opts: []ConnOption{WithT1Timeout(5 * time.Second), WithT2Timeout(5 * time.Second)}, isErr: true},
		{desc: "t2 below t1", opts: []ConnOption{WithT1Timeout(5 * time.Second), WithT2Timeout(4 * time.Second)}},
		{desc: "t3 long", opts: []ConnOption{WithT3Timeout(48 * time.Hour)}},
		{desc: "t3 too long", opts: []ConnOption{WithT3Timeout(49 * time.Hour)}, isErr: true},
		{desc: "fragment timeout", opts: []ConnOption{WithFragmentTimeout(0)}, isErr: true},
		{desc: "close timeout", opts: []ConnOption{WithCloseTimeout(time.Minute)}, isErr: true},
		{desc: "params", opts: []ConnOption{WithParams(asdu.Params{CauseSize: 1, CommonAddrSize: 1, IOASize: 1})}},
		{desc: "bad params", opts: []ConnOption{WithParams(asdu.Params{CauseSize: 3, CommonAddrSize: 2, IOASize: 3})}, isErr: true},
		{desc: "window policy", opts: []ConnOption{WithWindowPolicy(WindowFailFast)}},
		{desc: "bad window policy", opts: []ConnOption{WithWindowPolicy(WindowPolicy(7))}, isErr: true},
		{desc: "event queue", opts: []ConnOption{WithEventQueue(-1)}, isErr: true},
		{desc: "wait confirmation", opts: []ConnOption{WithWaitConfirmation(-time.Second)}, isErr: true},
		{desc: "nil logger", opts: []ConnOption{WithLogger(nil)}, isErr: true},
		{desc: "nil option", opts: []ConnOption{nil, WithOriginator(3)}},
	}

	for _, tt := range tests {
		t.Logf("Test #%s", tt.desc)
		_, err := NewConnectionConfig(tt.opts...)
		if tt.isErr {
			require.Error(t, err)
		} else {
			require.NoError(t, err)
		}
	}
}

func TestNewServerConfig(t *testing.T) {
	tests := []struct {
		desc    string
		address string
		opts    []ServerOption
		want    string
		isErr   bool
	}{
		{desc: "any host", address: ":2404", want: ":2404"},
		{desc: "ipv4", address: "127.0.0.1:0", want: "127.0.0.1:0"},
		{desc: "ipv6", address: "[::1]:2404", want: "[::1]:2404"},
		{desc: "missing port", address: "localhost", isErr: true},
		{desc: "bad port", address: "localhost:70000", isErr: true},
		{desc: "bad host", address: "a b:2404", isErr: true},
		{desc: "max connections", address: ":2404", opts: []ServerOption{WithMaxConnections(-1)}, isErr: true},
		{desc: "allow list", address: ":2404", opts: []ServerOption{WithAllowList("192.168.1.0/24", "::1")}, want: ":2404"},
		{desc: "bad allow list", address: ":2404", opts: []ServerOption{WithAllowList("300.1.1.1")}, isErr: true},
		{desc: "accept rate", address: ":2404", opts: []ServerOption{WithAcceptRate(0, 1)}, isErr: true},
		{desc: "accept burst", address: ":2404", opts: []ServerOption{WithAcceptRate(10, 0)}, isErr: true},
		{desc: "nil listener", address: ":2404", opts: []ServerOption{WithListener(nil)}, isErr: true},
		{desc: "bad conn options", address: ":2404", opts: []ServerOption{WithConnOptions(WithK(2), WithW(3))}, isErr: true},
	}

	for _, tt := range tests {
		t.Logf("Test #%s", tt.desc)
		cfg, err := NewServerConfig(tt.address, tt.opts...)
		if tt.isErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, cfg.Address())
		require.NotNil(t, cfg.ConnectionConfig())
	}
}

func TestServerConfig_Allowed(t *testing.T) {
	require := require.New(t)

	open, err := NewServerConfig(":2404")
	require.NoError(err)
	require.True(open.allowed(&net.TCPAddr{IP: net.ParseIP("203.0.113.5"), Port: 1000}))

	cfg, err := NewServerConfig(":2404", WithAllowList("10.0.0.0/8", "192.168.1.7", "::1"))
	require.NoError(err)

	tests := []struct {
		desc string
		addr net.Addr
		want bool
	}{
		{desc: "in prefix", addr: &net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 1}, want: true},
		{desc: "exact host", addr: &net.TCPAddr{IP: net.ParseIP("192.168.1.7"), Port: 1}, want: true},
		{desc: "other host", addr: &net.TCPAddr{IP: net.ParseIP("192.168.1.8"), Port: 1}, want: false},
		{desc: "mapped ipv4", addr: &net.TCPAddr{IP: net.ParseIP("::ffff:10.0.0.1"), Port: 1}, want: true},
		{desc: "ipv6 loopback", addr: &net.TCPAddr{IP: net.ParseIP("::1"), Port: 1}, want: true},
		{desc: "not tcp", addr: &net.UnixAddr{Name: "/tmp/sock", Net: "unix"}, want: false},
	}

	for _, tt := range tests {
		t.Logf("Test #%s", tt.desc)
		require.Equal(tt.want, cfg.allowed(tt.addr))
	}
}

func TestWindowPolicy_String(t *testing.T) {
	require.Equal(t, "block", WindowBlock.String())
	require.Equal(t, "fail_fast", WindowFailFast.String())
	require.Equal(t, "unknown", WindowPolicy(9).String())
}
