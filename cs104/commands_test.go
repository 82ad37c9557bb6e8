package cs104

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-iec104/asdu"
)

func TestCommands_Encoding(t *testing.T) {
	sco, err := asdu.NewSCO(true, 0, false)
	require.NoError(t, err)
	tag, err := asdu.NewTime56(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), false)
	require.NoError(t, err)
	qcc, err := asdu.NewQCC(5, asdu.FreezeRead)
	require.NoError(t, err)

	ctx := context.Background()
	tests := []struct {
		desc     string
		send     func(c *Connection) error
		typeID   asdu.TypeID
		cause    asdu.Cause
		ioa      uint32
		elements int
	}{
		{
			desc:     "single command",
			send:     func(c *Connection) error { return c.SingleCommand(ctx, 1, 5000, sco, nil) },
			typeID:   asdu.CScNa1,
			cause:    asdu.Activation,
			ioa:      5000,
			elements: 1,
		},
		{
			desc:     "single command with time tag",
			send:     func(c *Connection) error { return c.SingleCommand(ctx, 1, 5000, sco, &tag) },
			typeID:   asdu.CScTa1,
			cause:    asdu.Activation,
			ioa:      5000,
			elements: 2,
		},
		{
			desc:     "station interrogation",
			send:     func(c *Connection) error { return c.Interrogation(ctx, 1, asdu.QOIStation) },
			typeID:   asdu.CIcNa1,
			cause:    asdu.Activation,
			elements: 1,
		},
		{
			desc:     "counter interrogation",
			send:     func(c *Connection) error { return c.CounterInterrogation(ctx, 1, qcc) },
			typeID:   asdu.CCiNa1,
			cause:    asdu.Activation,
			elements: 1,
		},
		{
			desc:     "read command",
			send:     func(c *Connection) error { return c.ReadCommand(ctx, 1, 300) },
			typeID:   asdu.CRdNa1,
			cause:    asdu.Request,
			ioa:      300,
			elements: 0,
		},
		{
			desc: "clock synchronization",
			send: func(c *Connection) error {
				_, err := c.SynchronizeClocks(ctx, 1, time.Now())
				return err
			},
			typeID:   asdu.CCsNa1,
			cause:    asdu.Activation,
			elements: 1,
		},
		{
			desc:     "test command",
			send:     func(c *Connection) error { return c.TestCommand(ctx, 1) },
			typeID:   asdu.CTsNa1,
			cause:    asdu.Activation,
			elements: 1,
		},
		{
			desc:     "reset process",
			send:     func(c *Connection) error { return c.ResetProcessCommand(ctx, 1, asdu.QRPGeneralReset) },
			typeID:   asdu.CRpNa1,
			cause:    asdu.Activation,
			elements: 1,
		},
		{
			desc:     "parameter deactivation",
			send:     func(c *Connection) error { return c.ParameterActivation(ctx, 1, 40, 3, true) },
			typeID:   asdu.PAcNa1,
			cause:    asdu.Deactivation,
			ioa:      40,
			elements: 1,
		},
		{
			desc: "query log",
			send: func(c *Connection) error {
				return c.QueryLog(ctx, 1, 70, 2, time.Now().Add(-time.Hour), time.Now())
			},
			typeID:   asdu.FScNb1,
			cause:    asdu.FileTransfer,
			ioa:      70,
			elements: 3,
		},
	}

	conn, peer := newTestConnection(t, nil, nil, WithOriginator(9))
	activate(t, conn, peer)

	for i, tt := range tests {
		t.Logf("Test #%s", tt.desc)
		require := require.New(t)

		require.NoError(tt.send(conn))
		u := peer.expectI(uint16(i))
		require.Equal(tt.typeID, u.Type())
		require.Equal(tt.cause, u.Cause())
		require.Equal(uint8(9), u.COT().Originator)
		require.Equal(uint16(1), u.CommonAddr())
		require.Equal(tt.ioa, u.FirstAddress())

		obj, ok := u.Object(0)
		require.True(ok)
		require.Len(obj.Elements, tt.elements)

		peer.sendS(uint16(i + 1))
	}
}

func TestCommands_TimeTagNotSupported(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil)
	activate(t, conn, peer)

	tag, err := asdu.NewTime56(time.Now(), false)
	require.NoError(err)

	err = conn.sendCommand(context.Background(), asdu.CIcNa1, 0, asdu.Activation, 1, 0, &tag, asdu.QOIStation)
	require.ErrorIs(err, asdu.ErrInvalidArgument)
	require.Zero(conn.Outstanding())
}

func TestCommands_SendDirectory(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil)
	activate(t, conn, peer)

	lof, err := asdu.NewLengthOfFile(1024)
	require.NoError(err)
	sof, err := asdu.NewSOF(0, true, false, false)
	require.NoError(err)
	created, err := asdu.NewTime56(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false)
	require.NoError(err)

	entries := []DirectoryEntry{
		{Name: 1, Length: lof, Status: sof, Creation: created},
		{Name: 2, Length: lof, Status: sof, Creation: created},
	}
	require.NoError(conn.SendDirectory(context.Background(), 1, 100, entries))

	u := peer.expectI(0)
	require.Equal(asdu.FDrTa1, u.Type())
	require.True(u.Sequential())
	require.Equal(2, u.Len())
	obj, ok := u.Object(1)
	require.True(ok)
	require.Equal(uint32(101), obj.Address)

	require.ErrorIs(conn.SendDirectory(context.Background(), 1, 100, nil), asdu.ErrInvalidArgument)
}

func TestCommands_WaitConfirmation(t *testing.T) {
	sco, err := asdu.NewSCO(true, 0, false)
	require.NoError(t, err)

	tests := []struct {
		desc     string
		reply    func(p *testPeer, cmd *asdu.Unit)
		expected error
	}{
		{
			desc: "positive confirmation",
			reply: func(p *testPeer, cmd *asdu.Unit) {
				p.sendI(cmd.Confirmation(false))
			},
		},
		{
			desc: "negative confirmation",
			reply: func(p *testPeer, cmd *asdu.Unit) {
				p.sendI(cmd.Confirmation(true))
			},
			expected: ErrNegativeConfirmation,
		},
		{
			desc:     "no confirmation",
			reply:    func(p *testPeer, cmd *asdu.Unit) {},
			expected: ErrResponseTimeout,
		},
		{
			desc: "confirmation of another object",
			reply: func(p *testPeer, cmd *asdu.Unit) {
				other, err := asdu.NewUnit(cmd.Type(), false, asdu.NewCOT(asdu.ActivationCon), cmd.CommonAddr(),
					asdu.NewObject(cmd.FirstAddress()+1, sco))
				require.NoError(p.t, err)
				p.sendI(other)
			},
			expected: ErrResponseTimeout,
		},
	}

	for _, tt := range tests {
		t.Logf("Test #%s", tt.desc)
		require := require.New(t)

		conn, peer := newTestConnection(t, nil, nil, WithWaitConfirmation(200*time.Millisecond))
		activate(t, conn, peer)

		errCh := make(chan error, 1)
		go func() { errCh <- conn.SingleCommand(context.Background(), 1, 2000, sco, nil) }()

		cmd := peer.expectI(0)
		tt.reply(peer, cmd)

		select {
		case err := <-errCh:
			if tt.expected == nil {
				require.NoError(err)
			} else {
				require.ErrorIs(err, tt.expected)
			}
		case <-time.After(waitTimeout):
			t.Fatal("command did not return")
		}

		require.Zero(conn.pending.Size())
	}
}

func TestCommands_ConfirmationPending(t *testing.T) {
	require := require.New(t)

	sco, err := asdu.NewSCO(false, 0, true)
	require.NoError(err)

	conn, peer := newTestConnection(t, nil, nil, WithWaitConfirmation(time.Second))
	activate(t, conn, peer)

	errCh := make(chan error, 1)
	go func() { errCh <- conn.SingleCommand(context.Background(), 1, 10, sco, nil) }()
	cmd := peer.expectI(0)

	require.ErrorIs(conn.SingleCommand(context.Background(), 1, 10, sco, nil), ErrConfirmationPending)

	peer.sendI(cmd.Confirmation(false))
	require.NoError(<-errCh)
}

func TestCommands_PendingReleasedOnClose(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil, WithWaitConfirmation(time.Minute))
	activate(t, conn, peer)

	errCh := make(chan error, 1)
	go func() { errCh <- conn.Interrogation(context.Background(), 1, asdu.QOIStation) }()
	peer.expectI(0)

	require.NoError(conn.Close())
	require.ErrorIs(<-errCh, ErrClosedByUser)
}
