package cs104

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-iec104/apci"
	"github.com/arloliu/go-iec104/asdu"
	"github.com/arloliu/go-iec104/logger"
)

func TestConnection_PeerStartsDataTransfer(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil)
	require.Equal(apci.InactiveState, conn.State())

	activate(t, conn, peer)
	require.Equal([2]apci.LinkState{apci.InactiveState, apci.ActiveState}, rec.waitState(t))

	peer.sendU(apci.StopDTAct)
	peer.expectU(apci.StopDTCon)
	require.Equal([2]apci.LinkState{apci.ActiveState, apci.InactiveState}, rec.waitState(t))
	require.False(conn.IsActive())

	require.ErrorIs(conn.Send(context.Background(), singlePoint(t, 1, true)), ErrNotActive)
}

func TestConnection_StartDataTransfer(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- conn.StartDataTransfer(context.Background()) }()

	peer.expectU(apci.StartDTAct)
	peer.sendU(apci.StartDTCon)

	require.NoError(<-errCh)
	require.True(conn.IsActive())
	require.Equal([2]apci.LinkState{apci.InactiveState, apci.ActiveState}, rec.waitState(t))

	// no frame for an already active link
	require.NoError(conn.StartDataTransfer(context.Background()))

	go func() { errCh <- conn.StopDataTransfer(context.Background()) }()
	peer.expectU(apci.StopDTAct)
	peer.sendU(apci.StopDTCon)
	require.NoError(<-errCh)
	require.False(conn.IsActive())
}

func TestConnection_TestFrame(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- conn.TestFrame(context.Background()) }()

	peer.expectU(apci.TestFRAct)
	peer.sendU(apci.TestFRCon)
	require.NoError(<-errCh)

	// the peer tests us
	peer.sendU(apci.TestFRAct)
	peer.expectU(apci.TestFRCon)

	require.Equal(uint64(2), conn.Metrics().UFrameSendCount.Load())
	require.Equal(uint64(2), conn.Metrics().UFrameRecvCount.Load())
}

func TestConnection_ControlRequestContext(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := conn.TestFrame(ctx)
	require.ErrorIs(err, context.DeadlineExceeded)
	peer.expectU(apci.TestFRAct)

	// a late confirmation still completes the pending request
	peer.sendU(apci.TestFRCon)
	require.Eventually(func() bool { return !conn.timers.ControlPending() }, waitTimeout, 5*time.Millisecond)
	require.False(conn.IsClosed())
}

func TestConnection_HandshakeGating(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil, WithW(1))

	// framed, sequenced and acknowledged, but not delivered
	peer.sendI(singlePoint(t, 1, true))
	require.Equal(uint16(1), peer.expectS())
	require.Eventually(func() bool { return conn.Metrics().UnitDropCount.Load() == 1 }, waitTimeout, 5*time.Millisecond)
	require.Empty(rec.units)

	activate(t, conn, peer)

	peer.sendI(singlePoint(t, 2, false))
	u := rec.waitUnit(t)
	require.Equal(uint32(2), u.FirstAddress())
	require.Equal(uint16(2), peer.expectS())
	require.Equal(uint64(1), conn.Metrics().UnitDeliverCount.Load())
}

func TestConnection_SendFailFast(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil, WithK(2), WithW(2), WithWindowPolicy(WindowFailFast))
	activate(t, conn, peer)

	ctx := context.Background()
	require.NoError(conn.Send(ctx, singlePoint(t, 1, true)))
	require.NoError(conn.Send(ctx, singlePoint(t, 2, true)))
	require.Equal(2, conn.Outstanding())

	require.ErrorIs(conn.Send(ctx, singlePoint(t, 3, true)), apci.ErrWindowFull)

	require.Equal(uint32(1), peer.expectI(0).FirstAddress())
	require.Equal(uint32(2), peer.expectI(1).FirstAddress())

	peer.sendS(2)
	require.Eventually(func() bool { return conn.Outstanding() == 0 }, waitTimeout, 5*time.Millisecond)

	require.NoError(conn.Send(ctx, singlePoint(t, 3, true)))
	require.Equal(uint32(3), peer.expectI(2).FirstAddress())
}

func TestConnection_SendBlocks(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil, WithK(1), WithW(1))
	activate(t, conn, peer)

	ctx := context.Background()
	require.NoError(conn.Send(ctx, singlePoint(t, 1, true)))
	peer.expectI(0)

	errCh := make(chan error, 1)
	go func() { errCh <- conn.Send(ctx, singlePoint(t, 2, true)) }()

	select {
	case err := <-errCh:
		t.Fatalf("send returned with a full window: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	peer.sendS(1)
	require.NoError(<-errCh)
	peer.expectI(1)

	// the window is full again, the wait ends with the context
	tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(conn.Send(tctx, singlePoint(t, 3, true)), context.DeadlineExceeded)
	require.False(conn.IsClosed())
}

func TestConnection_SendBlockedUntilClose(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil, WithK(1), WithW(1))
	activate(t, conn, peer)

	require.NoError(conn.Send(context.Background(), singlePoint(t, 1, true)))

	errCh := make(chan error, 1)
	go func() { errCh <- conn.Send(context.Background(), singlePoint(t, 2, true)) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(conn.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(err, ErrClosedByUser)
	case <-time.After(waitTimeout):
		t.Fatal("blocked send not released by close")
	}
}

func TestConnection_T1Timeout(t *testing.T) {
	tests := []struct {
		desc string
		run  func(conn *Connection) error
	}{
		{
			desc: "unacknowledged I frame",
			run: func(conn *Connection) error {
				return conn.Send(context.Background(), singlePoint(t, 1, true))
			},
		},
		{
			desc: "unconfirmed STARTDT",
			run: func(conn *Connection) error {
				err := conn.StartDataTransfer(context.Background())
				if !errors.Is(err, apci.ErrT1Timeout) {
					return err
				}

				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Logf("Test #%s", tt.desc)
		require := require.New(t)

		rec := newRecorder()
		conn, peer := newTestConnection(t, rec, nil,
			WithT1Timeout(100*time.Millisecond), WithT2Timeout(50*time.Millisecond))
		if tt.desc == "unacknowledged I frame" {
			activate(t, conn, peer)
		}

		start := time.Now()
		require.NoError(tt.run(conn))

		require.ErrorIs(rec.waitClose(t), apci.ErrT1Timeout)
		require.GreaterOrEqual(time.Since(start), 100*time.Millisecond)
		require.ErrorIs(conn.Err(), apci.ErrT1Timeout)
		require.Equal(apci.ClosedState, conn.State())
		require.Equal(uint64(1), conn.Metrics().T1ExpireCount.Load())
		peer.expectFrame()
		peer.expectClosed()
	}
}

func TestConnection_LogsT1Expiry(t *testing.T) {
	require := require.New(t)

	ml := logger.NewMockLogger().AllowAll()
	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil,
		WithT1Timeout(100*time.Millisecond), WithT2Timeout(50*time.Millisecond), WithLogger(ml))
	activate(t, conn, peer)

	require.NoError(conn.Send(context.Background(), singlePoint(t, 1, true)))
	require.ErrorIs(rec.waitClose(t), apci.ErrT1Timeout)

	ml.AssertCalled(t, "Info", "connection opened", mock.Anything)
	ml.AssertCalled(t, "Warn", "t1 expired", mock.Anything)
	ml.AssertCalled(t, "Error", "connection closed", []any{"cause", apci.ErrT1Timeout})
	ml.AssertNotCalled(t, "Info", "connection closed", mock.Anything)
}

func TestConnection_AcknowledgeAtW(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil, WithW(2))
	activate(t, conn, peer)

	peer.sendI(singlePoint(t, 1, true))
	peer.sendI(singlePoint(t, 2, true))

	// t2 is 10 seconds, the acknowledgment is forced by w
	require.Equal(uint16(2), peer.expectS())
	rec.waitUnit(t)
	rec.waitUnit(t)
	require.Zero(conn.Metrics().T2ExpireCount.Load())
}

func TestConnection_AcknowledgeAtT2(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil,
		WithT1Timeout(200*time.Millisecond), WithT2Timeout(50*time.Millisecond))
	activate(t, conn, peer)

	start := time.Now()
	peer.sendI(singlePoint(t, 1, true))
	require.Equal(uint16(1), peer.expectS())
	require.GreaterOrEqual(time.Since(start), 40*time.Millisecond)
	require.Equal(uint64(1), conn.Metrics().T2ExpireCount.Load())
}

func TestConnection_PiggybackedAcknowledgment(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil)
	activate(t, conn, peer)

	peer.sendI(singlePoint(t, 1, true))
	rec.waitUnit(t)

	// the I frame carries the acknowledgment and disarms t2
	require.NoError(conn.Send(context.Background(), singlePoint(t, 2, true)))
	f := peer.expectFrame()
	require.Equal(apci.IFormat, f.Format())
	require.Equal(uint16(1), f.RecvSeq())
	require.False(conn.timers.Armed(apci.T2))
}

func TestConnection_T3TestFrame(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil, WithT3Timeout(50*time.Millisecond))

	peer.expectU(apci.TestFRAct)
	peer.sendU(apci.TestFRCon)

	require.Eventually(func() bool { return !conn.timers.ControlPending() }, waitTimeout, 5*time.Millisecond)
	require.GreaterOrEqual(conn.Metrics().T3ExpireCount.Load(), uint64(1))
	require.False(conn.IsClosed())
}

func TestConnection_FatalFrames(t *testing.T) {
	tests := []struct {
		desc     string
		active   bool
		send     func(p *testPeer)
		expected error
		decode   bool
	}{
		{
			desc:     "bad start byte",
			send:     func(p *testPeer) { p.write([]byte{0x69, 0x04, 0x07, 0x00, 0x00, 0x00}) },
			expected: apci.ErrBadStartByte,
			decode:   true,
		},
		{
			desc:     "bad length",
			send:     func(p *testPeer) { p.write([]byte{0x68, 0x02, 0x07, 0x00}) },
			expected: apci.ErrBadLength,
			decode:   true,
		},
		{
			desc:     "bad control field",
			send:     func(p *testPeer) { p.write([]byte{0x68, 0x04, 0x03, 0x00, 0x00, 0x00}) },
			expected: apci.ErrBadControl,
			decode:   true,
		},
		{
			desc:     "unexpected send sequence",
			active:   true,
			send:     func(p *testPeer) { p.sendIWithSeq(5, singlePoint(p.t, 1, true)) },
			expected: apci.ErrSeqViolation,
		},
		{
			desc:     "acknowledgment of unsent frames",
			send:     func(p *testPeer) { p.sendS(3) },
			expected: apci.ErrSeqViolation,
		},
		{
			desc:     "undecodable unit",
			active:   true,
			send:     func(p *testPeer) { p.write([]byte{0x68, 0x08, 0x00, 0x00, 0x00, 0x00, 0x01, 0x01, 0x03, 0x00}) },
			expected: asdu.ErrTruncated,
			decode:   true,
		},
	}

	for _, tt := range tests {
		t.Logf("Test #%s", tt.desc)
		require := require.New(t)

		rec := newRecorder()
		conn, peer := newTestConnection(t, rec, nil)
		if tt.active {
			activate(t, conn, peer)
		}

		tt.send(peer)

		require.ErrorIs(rec.waitClose(t), tt.expected)
		require.True(conn.IsClosed())
		if tt.decode {
			require.Equal(uint64(1), conn.Metrics().DecodeErrCount.Load())
		}
		peer.expectClosed()
		require.ErrorIs(conn.Send(context.Background(), singlePoint(t, 1, true)), tt.expected)
	}
}

func TestConnection_BadStartByteDiscardsFollowingFrames(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil)
	activate(t, conn, peer)

	payload, err := peer.codec.Encode(singlePoint(t, 1, true))
	require.NoError(err)
	iframe, err := apci.NewIFrame(0, 0, payload)
	require.NoError(err)
	testfr, err := apci.NewUFrame(apci.TestFRAct)
	require.NoError(err)

	// one garbage octet followed by well-formed frames in the same segment
	data := append([]byte{0x69}, iframe.ToBytes()...)
	data = append(data, testfr.ToBytes()...)
	peer.write(data)

	require.ErrorIs(rec.waitClose(t), apci.ErrBadStartByte)
	peer.expectClosed()
	require.Empty(rec.units)
	require.Zero(conn.Metrics().UnitDeliverCount.Load())
	require.Zero(conn.Metrics().IFrameRecvCount.Load())
}

func TestConnection_HandlerPanic(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	rec.onUnit = func(*Connection, *asdu.Unit) { panic("handler failure") }
	conn, peer := newTestConnection(t, rec, nil)
	activate(t, conn, peer)

	peer.sendI(singlePoint(t, 1, true))

	err := rec.waitClose(t)
	require.ErrorIs(err, ErrTaskPanic)
	require.ErrorContains(err, "handler failure")
	require.True(conn.IsClosed())
	require.ErrorIs(conn.Err(), ErrTaskPanic)
	require.Equal(apci.ClosedState, conn.State())
	peer.expectClosed()
}

func TestConnection_TimerTaskPanic(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil)

	keepRunning := conn.guard("timer", func() bool { panic("timer failure") })()
	require.False(keepRunning)

	require.ErrorIs(rec.waitClose(t), ErrTaskPanic)
	require.ErrorContains(conn.Err(), "timer: timer failure")
	peer.expectClosed()
}

func TestConnection_ContextDoneBeforeStart(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConnectionConfig()
	require.NoError(err)
	local, _ := tcpPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := newConnection(ctx, local, cfg, nil)
	require.NoError(err)
	require.False(conn.IsClosed())

	// handler and hooks set after construction still observe the close
	rec := newRecorder()
	conn.handler = rec
	hooked := make(chan struct{})
	conn.onClose(func(*Connection) { close(hooked) })

	_ = conn.start()

	require.ErrorIs(rec.waitClose(t), context.Canceled)
	select {
	case <-hooked:
	case <-time.After(waitTimeout):
		t.Fatal("close hook not called")
	}
	require.ErrorIs(conn.Err(), ErrConnClosed)
}

func TestConnection_SequenceWrap(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, func(c *Connection) {
		c.seq.Reset(32766, 32766)
	}, WithK(4), WithW(4), WithWindowPolicy(WindowFailFast))
	peer.sendSeq, peer.recvSeq = 32766, 32766
	activate(t, conn, peer)

	ctx := context.Background()
	for i := range 3 {
		require.NoError(conn.Send(ctx, singlePoint(t, uint32(i+1), true)))
	}
	peer.expectI(32766)
	peer.expectI(32767)
	peer.expectI(0)
	require.Equal(3, conn.Outstanding())

	peer.sendS(1)
	require.Eventually(func() bool { return conn.Outstanding() == 0 }, waitTimeout, 5*time.Millisecond)

	for i := range 4 {
		peer.sendI(singlePoint(t, uint32(10+i), true))
	}
	require.Equal(uint16(2), peer.expectS())
	for range 4 {
		rec.waitUnit(t)
	}
	require.Equal(uint16(2), conn.seq.RecvSeq())
}

func TestConnection_Close(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil)
	activate(t, conn, peer)
	rec.waitState(t)

	require.NoError(conn.Close())
	require.NoError(conn.Close())

	require.ErrorIs(rec.waitClose(t), ErrClosedByUser)
	require.Equal([2]apci.LinkState{apci.ActiveState, apci.ClosedState}, rec.waitState(t))

	select {
	case <-conn.Done():
	default:
		t.Fatal("done channel not closed")
	}

	require.True(conn.IsClosed())
	require.ErrorIs(conn.Err(), ErrClosedByUser)
	require.ErrorIs(conn.Send(context.Background(), singlePoint(t, 1, true)), ErrClosedByUser)
	require.ErrorIs(conn.StartDataTransfer(context.Background()), ErrClosedByUser)
	require.ErrorIs(conn.WaitForStartDT(context.Background()), ErrClosedByUser)
	peer.expectClosed()

	require.True(conn.wait(waitTimeout))
	rec.mu.Lock()
	require.Equal(1, rec.closeCount)
	rec.mu.Unlock()
}

func TestConnection_PeerClose(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil)
	require.NoError(peer.conn.Close())

	require.ErrorIs(rec.waitClose(t), ErrConnClosed)
	require.True(conn.IsClosed())
}

func TestConnection_ContextCancel(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConnectionConfig()
	require.NoError(err)
	local, _ := tcpPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	rec := newRecorder()
	conn, err := NewConnection(ctx, local, cfg, rec)
	require.NoError(err)

	cancel()
	err = rec.waitClose(t)
	require.ErrorIs(err, ErrConnClosed)
	require.ErrorIs(err, context.Canceled)
	require.True(conn.wait(waitTimeout))
}

func TestConnection_WaitForStartDT(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- conn.WaitForStartDT(context.Background()) }()

	peer.sendU(apci.StartDTAct)
	peer.expectU(apci.StartDTCon)
	require.NoError(<-errCh)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(conn.WaitForStartDT(ctx))
}

func TestConnection_EventQueue(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, nil, nil, WithEventQueue(8))
	activate(t, conn, peer)
	peer.sendI(singlePoint(t, 7, true))

	events := conn.Events()
	ev := <-events
	require.Equal(LinkStateEvent, ev.Kind)
	require.Equal(apci.ActiveState, ev.State)

	ev = <-events
	require.Equal(UnitEvent, ev.Kind)
	require.Equal(uint32(7), ev.Unit.FirstAddress())

	require.NoError(conn.Close())

	ev = <-events
	require.Equal(LinkStateEvent, ev.Kind)
	require.Equal(apci.ClosedState, ev.State)

	ev = <-events
	require.Equal(CloseEvent, ev.Kind)
	require.ErrorIs(ev.Err, ErrClosedByUser)

	_, ok := <-events
	require.False(ok)
}

func TestConnection_SendConfirmation(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	rec.onUnit = func(c *Connection, u *asdu.Unit) {
		if u.Cause() == asdu.Activation {
			_ = c.SendConfirmation(context.Background(), u, false)
			_ = c.SendConfirmationWithCause(context.Background(), u, false, asdu.ActivationTermination)
		}
	}
	conn, peer := newTestConnection(t, rec, nil)
	activate(t, conn, peer)

	gi, err := asdu.NewUnit(asdu.CIcNa1, false, asdu.COT{Cause: asdu.Activation, Originator: 3}, 1,
		asdu.NewObject(0, asdu.QOIStation))
	require.NoError(err)
	peer.sendI(gi)

	con := peer.expectI(0)
	require.Equal(asdu.CIcNa1, con.Type())
	require.Equal(asdu.ActivationCon, con.Cause())
	require.Equal(uint8(3), con.COT().Originator)
	require.False(con.COT().Negative)

	term := peer.expectI(1)
	require.Equal(asdu.ActivationTermination, term.Cause())
	require.Equal(2, conn.Outstanding())
}

func TestConnection_SendConfirmationInvalidCause(t *testing.T) {
	require := require.New(t)

	conn, peer := newTestConnection(t, newRecorder(), nil)
	activate(t, conn, peer)

	gi, err := asdu.NewUnit(asdu.CIcNa1, false, asdu.NewCOT(asdu.Activation), 1, asdu.NewObject(0, asdu.QOIStation))
	require.NoError(err)

	err = conn.SendConfirmationWithCause(context.Background(), gi, false, asdu.MaxCause+1)
	require.ErrorIs(err, asdu.ErrInvalidArgument)
	require.Zero(conn.Outstanding())
	require.Zero(conn.Metrics().IFrameSendCount.Load())
	require.False(conn.IsClosed())
}
