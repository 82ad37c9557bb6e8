package apci

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeqController_New(t *testing.T) {
	require := require.New(t)

	_, err := NewSeqController(0, 1)
	require.ErrorContains(err, "out of range")

	_, err = NewSeqController(12, 13)
	require.ErrorContains(err, "out of range")

	sc, err := NewSeqController(DefaultK, DefaultW)
	require.NoError(err)
	require.Equal(12, sc.K())
	require.Equal(8, sc.W())
}

func TestSeqController_Window(t *testing.T) {
	require := require.New(t)

	sc, err := NewSeqController(3, 2)
	require.NoError(err)

	now := time.Now()
	for i := range 3 {
		send, recv, err := sc.NextSend(now.Add(time.Duration(i) * time.Second))
		require.NoError(err)
		require.Equal(uint16(i), send)
		require.Zero(recv)
	}

	// k frames outstanding, the fourth is refused
	_, _, err = sc.NextSend(now)
	require.ErrorIs(err, ErrWindowFull)
	require.Equal(3, sc.Outstanding())

	// partial acknowledgment frees one slot
	n, err := sc.Acknowledge(1)
	require.NoError(err)
	require.Equal(1, n)

	oldest, ok := sc.OldestSend()
	require.True(ok)
	require.Equal(now.Add(time.Second), oldest)

	send, _, err := sc.NextSend(now)
	require.NoError(err)
	require.Equal(uint16(3), send)

	// full acknowledgment
	n, err = sc.Acknowledge(4)
	require.NoError(err)
	require.Equal(3, n)
	require.Zero(sc.Outstanding())

	_, ok = sc.OldestSend()
	require.False(ok)
}

func TestSeqController_Acknowledge(t *testing.T) {
	require := require.New(t)

	sc, err := NewSeqController(12, 8)
	require.NoError(err)

	// nothing outstanding: only the next send number is acceptable
	_, err = sc.Acknowledge(0)
	require.NoError(err)
	_, err = sc.Acknowledge(1)
	require.ErrorIs(err, ErrSeqViolation)

	for range 4 {
		_, _, err = sc.NextSend(time.Now())
		require.NoError(err)
	}

	// repeated acknowledgment of the oldest is harmless
	n, err := sc.Acknowledge(0)
	require.NoError(err)
	require.Zero(n)

	// beyond what was sent
	_, err = sc.Acknowledge(5)
	require.ErrorIs(err, ErrSeqViolation)

	// behind the oldest outstanding frame
	_, err = sc.Acknowledge(2)
	require.NoError(err)
	_, err = sc.Acknowledge(1)
	require.ErrorIs(err, ErrSeqViolation)
	require.Equal(2, sc.Outstanding())
}

func TestSeqController_Wraparound(t *testing.T) {
	require := require.New(t)

	sc, err := NewSeqController(12, 8)
	require.NoError(err)
	sc.Reset(32766, 32767)

	var sent []uint16
	for range 3 {
		send, _, err := sc.NextSend(time.Now())
		require.NoError(err)
		sent = append(sent, send)
	}
	require.Equal([]uint16{32766, 32767, 0}, sent)
	require.Equal(uint16(1), sc.SendSeq())

	n, err := sc.Acknowledge(1)
	require.NoError(err)
	require.Equal(3, n)

	// 32767 is followed by 0 on the receive side
	_, err = sc.Receive(32767)
	require.NoError(err)
	_, err = sc.Receive(0)
	require.NoError(err)
	require.Equal(uint16(1), sc.RecvSeq())
}

func TestSeqController_Receive(t *testing.T) {
	require := require.New(t)

	sc, err := NewSeqController(12, 3)
	require.NoError(err)

	due, err := sc.Receive(0)
	require.NoError(err)
	require.False(due)

	due, err = sc.Receive(1)
	require.NoError(err)
	require.False(due)

	due, err = sc.Receive(2)
	require.NoError(err)
	require.True(due)
	require.Equal(3, sc.Unacknowledged())

	require.Equal(uint16(3), sc.AckSent())
	require.Zero(sc.Unacknowledged())

	// gap
	_, err = sc.Receive(5)
	require.ErrorIs(err, ErrSeqViolation)

	// sending an I frame acknowledges as well
	_, err = sc.Receive(3)
	require.NoError(err)
	_, recv, err := sc.NextSend(time.Now())
	require.NoError(err)
	require.Equal(uint16(4), recv)
	require.Zero(sc.Unacknowledged())
}
