package apci

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimers_T1(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1000, 0)
	tm := NewTimers(now, 15*time.Second, 10*time.Second, 20*time.Second)
	require.False(tm.Armed(T1))

	tm.FrameSent(now, true)
	require.Equal(now.Add(15*time.Second), tm.Deadline(T1))

	// a later I frame does not move t1 off the oldest outstanding frame
	tm.FrameSent(now.Add(5*time.Second), true)
	require.Equal(now.Add(15*time.Second), tm.Deadline(T1))

	// partial acknowledgment rearms to the oldest remaining frame
	tm.Acknowledged(now.Add(5*time.Second), true)
	require.Equal(now.Add(20*time.Second), tm.Deadline(T1))

	require.Empty(tm.Due(now.Add(19 * time.Second)))
	require.Equal([]TimerKind{T1}, tm.Due(now.Add(20*time.Second)))

	tm.Acknowledged(time.Time{}, false)
	require.False(tm.Armed(T1))
}

func TestTimers_ControlT1(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1000, 0)
	tm := NewTimers(now, 15*time.Second, 10*time.Second, 20*time.Second)

	tm.ControlSent(now)
	require.True(tm.ControlPending())
	require.Equal(now.Add(15*time.Second), tm.Deadline(T1))

	tm.FrameSent(now.Add(time.Second), true)
	require.Equal(now.Add(15*time.Second), tm.Deadline(T1))

	tm.ControlConfirmed()
	require.False(tm.ControlPending())
	require.Equal(now.Add(16*time.Second), tm.Deadline(T1))

	tm.Disarm(T1)
	require.False(tm.Armed(T1))
}

func TestTimers_T2(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1000, 0)
	tm := NewTimers(now, 15*time.Second, 10*time.Second, 20*time.Second)

	tm.UnackedReceived(now)
	tm.UnackedReceived(now.Add(3 * time.Second))
	require.Equal(now.Add(10*time.Second), tm.Deadline(T2))

	require.Equal([]TimerKind{T2}, tm.Due(now.Add(10*time.Second)))

	tm.AckSent()
	require.False(tm.Armed(T2))
}

func TestTimers_T3(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1000, 0)
	tm := NewTimers(now, 15*time.Second, 10*time.Second, 20*time.Second)
	require.Equal(now.Add(20*time.Second), tm.Deadline(T3))

	tm.FrameReceived(now.Add(5 * time.Second))
	require.Equal(now.Add(25*time.Second), tm.Deadline(T3))

	tm.FrameSent(now.Add(6*time.Second), false)
	require.Equal(now.Add(26*time.Second), tm.Deadline(T3))
	require.False(tm.Armed(T1))

	d, ok := tm.Next(now.Add(6 * time.Second))
	require.True(ok)
	require.Equal(20*time.Second, d)

	require.Equal([]TimerKind{T3}, tm.Due(now.Add(26*time.Second)))
}

func TestTimers_Priority(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1000, 0)
	tm := NewTimers(now, 15*time.Second, 10*time.Second, 15*time.Second)
	tm.FrameSent(now, true)
	tm.UnackedReceived(now.Add(5 * time.Second))

	// all three expire at the same instant
	due := tm.Due(now.Add(15 * time.Second))
	require.Equal([]TimerKind{T1, T2, T3}, due)

	d, ok := tm.Next(now.Add(20 * time.Second))
	require.True(ok)
	require.Zero(d)
}

func TestTimers_Next(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1000, 0)
	tm := NewTimers(now, 15*time.Second, 10*time.Second, 20*time.Second)
	tm.Disarm(T3)

	_, ok := tm.Next(now)
	require.False(ok)

	tm.UnackedReceived(now)
	d, ok := tm.Next(now.Add(4 * time.Second))
	require.True(ok)
	require.Equal(6*time.Second, d)

	require.Equal("t2", T2.String())
	require.Equal("TimerKind(9)", TimerKind(9).String())
}
