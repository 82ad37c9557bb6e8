package apci

import (
	"strconv"
	"sync"
	"time"
)

const (
	DefaultT0 = 30 * time.Second
	DefaultT1 = 15 * time.Second
	DefaultT2 = 10 * time.Second
	DefaultT3 = 20 * time.Second
)

// TimerKind names one of the link supervision timers.
type TimerKind uint8

const (
	T1 TimerKind = iota + 1 // send or test APDU confirmation timeout
	T2                      // acknowledgment delay
	T3                      // idle test interval
)

func (k TimerKind) String() string {
	switch k {
	case T1:
		return "t1"
	case T2:
		return "t2"
	case T3:
		return "t3"
	default:
		return "TimerKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Timers holds the deadlines of t1, t2 and t3 for one link. It is driven by the events
// of the connection and polled by its timer goroutine with Due and Next.
//
// t1 is kept twice: one deadline for the oldest outstanding I frame and one for a
// pending U frame request. Either expiring reports T1.
type Timers struct {
	mu     sync.Mutex
	t1     time.Duration
	t2     time.Duration
	t3     time.Duration
	dataT1 time.Time
	ctrlT1 time.Time
	t2At   time.Time
	t3At   time.Time
}

// NewTimers returns timers with the given durations. t3 is armed at now.
func NewTimers(now time.Time, t1, t2, t3 time.Duration) *Timers {
	return &Timers{t1: t1, t2: t2, t3: t3, t3At: now.Add(t3)}
}

// FrameSent records a frame written at now. armT1 is set for I frames; t1 is only
// armed when it is not running already, so it always tracks the oldest outstanding frame.
func (tm *Timers) FrameSent(now time.Time, armT1 bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.t3At = now.Add(tm.t3)
	if armT1 && tm.dataT1.IsZero() {
		tm.dataT1 = now.Add(tm.t1)
	}
}

// ControlSent records a U frame request written at now.
func (tm *Timers) ControlSent(now time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.t3At = now.Add(tm.t3)
	tm.ctrlT1 = now.Add(tm.t1)
}

// ControlConfirmed disarms the U frame request timeout.
func (tm *Timers) ControlConfirmed() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.ctrlT1 = time.Time{}
}

// ControlPending reports whether a U frame request awaits confirmation.
func (tm *Timers) ControlPending() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return !tm.ctrlT1.IsZero()
}

// FrameReceived restarts t3.
func (tm *Timers) FrameReceived(now time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.t3At = now.Add(tm.t3)
}

// UnackedReceived arms t2 for the first received I frame not yet acknowledged.
func (tm *Timers) UnackedReceived(now time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.t2At.IsZero() {
		tm.t2At = now.Add(tm.t2)
	}
}

// AckSent disarms t2.
func (tm *Timers) AckSent() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.t2At = time.Time{}
}

// Acknowledged updates t1 after the peer acknowledged I frames. oldest is the send time
// of the oldest frame still outstanding; ok is false when nothing is outstanding.
func (tm *Timers) Acknowledged(oldest time.Time, ok bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if !ok {
		tm.dataT1 = time.Time{}
		return
	}
	tm.dataT1 = oldest.Add(tm.t1)
}

// Due returns the timers expired at now, in priority order t1, t2, t3.
func (tm *Timers) Due(now time.Time) []TimerKind {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var due []TimerKind
	if expired(tm.dataT1, now) || expired(tm.ctrlT1, now) {
		due = append(due, T1)
	}
	if expired(tm.t2At, now) {
		due = append(due, T2)
	}
	if expired(tm.t3At, now) {
		due = append(due, T3)
	}

	return due
}

// Next returns the time left until the earliest armed deadline. It returns false when
// no timer is armed.
func (tm *Timers) Next(now time.Time) (time.Duration, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var earliest time.Time
	for _, at := range []time.Time{tm.dataT1, tm.ctrlT1, tm.t2At, tm.t3At} {
		if !at.IsZero() && (earliest.IsZero() || at.Before(earliest)) {
			earliest = at
		}
	}
	if earliest.IsZero() {
		return 0, false
	}

	return max(earliest.Sub(now), 0), true
}

// Disarm stops the given timer. Disarming T1 stops both t1 deadlines.
func (tm *Timers) Disarm(kind TimerKind) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	switch kind {
	case T1:
		tm.dataT1, tm.ctrlT1 = time.Time{}, time.Time{}
	case T2:
		tm.t2At = time.Time{}
	case T3:
		tm.t3At = time.Time{}
	}
}

// Armed reports whether the given timer is running.
func (tm *Timers) Armed(kind TimerKind) bool {
	return !tm.Deadline(kind).IsZero()
}

// Deadline returns the expiry of the given timer, or the zero time when disarmed. For
// T1 the earlier of both deadlines is returned.
func (tm *Timers) Deadline(kind TimerKind) time.Time {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	switch kind {
	case T1:
		switch {
		case tm.dataT1.IsZero():
			return tm.ctrlT1
		case tm.ctrlT1.IsZero() || tm.dataT1.Before(tm.ctrlT1):
			return tm.dataT1
		default:
			return tm.ctrlT1
		}
	case T2:
		return tm.t2At
	case T3:
		return tm.t3At
	default:
		return time.Time{}
	}
}

func expired(at time.Time, now time.Time) bool {
	return !at.IsZero() && !now.Before(at)
}
