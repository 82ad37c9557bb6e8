package apci

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-iec104/logger"
)

// LinkState represents the data transfer state of a link.
type LinkState uint32

// Link states. A link starts inactive; closed is terminal.
const (
	// InactiveState indicates that the transport is connected but data transfer is stopped.
	// Only U and S frames may be sent, received I frames are acknowledged but not delivered.
	InactiveState LinkState = iota
	// ActiveState indicates that data transfer was started with STARTDT.
	ActiveState
	// ClosedState indicates that the link is closed and may not be reused.
	ClosedState
)

// IsInactive returns if the state is inactive.
func (ls LinkState) IsInactive() bool { return ls == InactiveState }

// IsActive returns if the state is active.
func (ls LinkState) IsActive() bool { return ls == ActiveState }

// IsClosed returns if the state is closed.
func (ls LinkState) IsClosed() bool { return ls == ClosedState }

// String returns string representation of the state.
func (ls LinkState) String() string {
	switch ls {
	case InactiveState:
		return "inactive"
	case ActiveState:
		return "active"
	case ClosedState:
		return "closed"
	default:
		return "unknown"
	}
}

// LinkStateMgr manages the state of one link.
//
// Transitions are safe for concurrent use. The manager does not call back on changes;
// the owner of the link reports them after the transition returns, outside the lock.
type LinkStateMgr struct {
	mu     sync.Mutex
	cond   *sync.Cond
	state  atomic.Uint32
	logger logger.Logger
}

// NewLinkStateMgr creates a new LinkStateMgr in InactiveState.
func NewLinkStateMgr(l logger.Logger) *LinkStateMgr {
	if l == nil {
		l = logger.GetLogger()
	}

	mgr := &LinkStateMgr{logger: l}
	mgr.cond = sync.NewCond(&mgr.mu)
	mgr.state.Store(uint32(InactiveState))

	return mgr
}

// State returns the current link state.
func (mgr *LinkStateMgr) State() LinkState {
	return LinkState(mgr.state.Load())
}

// WaitState waits until the link reaches state or ctx is done.
//
// It returns ErrLinkClosed when the link closes while waiting for another state.
func (mgr *LinkStateMgr) WaitState(ctx context.Context, state LinkState) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	stopFunc := context.AfterFunc(ctx, func() {
		mgr.mu.Lock()
		defer mgr.mu.Unlock()
		mgr.cond.Broadcast()
	})
	defer stopFunc()

	for {
		cur := mgr.State()
		if cur == state {
			return nil
		}
		if cur.IsClosed() {
			return ErrLinkClosed
		}
		if err := ctx.Err(); err != nil {
			mgr.logger.Debug("wait link state receive ctx done", "cur_state", cur, "desired_state", state)
			return err
		}
		mgr.cond.Wait()
	}
}

// ToActive transitions the link to ActiveState. It is a no-op when already active and
// returns ErrInvalidTransition when the link is closed.
func (mgr *LinkStateMgr) ToActive() error {
	return mgr.transit(ActiveState)
}

// ToInactive transitions the link to InactiveState. It is a no-op when already inactive
// and returns ErrInvalidTransition when the link is closed.
func (mgr *LinkStateMgr) ToInactive() error {
	return mgr.transit(InactiveState)
}

// ToClosed transitions the link to ClosedState from any state. It returns true for the
// caller that performed the transition and false when the link was already closed.
func (mgr *LinkStateMgr) ToClosed() bool {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	cur := mgr.State()
	if cur.IsClosed() {
		return false
	}
	mgr.setState(cur, ClosedState)

	return true
}

// IsInactive returns if the link is inactive.
func (mgr *LinkStateMgr) IsInactive() bool { return mgr.State().IsInactive() }

// IsActive returns if the link is active.
func (mgr *LinkStateMgr) IsActive() bool { return mgr.State().IsActive() }

// IsClosed returns if the link is closed.
func (mgr *LinkStateMgr) IsClosed() bool { return mgr.State().IsClosed() }

func (mgr *LinkStateMgr) transit(newState LinkState) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	cur := mgr.State()
	if cur == newState {
		return nil
	}
	if cur.IsClosed() {
		return ErrInvalidTransition
	}

	mgr.setState(cur, newState)

	return nil
}

// setState stores newState and wakes up all waiters.
func (mgr *LinkStateMgr) setState(prevState LinkState, newState LinkState) {
	mgr.state.Store(uint32(newState))
	mgr.cond.Broadcast()
	mgr.logger.Debug("link state transition", "prev_state", prevState, "state", newState)
}
