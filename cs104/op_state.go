package cs104

import "sync/atomic"

// ServerState is the lifecycle state of a Server.
type ServerState uint32

const (
	IdleState ServerState = iota
	ServingState
	ClosingState
	ClosedState
)

func (s ServerState) String() string {
	switch s {
	case IdleState:
		return "Idle"
	case ServingState:
		return "Serving"
	case ClosingState:
		return "Closing"
	case ClosedState:
		return "Closed"
	default:
		return "Unknown"
	}
}

type atomicServerState struct {
	state atomic.Uint32
}

// Get returns the current state.
func (st *atomicServerState) Get() ServerState {
	return ServerState(st.state.Load())
}

func (st *atomicServerState) IsServing() bool {
	return st.Get() == ServingState
}

func (st *atomicServerState) IsClosed() bool {
	s := st.Get()
	return s == ClosingState || s == ClosedState
}

func (st *atomicServerState) ToServing() bool {
	return st.state.CompareAndSwap(uint32(IdleState), uint32(ServingState))
}

// ToClosing moves an idle or serving server to closing. It returns false when the
// server is already closing or closed.
func (st *atomicServerState) ToClosing() bool {
	if st.state.CompareAndSwap(uint32(ServingState), uint32(ClosingState)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(IdleState), uint32(ClosingState))
}

func (st *atomicServerState) ToClosed() bool {
	if st.Get() == ClosedState {
		return true
	}

	return st.state.CompareAndSwap(uint32(ClosingState), uint32(ClosedState))
}
