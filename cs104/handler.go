package cs104

import (
	"net"

	"github.com/arloliu/go-iec104/apci"
	"github.com/arloliu/go-iec104/asdu"
)

// Handler receives the units and lifecycle notifications of a connection.
//
// Note: OnUnit and the notifications of peer-driven state changes are invoked on the
// reader goroutine of the connection. A handler that blocks stalls the reading of
// frames, including the acknowledgments a blocking Send waits for.
type Handler interface {
	// OnUnit is invoked for every unit received while data transfer is active.
	OnUnit(conn *Connection, u *asdu.Unit)
	// OnLinkStateChange is invoked after the link state changed.
	OnLinkStateChange(conn *Connection, prevState apci.LinkState, newState apci.LinkState)
	// OnClose is invoked exactly once when the connection closed, with the close cause.
	OnClose(conn *Connection, err error)
}

// HandlerFuncs adapts plain functions to Handler. Nil functions are skipped.
type HandlerFuncs struct {
	Unit            func(conn *Connection, u *asdu.Unit)
	LinkStateChange func(conn *Connection, prevState apci.LinkState, newState apci.LinkState)
	Close           func(conn *Connection, err error)
}

var _ Handler = HandlerFuncs{}

func (h HandlerFuncs) OnUnit(conn *Connection, u *asdu.Unit) {
	if h.Unit != nil {
		h.Unit(conn, u)
	}
}

func (h HandlerFuncs) OnLinkStateChange(conn *Connection, prevState apci.LinkState, newState apci.LinkState) {
	if h.LinkStateChange != nil {
		h.LinkStateChange(conn, prevState, newState)
	}
}

func (h HandlerFuncs) OnClose(conn *Connection, err error) {
	if h.Close != nil {
		h.Close(conn, err)
	}
}

// EventKind is the kind of an Event.
type EventKind uint8

const (
	UnitEvent      EventKind = iota + 1 // a unit was received
	LinkStateEvent                      // the link state changed
	CloseEvent                          // the connection closed, always the last event
)

func (k EventKind) String() string {
	switch k {
	case UnitEvent:
		return "unit"
	case LinkStateEvent:
		return "link_state"
	case CloseEvent:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one entry of the buffered delivery queue enabled by WithEventQueue.
type Event struct {
	Kind      EventKind
	Unit      *asdu.Unit     // UnitEvent
	PrevState apci.LinkState // LinkStateEvent
	State     apci.LinkState // LinkStateEvent
	Err       error          // CloseEvent
}

// ServerHandler receives the notifications of a Server.
type ServerHandler interface {
	// OnConnectionAccepted is invoked for an admitted connection before its goroutines
	// start. It returns the handler of the connection; nil discards all notifications.
	OnConnectionAccepted(conn *Connection) Handler
	// OnConnectionRejected is invoked when the admission policy refused a remote address.
	OnConnectionRejected(addr net.Addr, reason error)
	// OnAcceptFailed is invoked for a temporary accept error; the server keeps accepting.
	OnAcceptFailed(err error)
	// OnListenerStopped is invoked once when the accept loop ends, with the cause.
	OnListenerStopped(err error)
}

// ServerHandlerFuncs adapts plain functions to ServerHandler. Nil functions are skipped.
type ServerHandlerFuncs struct {
	ConnectionAccepted func(conn *Connection) Handler
	ConnectionRejected func(addr net.Addr, reason error)
	AcceptFailed       func(err error)
	ListenerStopped    func(err error)
}

var _ ServerHandler = ServerHandlerFuncs{}

func (h ServerHandlerFuncs) OnConnectionAccepted(conn *Connection) Handler {
	if h.ConnectionAccepted != nil {
		return h.ConnectionAccepted(conn)
	}

	return nil
}

func (h ServerHandlerFuncs) OnConnectionRejected(addr net.Addr, reason error) {
	if h.ConnectionRejected != nil {
		h.ConnectionRejected(addr, reason)
	}
}

func (h ServerHandlerFuncs) OnAcceptFailed(err error) {
	if h.AcceptFailed != nil {
		h.AcceptFailed(err)
	}
}

func (h ServerHandlerFuncs) OnListenerStopped(err error) {
	if h.ListenerStopped != nil {
		h.ListenerStopped(err)
	}
}
