package cs104

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-iec104/apci"
	"github.com/arloliu/go-iec104/asdu"
	"github.com/arloliu/go-iec104/internal/task"
	"github.com/arloliu/go-iec104/logger"
)

// Connection represents one IEC 60870-5-104 link over an established TCP connection.
// It frames and sequences units, drives the t1, t2 and t3 timers and the data transfer
// handshake, and delivers received units to its Handler.
//
// A Connection starts in apci.InactiveState. Either side may start data transfer with
// StartDataTransfer; units are only sent and delivered while the link is active.
// Every fatal condition (framing, sequencing, t1 expiry, decode or transport error)
// closes the connection; it is never reopened.
type Connection struct {
	id     string
	cfg    *ConnectionConfig
	logger logger.Logger
	conn   net.Conn

	codec    *asdu.Codec
	reader   *apci.FrameReader
	seq      *apci.SeqController
	timers   *apci.Timers
	stateMgr *apci.LinkStateMgr
	taskMgr  *task.Manager
	handler  Handler

	sendMu     sync.Mutex // serializes every frame write and sequence assignment
	windowCond *sync.Cond
	wbuf       []byte

	closeOnce sync.Once
	closed    chan struct{}
	errMu     sync.RWMutex
	err       error

	timerWake chan struct{}

	ctrlSem chan struct{} // held while a U frame request awaits its confirmation
	ctrlMu  sync.Mutex
	ctrl    *ctrlRequest

	pending *xsync.MapOf[confirmKey, chan *asdu.Unit]

	eventsMu     sync.Mutex
	events       chan Event
	eventsClosed bool

	closeHooks   []func(*Connection)
	ctx          context.Context // closes the connection when done, watched from start
	stopCtxWatch func() bool     // guarded by errMu

	metrics ConnectionMetrics
}

type ctrlRequest struct {
	fn   apci.UFunction
	done chan struct{}
}

// confirmKey identifies the command a confirmation answers.
type confirmKey struct {
	typeID     asdu.TypeID
	commonAddr uint16
	address    uint32
}

// Dial connects to address within the t0 timeout of cfg and returns the started
// connection. A nil handler discards all notifications.
func Dial(ctx context.Context, address string, cfg *ConnectionConfig, handler Handler) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	dialer := net.Dialer{Timeout: cfg.t0Timeout}
	nc, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	c, err := NewConnection(ctx, nc, cfg, handler)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}

	return c, nil
}

// NewConnection wraps an established transport and starts the reader and timer
// goroutines. The connection closes when ctx is done. A nil handler discards all
// notifications.
func NewConnection(ctx context.Context, nc net.Conn, cfg *ConnectionConfig, handler Handler) (*Connection, error) {
	c, err := newConnection(ctx, nc, cfg, handler)
	if err != nil {
		return nil, err
	}
	if err := c.start(); err != nil {
		return nil, err
	}

	return c, nil
}

func newConnection(ctx context.Context, nc net.Conn, cfg *ConnectionConfig, handler Handler) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}
	if nc == nil {
		return nil, errors.New("net conn is nil")
	}

	codec, err := asdu.NewCodec(cfg.params, cfg.extensions...)
	if err != nil {
		return nil, err
	}

	seq, err := apci.NewSeqController(cfg.k, cfg.w)
	if err != nil {
		return nil, err
	}

	if handler == nil {
		handler = HandlerFuncs{}
	}

	id := uuid.NewString()
	l := cfg.logger.With("conn_id", id, "remote", remoteAddrString(nc))

	c := &Connection{
		id:        id,
		cfg:       cfg,
		logger:    l,
		conn:      nc,
		codec:     codec,
		reader:    apci.NewFrameReader(cfg.fragmentTimeout),
		seq:       seq,
		timers:    apci.NewTimers(time.Now(), cfg.t1Timeout, cfg.t2Timeout, cfg.t3Timeout),
		stateMgr:  apci.NewLinkStateMgr(l),
		taskMgr:   task.NewManager(context.WithoutCancel(ctx), l),
		handler:   handler,
		closed:    make(chan struct{}),
		timerWake: make(chan struct{}, 1),
		ctrlSem:   make(chan struct{}, 1),
		pending:   xsync.NewMapOf[confirmKey, chan *asdu.Unit](),
		ctx:       ctx,
	}
	c.windowCond = sync.NewCond(&c.sendMu)

	if cfg.eventQueueSize > 0 {
		c.events = make(chan Event, cfg.eventQueueSize)
	}

	return c, nil
}

// start arms the context watch and starts the reader and timer goroutines. The handler
// and close hooks must be in place before it is called.
func (c *Connection) start() error {
	c.errMu.Lock()
	c.stopCtxWatch = context.AfterFunc(c.ctx, func() {
		c.fail(fmt.Errorf("%w: %w", ErrConnClosed, context.Cause(c.ctx)))
	})
	c.errMu.Unlock()

	if err := c.taskMgr.StartReceiver("reader", c.guard("reader", c.readerTask), nil); err != nil {
		c.fail(err)
		return err
	}
	if err := c.taskMgr.Start("timer", c.guard("timer", c.timerTask)); err != nil {
		c.fail(err)
		return err
	}
	c.logger.Info("connection opened")

	return nil
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() string { return c.id }

// RemoteAddr returns the remote network address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Config returns the connection configuration.
func (c *Connection) Config() *ConnectionConfig { return c.cfg }

// GetLogger returns the logger of the connection.
func (c *Connection) GetLogger() logger.Logger { return c.logger }

// Metrics returns the metrics of the connection.
func (c *Connection) Metrics() *ConnectionMetrics { return &c.metrics }

// State returns the current link state.
func (c *Connection) State() apci.LinkState { return c.stateMgr.State() }

// IsActive reports whether data transfer is started.
func (c *Connection) IsActive() bool { return c.stateMgr.IsActive() }

// IsClosed reports whether the connection is closed.
func (c *Connection) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Outstanding returns the number of sent I frames not yet acknowledged by the peer.
func (c *Connection) Outstanding() int { return c.seq.Outstanding() }

// Done returns a channel that is closed when the connection closes.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Err returns the close cause, or nil while the connection is open.
func (c *Connection) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.err
}

// Events returns the buffered event channel enabled by WithEventQueue, or nil. The
// channel is closed after the CloseEvent.
func (c *Connection) Events() <-chan Event { return c.events }

// Close closes the connection with ErrClosedByUser. It is safe to call more than once.
func (c *Connection) Close() error {
	c.fail(ErrClosedByUser)
	return nil
}

// WaitForStartDT blocks until data transfer is active, ctx is done or the connection
// closes.
func (c *Connection) WaitForStartDT(ctx context.Context) error {
	err := c.stateMgr.WaitState(ctx, apci.ActiveState)
	if errors.Is(err, apci.ErrLinkClosed) {
		return c.closedErr()
	}

	return err
}

// onClose registers fn to run after the connection closed.
func (c *Connection) onClose(fn func(*Connection)) {
	c.closeHooks = append(c.closeHooks, fn)
}

// wait blocks until the goroutines of the connection returned or timeout elapsed.
func (c *Connection) wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.taskMgr.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		c.logger.Warn("timeout waiting for connection tasks", "timeout", timeout)
		return false
	}
}

// closedErr returns the stored close cause, or ErrConnClosed.
func (c *Connection) closedErr() error {
	if err := c.Err(); err != nil {
		return err
	}

	return ErrConnClosed
}

// guard fails the connection when fn panics, e.g. in a handler or an extension
// decoder, so that the close path runs for a dead task too.
func (c *Connection) guard(name string, fn task.Func) task.Func {
	return func() (keepRunning bool) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("panic in connection task", "task", name, "panic", r, "stack", string(debug.Stack()))
				c.fail(fmt.Errorf("%w: %s: %v", ErrTaskPanic, name, r))
				keepRunning = false
			}
		}()

		return fn()
	}
}

// fail closes the connection with cause. Only the first call has an effect.
//
// It must not be called while holding sendMu.
func (c *Connection) fail(cause error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = cause
		stopCtxWatch := c.stopCtxWatch
		c.errMu.Unlock()
		close(c.closed)

		if errors.Is(cause, ErrClosedByUser) {
			c.logger.Info("connection closed", "cause", cause)
		} else {
			c.logger.Error("connection closed", "cause", cause)
		}

		if stopCtxWatch != nil {
			stopCtxWatch()
		}
		c.taskMgr.Stop()
		_ = c.conn.Close()
		c.timers.Disarm(apci.T1)
		c.timers.Disarm(apci.T2)
		c.timers.Disarm(apci.T3)

		prev := c.stateMgr.State()
		if c.stateMgr.ToClosed() {
			c.notifyState(prev, apci.ClosedState)
		}

		c.sendMu.Lock()
		c.windowCond.Broadcast()
		c.sendMu.Unlock()

		c.dropPending()
		c.handler.OnClose(c, cause)
		c.closeEvents(cause)

		for _, hook := range c.closeHooks {
			hook(c)
		}
	})
}

// notifyState reports a link state change to the handler and the event queue.
func (c *Connection) notifyState(prev, cur apci.LinkState) {
	c.logger.Info("link state changed", "prev_state", prev, "state", cur)
	c.handler.OnLinkStateChange(c, prev, cur)
	c.publish(Event{Kind: LinkStateEvent, PrevState: prev, State: cur})
}

// publish pushes ev to the event queue. It blocks while the queue is full, until the
// connection closes.
func (c *Connection) publish(ev Event) {
	if c.events == nil {
		return
	}

	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()

	if c.eventsClosed {
		return
	}

	select {
	case c.events <- ev:
	case <-c.closed:
		if ev.Kind == LinkStateEvent {
			// the closing transition is still queued when there is room
			select {
			case c.events <- ev:
			default:
			}
		}
	}
}

func (c *Connection) closeEvents(cause error) {
	if c.events == nil {
		return
	}

	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()

	if c.eventsClosed {
		return
	}
	c.eventsClosed = true

	select {
	case c.events <- Event{Kind: CloseEvent, Err: cause}:
	default:
		c.logger.Warn("event queue full, close event dropped")
	}
	close(c.events)
}

func (c *Connection) wakeTimer() {
	select {
	case c.timerWake <- struct{}{}:
	default:
	}
}

func remoteAddrString(nc net.Conn) string {
	if addr := nc.RemoteAddr(); addr != nil {
		return addr.String()
	}

	return ""
}
