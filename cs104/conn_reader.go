package cs104

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/arloliu/go-iec104/apci"
	"github.com/arloliu/go-iec104/asdu"
	"github.com/arloliu/go-iec104/logger"
)

// readerTask reads and handles one frame. It returns false when the connection failed.
func (c *Connection) readerTask() bool {
	frame, raw, err := c.reader.ReadFrame(c.conn)
	if err != nil {
		if c.IsClosed() {
			return false
		}

		if apci.IsFramingError(err) {
			c.metrics.incDecodeErrCount()
			c.logger.Error("malformed frame", "error", err, "raw", hex.EncodeToString(raw))
		} else if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrConnClosed, err)
		}
		c.fail(err)

		return false
	}

	c.metrics.incFrameRecvCount(frame.Format())
	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("frame received", "frame", frame)
	}

	c.timers.FrameReceived(time.Now())

	if err := c.handleFrame(frame); err != nil {
		c.fail(err)
		return false
	}

	return true
}

func (c *Connection) handleFrame(frame apci.Frame) error {
	switch frame.Format() {
	case apci.IFormat:
		return c.handleIFrame(frame)
	case apci.SFormat:
		return c.acknowledge(frame.RecvSeq())
	case apci.UFormat:
		return c.handleUFrame(frame.Function())
	default:
		return fmt.Errorf("%w: unknown format %s", apci.ErrBadControl, frame.Format())
	}
}

// acknowledge releases the sent I frames the peer confirmed and wakes blocked senders.
func (c *Connection) acknowledge(recvSeq uint16) error {
	n, err := c.seq.Acknowledge(recvSeq)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	c.timers.Acknowledged(c.seq.OldestSend())

	c.sendMu.Lock()
	c.windowCond.Broadcast()
	c.sendMu.Unlock()

	c.wakeTimer()

	return nil
}

func (c *Connection) handleIFrame(frame apci.Frame) error {
	if err := c.acknowledge(frame.RecvSeq()); err != nil {
		return err
	}

	ackDue, err := c.seq.Receive(frame.SendSeq())
	if err != nil {
		return err
	}
	c.timers.UnackedReceived(time.Now())
	c.wakeTimer()

	u, err := c.codec.Decode(frame.Payload())
	if err != nil {
		c.metrics.incDecodeErrCount()
		c.logger.Error("malformed unit", "error", err, "payload", hex.EncodeToString(frame.Payload()))

		return fmt.Errorf("decode unit: %w", err)
	}

	if c.stateMgr.IsActive() {
		c.deliver(u)
	} else {
		c.metrics.incUnitDropCount()
		c.logger.Warn("unit received while data transfer is stopped, dropped", "unit", u)
	}

	if ackDue {
		return c.sendAck()
	}

	return nil
}

func (c *Connection) deliver(u *asdu.Unit) {
	c.resolvePending(u)
	c.metrics.incUnitDeliverCount()
	c.handler.OnUnit(c, u)
	c.publish(Event{Kind: UnitEvent, Unit: u})
}

func (c *Connection) handleUFrame(fn apci.UFunction) error {
	switch fn {
	case apci.StartDTAct:
		if err := c.sendControl(apci.StartDTCon); err != nil {
			return err
		}
		c.transit(apci.ActiveState)

	case apci.StopDTAct:
		// the peer may not stop with received frames unacknowledged
		if c.seq.Unacknowledged() > 0 {
			if err := c.sendAck(); err != nil {
				return err
			}
		}
		c.transit(apci.InactiveState)
		if err := c.sendControl(apci.StopDTCon); err != nil {
			return err
		}

	case apci.TestFRAct:
		return c.sendControl(apci.TestFRCon)

	default:
		c.confirmControl(fn)
	}

	return nil
}

// confirmControl completes the pending U frame request answered by fn.
func (c *Connection) confirmControl(fn apci.UFunction) {
	c.ctrlMu.Lock()
	req := c.ctrl
	if req == nil || req.fn.Con() != fn {
		c.ctrlMu.Unlock()
		c.logger.Warn("unexpected U frame confirmation", "function", fn)

		return
	}
	c.ctrl = nil
	c.ctrlMu.Unlock()

	c.timers.ControlConfirmed()
	c.wakeTimer()

	switch fn {
	case apci.StartDTCon:
		c.transit(apci.ActiveState)
	case apci.StopDTCon:
		c.transit(apci.InactiveState)
	}

	close(req.done)
	<-c.ctrlSem
}

// transit moves the link to state and notifies the handler on a change.
func (c *Connection) transit(state apci.LinkState) {
	prev := c.stateMgr.State()

	var err error
	if state.IsActive() {
		err = c.stateMgr.ToActive()
	} else {
		err = c.stateMgr.ToInactive()
	}
	if err != nil || prev == state {
		return
	}

	c.notifyState(prev, state)
}
