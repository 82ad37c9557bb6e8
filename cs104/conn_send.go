package cs104

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-iec104/apci"
	"github.com/arloliu/go-iec104/asdu"
	"github.com/arloliu/go-iec104/logger"
)

// Send encodes u and sends it in an I frame.
//
// It returns ErrNotActive while data transfer is stopped. When k frames are
// outstanding, Send waits for an acknowledgment under WindowBlock, or returns
// apci.ErrWindowFull under WindowFailFast. After the connection closed it returns the
// close cause.
func (c *Connection) Send(ctx context.Context, u *asdu.Unit) error {
	if u == nil {
		return fmt.Errorf("%w: unit is nil", asdu.ErrInvalidArgument)
	}
	if c.IsClosed() {
		return c.closedErr()
	}
	if !c.stateMgr.IsActive() {
		return ErrNotActive
	}

	payload, err := c.codec.Encode(u)
	if err != nil {
		return err
	}

	c.sendMu.Lock()

	if err := c.waitWindowLocked(ctx); err != nil {
		c.sendMu.Unlock()
		return err
	}

	now := time.Now()
	sendSeq, recvSeq, err := c.seq.NextSend(now)
	if err != nil {
		c.sendMu.Unlock()
		return err
	}

	frame, err := apci.NewIFrame(sendSeq, recvSeq, payload)
	if err != nil {
		c.sendMu.Unlock()
		return err
	}

	if err := c.writeFrameLocked(frame); err != nil {
		c.sendMu.Unlock()
		c.fail(err)

		return err
	}
	c.timers.FrameSent(now, true)
	c.timers.AckSent()
	c.sendMu.Unlock()

	c.wakeTimer()

	return nil
}

// waitWindowLocked waits until an I frame may be sent. sendMu must be held.
func (c *Connection) waitWindowLocked(ctx context.Context) error {
	var stop func() bool
	defer func() {
		if stop != nil {
			stop()
		}
	}()

	for {
		if c.IsClosed() {
			return c.closedErr()
		}
		if !c.stateMgr.IsActive() {
			return ErrNotActive
		}
		if c.seq.Outstanding() < c.seq.K() {
			return nil
		}
		if c.cfg.windowPolicy == WindowFailFast {
			return apci.ErrWindowFull
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if stop == nil {
			stop = context.AfterFunc(ctx, func() {
				c.sendMu.Lock()
				c.windowCond.Broadcast()
				c.sendMu.Unlock()
			})
		}
		c.windowCond.Wait()
	}
}

// SendConfirmation sends the mirror of u with ACTIVATION mapped to ACTIVATION_CON and
// DEACTIVATION mapped to DEACTIVATION_CON. Other causes are echoed.
func (c *Connection) SendConfirmation(ctx context.Context, u *asdu.Unit, negative bool) error {
	if u == nil {
		return fmt.Errorf("%w: unit is nil", asdu.ErrInvalidArgument)
	}

	return c.Send(ctx, u.Confirmation(negative))
}

// SendConfirmationWithCause sends the mirror of u with an explicit cause.
func (c *Connection) SendConfirmationWithCause(ctx context.Context, u *asdu.Unit, negative bool, cause asdu.Cause) error {
	if u == nil {
		return fmt.Errorf("%w: unit is nil", asdu.ErrInvalidArgument)
	}

	con, err := u.ConfirmationWithCause(negative, cause)
	if err != nil {
		return err
	}

	return c.Send(ctx, con)
}

// StartDataTransfer sends STARTDT act and waits for the confirmation. The link is
// active when it returns nil.
func (c *Connection) StartDataTransfer(ctx context.Context) error {
	if c.stateMgr.IsActive() {
		return nil
	}

	return c.controlRequest(ctx, apci.StartDTAct)
}

// StopDataTransfer sends STOPDT act and waits for the confirmation. The link is
// inactive when it returns nil.
func (c *Connection) StopDataTransfer(ctx context.Context) error {
	if c.stateMgr.IsInactive() {
		return nil
	}

	return c.controlRequest(ctx, apci.StopDTAct)
}

// TestFrame sends TESTFR act and waits for the confirmation.
func (c *Connection) TestFrame(ctx context.Context) error {
	return c.controlRequest(ctx, apci.TestFRAct)
}

// controlRequest sends the U frame request fn and waits for its confirmation.
//
// Only one request is pending at a time. The confirmation is bound by t1: when it does
// not arrive in time the connection closes with apci.ErrT1Timeout. A canceled ctx only
// stops the wait.
func (c *Connection) controlRequest(ctx context.Context, fn apci.UFunction) error {
	select {
	case c.ctrlSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return c.closedErr()
	}

	req, err := c.beginControl(fn)
	if err != nil {
		return err
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return c.closedErr()
	}
}

// tryTestFrame sends TESTFR act unless another request is pending.
func (c *Connection) tryTestFrame() error {
	select {
	case c.ctrlSem <- struct{}{}:
	default:
		return nil
	}

	_, err := c.beginControl(apci.TestFRAct)

	return err
}

// beginControl registers and sends a request. ctrlSem must be acquired; it is released
// by confirmControl, or here when the write fails.
func (c *Connection) beginControl(fn apci.UFunction) (*ctrlRequest, error) {
	req := &ctrlRequest{fn: fn, done: make(chan struct{})}

	c.ctrlMu.Lock()
	c.ctrl = req
	c.ctrlMu.Unlock()

	if err := c.sendControl(fn); err != nil {
		c.ctrlMu.Lock()
		c.ctrl = nil
		c.ctrlMu.Unlock()
		<-c.ctrlSem

		return nil, err
	}

	return req, nil
}

// sendControl writes a U frame. Requests arm t1, confirmations only restart t3.
func (c *Connection) sendControl(fn apci.UFunction) error {
	frame, err := apci.NewUFrame(fn)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	if c.IsClosed() {
		c.sendMu.Unlock()
		return c.closedErr()
	}
	if err := c.writeFrameLocked(frame); err != nil {
		c.sendMu.Unlock()
		c.fail(err)

		return err
	}
	if fn.IsAct() {
		c.timers.ControlSent(time.Now())
	} else {
		c.timers.FrameSent(time.Now(), false)
	}
	c.sendMu.Unlock()

	c.wakeTimer()

	return nil
}

// sendAck acknowledges every received I frame with an S frame.
func (c *Connection) sendAck() error {
	c.sendMu.Lock()
	if c.IsClosed() {
		c.sendMu.Unlock()
		return c.closedErr()
	}

	frame, err := apci.NewSFrame(c.seq.AckSent())
	if err != nil {
		c.sendMu.Unlock()
		return err
	}
	if err := c.writeFrameLocked(frame); err != nil {
		c.sendMu.Unlock()
		c.fail(err)

		return err
	}
	c.timers.AckSent()
	c.timers.FrameSent(time.Now(), false)
	c.sendMu.Unlock()

	c.wakeTimer()

	return nil
}

// writeFrameLocked writes frame to the transport. sendMu must be held.
func (c *Connection) writeFrameLocked(frame apci.Frame) error {
	c.wbuf = frame.AppendTo(c.wbuf[:0])

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.t1Timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := c.conn.Write(c.wbuf); err != nil {
		return fmt.Errorf("write %s: %w", frame, err)
	}

	c.metrics.incFrameSendCount(frame.Format())
	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("frame sent", "frame", frame)
	}

	return nil
}
