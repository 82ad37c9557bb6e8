package cs104

import (
	"time"

	"github.com/arloliu/go-iec104/apci"
	"github.com/arloliu/go-iec104/internal/pool"
)

// timerTask waits for the earliest armed deadline and handles the expired timers.
// It returns false when the connection closed.
func (c *Connection) timerTask() bool {
	ctx := c.taskMgr.Context()

	wait, ok := c.timers.Next(time.Now())
	if !ok {
		wait = c.cfg.t3Timeout
	}

	timer := pool.GetTimer(wait)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return false
	case <-c.closed:
		return false
	case <-c.timerWake:
		return true
	case <-timer.C:
	}

	for _, kind := range c.timers.Due(time.Now()) {
		if !c.handleExpiry(kind) {
			return false
		}
	}

	return true
}

// handleExpiry reacts to one expired timer. It returns false when the connection failed.
func (c *Connection) handleExpiry(kind apci.TimerKind) bool {
	c.metrics.incTimerExpireCount(kind)

	switch kind {
	case apci.T1:
		c.logger.Warn("t1 expired", "outstanding", c.seq.Outstanding(), "control_pending", c.timers.ControlPending())
		c.fail(apci.ErrT1Timeout)

		return false

	case apci.T2:
		c.logger.Debug("t2 expired, sending acknowledgment", "unacknowledged", c.seq.Unacknowledged())
		if err := c.sendAck(); err != nil {
			return false
		}

	case apci.T3:
		c.logger.Debug("t3 expired, sending test frame")
		if err := c.tryTestFrame(); err != nil {
			return false
		}
		// restart t3 when another request holds the slot
		c.timers.FrameReceived(time.Now())
	}

	return true
}
