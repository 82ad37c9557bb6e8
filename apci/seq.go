package apci

import (
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-iec104/internal/queue"
)

const (
	// DefaultK is the default maximum number of outstanding I frames.
	DefaultK = 12
	// DefaultW is the default number of received I frames after which an
	// acknowledgment is sent.
	DefaultW = 8
	// MaxWindow is the largest k or w value.
	MaxWindow = SeqModulus - 1
)

type sentFrame struct {
	seq uint16
	at  time.Time
}

// SeqController keeps the send and receive sequence state of one link.
//
// It tracks the send times of unacknowledged I frames in send order and the number of
// received I frames not yet acknowledged towards the peer. All methods are safe for
// concurrent use.
type SeqController struct {
	mu          sync.Mutex
	k           int
	w           int
	sendSeq     uint16
	recvSeq     uint16
	unacked     int
	outstanding queue.Queue[sentFrame]
}

// NewSeqController returns a controller with send window k and acknowledgment
// threshold w.
func NewSeqController(k, w int) (*SeqController, error) {
	if k < 1 || k > MaxWindow {
		return nil, fmt.Errorf("k %d out of range [1, %d]", k, MaxWindow)
	}
	if w < 1 || w > k {
		return nil, fmt.Errorf("w %d out of range [1, %d]", w, k)
	}

	return &SeqController{k: k, w: w, outstanding: queue.NewSliceQueue[sentFrame](k)}, nil
}

// K returns the send window size.
func (sc *SeqController) K() int { return sc.k }

// W returns the acknowledgment threshold.
func (sc *SeqController) W() int { return sc.w }

// NextSend reserves the next send sequence number for an I frame sent at now and
// returns it together with the receive sequence number the frame acknowledges.
//
// It returns ErrWindowFull when k frames are outstanding.
func (sc *SeqController) NextSend(now time.Time) (send uint16, recv uint16, err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.outstanding.Length() >= sc.k {
		return 0, 0, ErrWindowFull
	}

	send = sc.sendSeq
	sc.outstanding.Enqueue(sentFrame{seq: send, at: now})
	sc.sendSeq = (sc.sendSeq + 1) & seqMask
	sc.unacked = 0

	return send, sc.recvSeq, nil
}

// AckSent marks all received I frames acknowledged and returns the receive sequence
// number to put into an S frame.
func (sc *SeqController) AckSent() uint16 {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.unacked = 0

	return sc.recvSeq
}

// Acknowledge processes the receive sequence number of an I or S frame from the peer.
// It releases every outstanding frame before recv and returns how many were released.
//
// recv must lie between the oldest outstanding send sequence number and the next send
// sequence number, modulo SeqModulus. Anything else is ErrSeqViolation.
func (sc *SeqController) Acknowledge(recv uint16) (int, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	oldest, ok := sc.outstanding.Peek()
	if !ok {
		if recv != sc.sendSeq {
			return 0, fmt.Errorf("%w: acknowledged %d, next send %d with nothing outstanding", ErrSeqViolation, recv, sc.sendSeq)
		}

		return 0, nil
	}

	n := sc.outstanding.Length()
	d := int((recv - oldest.seq) & seqMask)
	if d > n {
		return 0, fmt.Errorf("%w: acknowledged %d outside [%d, %d]", ErrSeqViolation, recv, oldest.seq, sc.sendSeq)
	}

	for range d {
		sc.outstanding.Dequeue()
	}

	return d, nil
}

// Receive processes the send sequence number of a received I frame. It returns true
// when w received frames are unacknowledged and an acknowledgment is due.
func (sc *SeqController) Receive(send uint16) (bool, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if send != sc.recvSeq {
		return false, fmt.Errorf("%w: received send sequence %d, expected %d", ErrSeqViolation, send, sc.recvSeq)
	}

	sc.recvSeq = (sc.recvSeq + 1) & seqMask
	sc.unacked++

	return sc.unacked >= sc.w, nil
}

// Outstanding returns the number of sent I frames not yet acknowledged by the peer.
func (sc *SeqController) Outstanding() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.outstanding.Length()
}

// Unacknowledged returns the number of received I frames not yet acknowledged.
func (sc *SeqController) Unacknowledged() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.unacked
}

// OldestSend returns the send time of the oldest outstanding I frame.
func (sc *SeqController) OldestSend() (time.Time, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	oldest, ok := sc.outstanding.Peek()

	return oldest.at, ok
}

// SendSeq returns the next send sequence number.
func (sc *SeqController) SendSeq() uint16 {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.sendSeq
}

// RecvSeq returns the next expected receive sequence number.
func (sc *SeqController) RecvSeq() uint16 {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.recvSeq
}

// Reset sets both sequence numbers to start and drops all bookkeeping.
func (sc *SeqController) Reset(sendSeq, recvSeq uint16) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.sendSeq = sendSeq & seqMask
	sc.recvSeq = recvSeq & seqMask
	sc.unacked = 0
	sc.outstanding.Reset()
}
