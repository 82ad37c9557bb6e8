package cs104

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-iec104/asdu"
	"github.com/arloliu/go-iec104/internal/pool"
)

// The command helpers build a unit with the originator address of the connection and
// send it with Send. With WithWaitConfirmation, activation and deactivation commands
// wait for the matching confirmation of the peer.

// SingleCommand sends C_SC_NA_1, or C_SC_TA_1 when tag is not nil.
func (c *Connection) SingleCommand(ctx context.Context, commonAddr uint16, ioa uint32, sco asdu.SCO, tag *asdu.Time56) error {
	return c.sendCommand(ctx, asdu.CScNa1, asdu.CScTa1, asdu.Activation, commonAddr, ioa, tag, sco)
}

// DoubleCommand sends C_DC_NA_1, or C_DC_TA_1 when tag is not nil.
func (c *Connection) DoubleCommand(ctx context.Context, commonAddr uint16, ioa uint32, dco asdu.DCO, tag *asdu.Time56) error {
	return c.sendCommand(ctx, asdu.CDcNa1, asdu.CDcTa1, asdu.Activation, commonAddr, ioa, tag, dco)
}

// RegulatingStepCommand sends C_RC_NA_1, or C_RC_TA_1 when tag is not nil.
func (c *Connection) RegulatingStepCommand(ctx context.Context, commonAddr uint16, ioa uint32, rco asdu.RCO, tag *asdu.Time56) error {
	return c.sendCommand(ctx, asdu.CRcNa1, asdu.CRcTa1, asdu.Activation, commonAddr, ioa, tag, rco)
}

// SetNormalizedValueCommand sends C_SE_NA_1, or C_SE_TA_1 when tag is not nil.
func (c *Connection) SetNormalizedValueCommand(ctx context.Context, commonAddr uint16, ioa uint32, value asdu.NormalizedValue, qos asdu.QOS, tag *asdu.Time56) error {
	return c.sendCommand(ctx, asdu.CSeNa1, asdu.CSeTa1, asdu.Activation, commonAddr, ioa, tag, value, qos)
}

// SetScaledValueCommand sends C_SE_NB_1, or C_SE_TB_1 when tag is not nil.
func (c *Connection) SetScaledValueCommand(ctx context.Context, commonAddr uint16, ioa uint32, value asdu.ScaledValue, qos asdu.QOS, tag *asdu.Time56) error {
	return c.sendCommand(ctx, asdu.CSeNb1, asdu.CSeTb1, asdu.Activation, commonAddr, ioa, tag, value, qos)
}

// SetShortFloatCommand sends C_SE_NC_1, or C_SE_TC_1 when tag is not nil.
func (c *Connection) SetShortFloatCommand(ctx context.Context, commonAddr uint16, ioa uint32, value asdu.ShortFloat, qos asdu.QOS, tag *asdu.Time56) error {
	return c.sendCommand(ctx, asdu.CSeNc1, asdu.CSeTc1, asdu.Activation, commonAddr, ioa, tag, value, qos)
}

// BitStringCommand sends C_BO_NA_1, or C_BO_TA_1 when tag is not nil.
func (c *Connection) BitStringCommand(ctx context.Context, commonAddr uint16, ioa uint32, value asdu.BitString, tag *asdu.Time56) error {
	return c.sendCommand(ctx, asdu.CBoNa1, asdu.CBoTa1, asdu.Activation, commonAddr, ioa, tag, value)
}

// Interrogation sends a station or group interrogation C_IC_NA_1.
func (c *Connection) Interrogation(ctx context.Context, commonAddr uint16, qoi asdu.QOI) error {
	return c.sendCommand(ctx, asdu.CIcNa1, 0, asdu.Activation, commonAddr, 0, nil, qoi)
}

// CounterInterrogation sends C_CI_NA_1.
func (c *Connection) CounterInterrogation(ctx context.Context, commonAddr uint16, qcc asdu.QCC) error {
	return c.sendCommand(ctx, asdu.CCiNa1, 0, asdu.Activation, commonAddr, 0, nil, qcc)
}

// ReadCommand sends C_RD_NA_1 for one information object.
func (c *Connection) ReadCommand(ctx context.Context, commonAddr uint16, ioa uint32) error {
	return c.sendCommand(ctx, asdu.CRdNa1, 0, asdu.Request, commonAddr, ioa, nil)
}

// SynchronizeClocks sends C_CS_NA_1 carrying t and returns the encoded time tag.
func (c *Connection) SynchronizeClocks(ctx context.Context, commonAddr uint16, t time.Time) (asdu.Time56, error) {
	tag, err := asdu.NewTime56(t, false)
	if err != nil {
		return asdu.Time56{}, err
	}

	return tag, c.sendCommand(ctx, asdu.CCsNa1, 0, asdu.Activation, commonAddr, 0, nil, tag)
}

// TestCommand sends C_TS_NA_1 with the fixed test bit pattern.
func (c *Connection) TestCommand(ctx context.Context, commonAddr uint16) error {
	return c.sendCommand(ctx, asdu.CTsNa1, 0, asdu.Activation, commonAddr, 0, nil, asdu.FBP{})
}

// TestCommandWithTimeTag sends C_TS_TA_1 with the test sequence counter tsc.
func (c *Connection) TestCommandWithTimeTag(ctx context.Context, commonAddr uint16, tsc asdu.TestSequenceCounter, t time.Time) error {
	tag, err := asdu.NewTime56(t, false)
	if err != nil {
		return err
	}

	return c.sendCommand(ctx, asdu.CTsTa1, 0, asdu.Activation, commonAddr, 0, nil, tsc, tag)
}

// ResetProcessCommand sends C_RP_NA_1.
func (c *Connection) ResetProcessCommand(ctx context.Context, commonAddr uint16, qrp asdu.QRP) error {
	return c.sendCommand(ctx, asdu.CRpNa1, 0, asdu.Activation, commonAddr, 0, nil, qrp)
}

// DelayAcquisitionCommand sends C_CD_NA_1 with the cause Activation.
func (c *Connection) DelayAcquisitionCommand(ctx context.Context, commonAddr uint16, delay time.Duration) error {
	cp16, err := asdu.NewTime16(delay)
	if err != nil {
		return err
	}

	return c.sendCommand(ctx, asdu.CCdNa1, 0, asdu.Activation, commonAddr, 0, nil, cp16)
}

// ParameterNormalizedValueCommand sends P_ME_NA_1.
func (c *Connection) ParameterNormalizedValueCommand(ctx context.Context, commonAddr uint16, ioa uint32, value asdu.NormalizedValue, qpm asdu.QPM) error {
	return c.sendCommand(ctx, asdu.PMeNa1, 0, asdu.Activation, commonAddr, ioa, nil, value, qpm)
}

// ParameterScaledValueCommand sends P_ME_NB_1.
func (c *Connection) ParameterScaledValueCommand(ctx context.Context, commonAddr uint16, ioa uint32, value asdu.ScaledValue, qpm asdu.QPM) error {
	return c.sendCommand(ctx, asdu.PMeNb1, 0, asdu.Activation, commonAddr, ioa, nil, value, qpm)
}

// ParameterShortFloatCommand sends P_ME_NC_1.
func (c *Connection) ParameterShortFloatCommand(ctx context.Context, commonAddr uint16, ioa uint32, value asdu.ShortFloat, qpm asdu.QPM) error {
	return c.sendCommand(ctx, asdu.PMeNc1, 0, asdu.Activation, commonAddr, ioa, nil, value, qpm)
}

// ParameterActivation sends P_AC_NA_1 with the cause Activation, or Deactivation when
// deactivate is set.
func (c *Connection) ParameterActivation(ctx context.Context, commonAddr uint16, ioa uint32, qpa asdu.QPA, deactivate bool) error {
	cause := asdu.Activation
	if deactivate {
		cause = asdu.Deactivation
	}

	return c.sendCommand(ctx, asdu.PAcNa1, 0, cause, commonAddr, ioa, nil, qpa)
}

// FileReady sends F_FR_NA_1.
func (c *Connection) FileReady(ctx context.Context, commonAddr uint16, ioa uint32, nof asdu.NameOfFile, lof asdu.LengthOfFile, frq asdu.FRQ) error {
	return c.sendFile(ctx, asdu.FFrNa1, commonAddr, ioa, nof, lof, frq)
}

// SectionReady sends F_SR_NA_1.
func (c *Connection) SectionReady(ctx context.Context, commonAddr uint16, ioa uint32, nof asdu.NameOfFile, nos asdu.NameOfSection, lof asdu.LengthOfFile, srq asdu.SRQ) error {
	return c.sendFile(ctx, asdu.FSrNa1, commonAddr, ioa, nof, nos, lof, srq)
}

// CallOrSelectFiles sends F_SC_NA_1 to call a directory, or select or call a file or
// section.
func (c *Connection) CallOrSelectFiles(ctx context.Context, commonAddr uint16, ioa uint32, nof asdu.NameOfFile, nos asdu.NameOfSection, scq asdu.SCQ) error {
	return c.sendFile(ctx, asdu.FScNa1, commonAddr, ioa, nof, nos, scq)
}

// LastSectionOrSegment sends F_LS_NA_1.
func (c *Connection) LastSectionOrSegment(ctx context.Context, commonAddr uint16, ioa uint32, nof asdu.NameOfFile, nos asdu.NameOfSection, lsq asdu.LSQ, chs asdu.CHS) error {
	return c.sendFile(ctx, asdu.FLsNa1, commonAddr, ioa, nof, nos, lsq, chs)
}

// AckFileOrSection sends F_AF_NA_1.
func (c *Connection) AckFileOrSection(ctx context.Context, commonAddr uint16, ioa uint32, nof asdu.NameOfFile, nos asdu.NameOfSection, afq asdu.AFQ) error {
	return c.sendFile(ctx, asdu.FAfNa1, commonAddr, ioa, nof, nos, afq)
}

// SendSegment sends F_SG_NA_1 carrying one segment of a section.
func (c *Connection) SendSegment(ctx context.Context, commonAddr uint16, ioa uint32, nof asdu.NameOfFile, nos asdu.NameOfSection, data []byte) error {
	seg, err := asdu.NewSegment(data)
	if err != nil {
		return err
	}

	return c.sendFile(ctx, asdu.FSgNa1, commonAddr, ioa, nof, nos, seg)
}

// DirectoryEntry is one file of a directory listing.
type DirectoryEntry struct {
	Name     asdu.NameOfFile
	Length   asdu.LengthOfFile
	Status   asdu.SOF
	Creation asdu.Time56
}

// SendDirectory sends F_DR_TA_1 listing entries as a sequence starting at ioa.
func (c *Connection) SendDirectory(ctx context.Context, commonAddr uint16, ioa uint32, entries []DirectoryEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: empty directory", asdu.ErrInvalidArgument)
	}

	objs := make([]asdu.InformationObject, len(entries))
	for i, e := range entries {
		objs[i] = asdu.NewObject(ioa+uint32(i), e.Name, e.Length, e.Status, e.Creation)
	}

	u, err := asdu.NewUnit(asdu.FDrTa1, true, c.cot(asdu.FileTransfer), commonAddr, objs...)
	if err != nil {
		return err
	}

	return c.Send(ctx, u)
}

// QueryLog sends F_SC_NB_1 requesting the archive file nof between start and stop.
func (c *Connection) QueryLog(ctx context.Context, commonAddr uint16, ioa uint32, nof asdu.NameOfFile, start time.Time, stop time.Time) error {
	from, err := asdu.NewTime56(start, false)
	if err != nil {
		return err
	}
	to, err := asdu.NewTime56(stop, false)
	if err != nil {
		return err
	}

	return c.sendFile(ctx, asdu.FScNb1, commonAddr, ioa, nof, from, to)
}

func (c *Connection) cot(cause asdu.Cause) asdu.COT {
	cot := asdu.NewCOT(cause)
	cot.Originator = c.cfg.originator

	return cot
}

func (c *Connection) sendFile(ctx context.Context, typeID asdu.TypeID, commonAddr uint16, ioa uint32, elems ...asdu.Element) error {
	u, err := asdu.NewUnit(typeID, false, c.cot(asdu.FileTransfer), commonAddr, asdu.NewObject(ioa, elems...))
	if err != nil {
		return err
	}

	return c.Send(ctx, u)
}

// sendCommand builds and sends a single object command. taggedType replaces typeID
// when tag is set.
func (c *Connection) sendCommand(ctx context.Context, typeID, taggedType asdu.TypeID, cause asdu.Cause, commonAddr uint16, ioa uint32, tag *asdu.Time56, elems ...asdu.Element) error {
	if tag != nil {
		if taggedType == 0 {
			return fmt.Errorf("%w: %s has no time tag", asdu.ErrInvalidArgument, typeID)
		}
		typeID = taggedType
		elems = append(elems, *tag)
	}

	u, err := asdu.NewUnit(typeID, false, c.cot(cause), commonAddr, asdu.NewObject(ioa, elems...))
	if err != nil {
		return err
	}

	if c.cfg.responseTimeout <= 0 || (cause != asdu.Activation && cause != asdu.Deactivation) {
		return c.Send(ctx, u)
	}

	return c.sendAndWait(ctx, u)
}

// sendAndWait sends u and waits for the confirmation of the peer.
func (c *Connection) sendAndWait(ctx context.Context, u *asdu.Unit) error {
	key := confirmKey{typeID: u.Type(), commonAddr: u.CommonAddr(), address: u.FirstAddress()}
	ch := make(chan *asdu.Unit, 1)
	if _, loaded := c.pending.LoadOrStore(key, ch); loaded {
		return fmt.Errorf("%w: %s ca=%d ioa=%d", ErrConfirmationPending, key.typeID, key.commonAddr, key.address)
	}
	defer c.releasePending(key, ch)

	if err := c.Send(ctx, u); err != nil {
		return err
	}

	timer := pool.GetTimer(c.cfg.responseTimeout)
	defer pool.PutTimer(timer)

	select {
	case con, ok := <-ch:
		if !ok {
			return c.closedErr()
		}
		if con.COT().Negative {
			return fmt.Errorf("%w: %s", ErrNegativeConfirmation, con)
		}

		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s ca=%d ioa=%d", ErrResponseTimeout, key.typeID, key.commonAddr, key.address)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return c.closedErr()
	}
}

// resolvePending hands a received confirmation to the command waiting for it.
func (c *Connection) resolvePending(u *asdu.Unit) {
	if u.Cause() != asdu.ActivationCon && u.Cause() != asdu.DeactivationCon {
		return
	}

	key := confirmKey{typeID: u.Type(), commonAddr: u.CommonAddr(), address: u.FirstAddress()}
	ch, ok := c.pending.LoadAndDelete(key)
	if !ok {
		return
	}

	select {
	case ch <- u:
	default:
	}
}

// releasePending removes the entry of key unless another command registered it since.
func (c *Connection) releasePending(key confirmKey, ch chan *asdu.Unit) {
	c.pending.Compute(key, func(old chan *asdu.Unit, loaded bool) (chan *asdu.Unit, bool) {
		return old, !loaded || old == ch
	})
}

// dropPending releases every waiting command after the connection closed.
func (c *Connection) dropPending() {
	c.pending.Range(func(key confirmKey, ch chan *asdu.Unit) bool {
		if _, ok := c.pending.LoadAndDelete(key); ok {
			close(ch)
		}

		return true
	})
}
