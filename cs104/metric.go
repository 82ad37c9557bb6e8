package cs104

import (
	"sync/atomic"

	"github.com/arloliu/go-iec104/apci"
)

// ConnectionMetrics contains atomic metrics for a connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc, or
// exported with Collector.
type ConnectionMetrics struct {
	// IFrameSendCount indicates the number of I frames sent.
	IFrameSendCount atomic.Uint64
	// IFrameRecvCount indicates the number of I frames received.
	IFrameRecvCount atomic.Uint64
	// SFrameSendCount indicates the number of S frames sent.
	SFrameSendCount atomic.Uint64
	// SFrameRecvCount indicates the number of S frames received.
	SFrameRecvCount atomic.Uint64
	// UFrameSendCount indicates the number of U frames sent.
	UFrameSendCount atomic.Uint64
	// UFrameRecvCount indicates the number of U frames received.
	UFrameRecvCount atomic.Uint64

	// UnitDeliverCount indicates the number of units delivered to the handler.
	UnitDeliverCount atomic.Uint64
	// UnitDropCount indicates the number of units received while data transfer was stopped.
	UnitDropCount atomic.Uint64
	// DecodeErrCount indicates the number of frames or units that failed to decode.
	DecodeErrCount atomic.Uint64

	// T1ExpireCount indicates the number of t1 expiries.
	T1ExpireCount atomic.Uint64
	// T2ExpireCount indicates the number of t2 expiries.
	T2ExpireCount atomic.Uint64
	// T3ExpireCount indicates the number of t3 expiries.
	T3ExpireCount atomic.Uint64
}

func (m *ConnectionMetrics) incFrameSendCount(f apci.Format) {
	switch f {
	case apci.IFormat:
		m.IFrameSendCount.Add(1)
	case apci.SFormat:
		m.SFrameSendCount.Add(1)
	case apci.UFormat:
		m.UFrameSendCount.Add(1)
	}
}

func (m *ConnectionMetrics) incFrameRecvCount(f apci.Format) {
	switch f {
	case apci.IFormat:
		m.IFrameRecvCount.Add(1)
	case apci.SFormat:
		m.SFrameRecvCount.Add(1)
	case apci.UFormat:
		m.UFrameRecvCount.Add(1)
	}
}

func (m *ConnectionMetrics) incTimerExpireCount(kind apci.TimerKind) {
	switch kind {
	case apci.T1:
		m.T1ExpireCount.Add(1)
	case apci.T2:
		m.T2ExpireCount.Add(1)
	case apci.T3:
		m.T3ExpireCount.Add(1)
	}
}

func (m *ConnectionMetrics) incUnitDeliverCount() {
	m.UnitDeliverCount.Add(1)
}

func (m *ConnectionMetrics) incUnitDropCount() {
	m.UnitDropCount.Add(1)
}

func (m *ConnectionMetrics) incDecodeErrCount() {
	m.DecodeErrCount.Add(1)
}

// ServerMetrics contains atomic metrics for a server.
type ServerMetrics struct {
	// AcceptCount indicates the number of connections accepted and started.
	AcceptCount atomic.Uint64
	// RejectCount indicates the number of connections closed by the admission policy.
	RejectCount atomic.Uint64
	// AcceptErrCount indicates the number of failed accept calls.
	AcceptErrCount atomic.Uint64
	// ActiveConnGauge indicates the number of live connections.
	ActiveConnGauge atomic.Int64
}
