package cs104

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-iec104/apci"
)

// Collector exports the metrics of servers and connections as Prometheus metrics.
//
// Connections of an added server are collected while they are live. Connections added
// with AddConnection are dropped after they closed.
type Collector struct {
	mu      sync.RWMutex
	servers []*Server
	conns   *xsync.MapOf[string, *Connection]

	framesSentDesc   *prometheus.Desc
	framesRecvDesc   *prometheus.Desc
	unitsDeliverDesc *prometheus.Desc
	unitsDropDesc    *prometheus.Desc
	decodeErrDesc    *prometheus.Desc
	timerExpireDesc  *prometheus.Desc
	outstandingDesc  *prometheus.Desc
	linkActiveDesc   *prometheus.Desc
	acceptDesc       *prometheus.Desc
	rejectDesc       *prometheus.Desc
	acceptErrDesc    *prometheus.Desc
	activeConnsDesc  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector with metric names under namespace.
func NewCollector(namespace string) *Collector {
	connLabels := []string{"conn_id", "remote"}
	serverLabels := []string{"addr"}

	return &Collector{
		conns: xsync.NewMapOf[string, *Connection](),

		framesSentDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "connection", "frames_sent_total"),
			"Total number of frames sent, by format",
			append(connLabels, "format"), nil,
		),
		framesRecvDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "connection", "frames_received_total"),
			"Total number of frames received, by format",
			append(connLabels, "format"), nil,
		),
		unitsDeliverDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "connection", "units_delivered_total"),
			"Total number of units delivered to the handler",
			connLabels, nil,
		),
		unitsDropDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "connection", "units_dropped_total"),
			"Total number of units received while data transfer was stopped",
			connLabels, nil,
		),
		decodeErrDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "connection", "decode_errors_total"),
			"Total number of malformed frames and units",
			connLabels, nil,
		),
		timerExpireDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "connection", "timer_expiries_total"),
			"Total number of timer expiries, by timer",
			append(connLabels, "timer"), nil,
		),
		outstandingDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "connection", "outstanding_frames"),
			"Number of sent I frames not yet acknowledged",
			connLabels, nil,
		),
		linkActiveDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "connection", "link_active"),
			"Whether data transfer is started (1 = active)",
			connLabels, nil,
		),
		acceptDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "server", "accepted_total"),
			"Total number of accepted connections",
			serverLabels, nil,
		),
		rejectDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "server", "rejected_total"),
			"Total number of connections rejected by the admission policy",
			serverLabels, nil,
		),
		acceptErrDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "server", "accept_errors_total"),
			"Total number of failed accept calls",
			serverLabels, nil,
		),
		activeConnsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "server", "active_connections"),
			"Number of live connections",
			serverLabels, nil,
		),
	}
}

// AddServer adds a server and its live connections to the collector.
func (c *Collector) AddServer(s *Server) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.servers = append(c.servers, s)
}

// AddConnection adds a connection, typically a dialed one, to the collector.
func (c *Collector) AddConnection(conn *Connection) {
	c.conns.Store(conn.ID(), conn)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.framesSentDesc
	ch <- c.framesRecvDesc
	ch <- c.unitsDeliverDesc
	ch <- c.unitsDropDesc
	ch <- c.decodeErrDesc
	ch <- c.timerExpireDesc
	ch <- c.outstandingDesc
	ch <- c.linkActiveDesc
	ch <- c.acceptDesc
	ch <- c.rejectDesc
	ch <- c.acceptErrDesc
	ch <- c.activeConnsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	servers := append([]*Server(nil), c.servers...)
	c.mu.RUnlock()

	for _, s := range servers {
		addr := s.cfg.address
		m := s.Metrics()
		ch <- prometheus.MustNewConstMetric(c.acceptDesc, prometheus.CounterValue, float64(m.AcceptCount.Load()), addr)
		ch <- prometheus.MustNewConstMetric(c.rejectDesc, prometheus.CounterValue, float64(m.RejectCount.Load()), addr)
		ch <- prometheus.MustNewConstMetric(c.acceptErrDesc, prometheus.CounterValue, float64(m.AcceptErrCount.Load()), addr)
		ch <- prometheus.MustNewConstMetric(c.activeConnsDesc, prometheus.GaugeValue, float64(m.ActiveConnGauge.Load()), addr)

		for _, conn := range s.Connections() {
			c.collectConnection(ch, conn)
		}
	}

	c.conns.Range(func(id string, conn *Connection) bool {
		if conn.IsClosed() {
			c.conns.Delete(id)
			return true
		}
		c.collectConnection(ch, conn)

		return true
	})
}

func (c *Collector) collectConnection(ch chan<- prometheus.Metric, conn *Connection) {
	id, remote := conn.ID(), remoteAddrString(conn.conn)
	m := conn.Metrics()

	formats := []struct {
		format apci.Format
		sent   uint64
		recv   uint64
	}{
		{apci.IFormat, m.IFrameSendCount.Load(), m.IFrameRecvCount.Load()},
		{apci.SFormat, m.SFrameSendCount.Load(), m.SFrameRecvCount.Load()},
		{apci.UFormat, m.UFrameSendCount.Load(), m.UFrameRecvCount.Load()},
	}
	for _, f := range formats {
		ch <- prometheus.MustNewConstMetric(c.framesSentDesc, prometheus.CounterValue, float64(f.sent), id, remote, f.format.String())
		ch <- prometheus.MustNewConstMetric(c.framesRecvDesc, prometheus.CounterValue, float64(f.recv), id, remote, f.format.String())
	}

	ch <- prometheus.MustNewConstMetric(c.unitsDeliverDesc, prometheus.CounterValue, float64(m.UnitDeliverCount.Load()), id, remote)
	ch <- prometheus.MustNewConstMetric(c.unitsDropDesc, prometheus.CounterValue, float64(m.UnitDropCount.Load()), id, remote)
	ch <- prometheus.MustNewConstMetric(c.decodeErrDesc, prometheus.CounterValue, float64(m.DecodeErrCount.Load()), id, remote)

	ch <- prometheus.MustNewConstMetric(c.timerExpireDesc, prometheus.CounterValue, float64(m.T1ExpireCount.Load()), id, remote, apci.T1.String())
	ch <- prometheus.MustNewConstMetric(c.timerExpireDesc, prometheus.CounterValue, float64(m.T2ExpireCount.Load()), id, remote, apci.T2.String())
	ch <- prometheus.MustNewConstMetric(c.timerExpireDesc, prometheus.CounterValue, float64(m.T3ExpireCount.Load()), id, remote, apci.T3.String())

	ch <- prometheus.MustNewConstMetric(c.outstandingDesc, prometheus.GaugeValue, float64(conn.Outstanding()), id, remote)

	active := 0.0
	if conn.IsActive() {
		active = 1
	}
	ch <- prometheus.MustNewConstMetric(c.linkActiveDesc, prometheus.GaugeValue, active, id, remote)
}
