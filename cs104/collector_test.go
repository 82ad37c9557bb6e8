package cs104

import (
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector_Connection(t *testing.T) {
	require := require.New(t)

	rec := newRecorder()
	conn, peer := newTestConnection(t, rec, nil)

	c := NewCollector("iec104")
	c.AddConnection(conn)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(reg.Register(c))

	// 6 frame counters, 3 unit counters, 3 timer counters and 2 gauges
	require.Equal(14, testutil.CollectAndCount(c))

	activate(t, conn, peer)
	peer.sendI(singlePoint(t, 1, true))
	rec.waitUnit(t)

	labels := fmt.Sprintf(`conn_id=%q,remote=%q`, conn.ID(), remoteAddrString(conn.conn))
	expected := fmt.Sprintf(`
# HELP iec104_connection_link_active Whether data transfer is started (1 = active)
# TYPE iec104_connection_link_active gauge
iec104_connection_link_active{%[1]s} 1
# HELP iec104_connection_units_delivered_total Total number of units delivered to the handler
# TYPE iec104_connection_units_delivered_total counter
iec104_connection_units_delivered_total{%[1]s} 1
`, labels)
	require.NoError(testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"iec104_connection_link_active", "iec104_connection_units_delivered_total"))

	expectedFrames := fmt.Sprintf(`
# HELP iec104_connection_frames_received_total Total number of frames received, by format
# TYPE iec104_connection_frames_received_total counter
iec104_connection_frames_received_total{%[1]s,format="I"} 1
iec104_connection_frames_received_total{%[1]s,format="S"} 0
iec104_connection_frames_received_total{%[1]s,format="U"} 1
`, labels)
	require.NoError(testutil.GatherAndCompare(reg, strings.NewReader(expectedFrames),
		"iec104_connection_frames_received_total"))

	require.NoError(conn.Close())
	require.Zero(testutil.CollectAndCount(c))
}

func TestCollector_Server(t *testing.T) {
	require := require.New(t)

	cfg, err := NewServerConfig("127.0.0.1:0")
	require.NoError(err)
	srv, err := NewServer(cfg, nil)
	require.NoError(err)

	c := NewCollector("iec104")
	c.AddServer(srv)

	expected := `
# HELP iec104_server_active_connections Number of live connections
# TYPE iec104_server_active_connections gauge
iec104_server_active_connections{addr="127.0.0.1:0"} 0
# HELP iec104_server_accepted_total Total number of accepted connections
# TYPE iec104_server_accepted_total counter
iec104_server_accepted_total{addr="127.0.0.1:0"} 0
`
	require.NoError(testutil.CollectAndCompare(c, strings.NewReader(expected),
		"iec104_server_active_connections", "iec104_server_accepted_total"))

	srv.metrics.AcceptCount.Add(2)
	srv.metrics.ActiveConnGauge.Add(1)
	require.InDelta(2.0, gatherValue(t, c, "iec104_server_accepted_total"), 0)
	require.InDelta(1.0, gatherValue(t, c, "iec104_server_active_connections"), 0)
	require.Equal(4, testutil.CollectAndCount(c))
}

func gatherValue(t *testing.T, c prometheus.Collector, name string) float64 {
	t.Helper()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}

		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)

	return 0
}
