// Package metrics wires the daemon's counters and gauges through
// github.com/VictoriaMetrics/metrics, grounded on Borislavv-adv-cache's
// pkg/prometheus/metrics/meter.go (GetOrCreateCounter/GetOrCreateGauge by
// name), simplified since kbusd exposes a handful of fixed series rather
// than per-path/per-status HTTP labels.
package metrics

import (
	"github.com/VictoriaMetrics/metrics"
)

var (
	sendsTotal    = metrics.NewCounter(`kbus_sends_total`)
	recvsTotal    = metrics.NewCounter(`kbus_recvs_total`)
	sendErrTotal  = metrics.NewCounter(`kbus_send_errors_total`)
	drainsTotal   = metrics.NewCounter(`kbus_drains_total`)
	activePeers   = metrics.NewGauge(`kbus_active_peers`, nil)
	peersGaugeVal int64
)

// IncSend records one completed multicast send.
func IncSend() { sendsTotal.Inc() }

// IncSendError records one failed send (rollback or destination gone).
func IncSendError() { sendErrTotal.Inc() }

// IncRecv records one RECV ioctl, empty or not.
func IncRecv() { recvsTotal.Inc() }

// IncDrain records one completed peer disconnect drain.
func IncDrain() { drainsTotal.Inc() }

// SetActivePeers publishes the current registered-peer count.
func SetActivePeers(n int) {
	peersGaugeVal = int64(n)
	activePeers.Set(float64(peersGaugeVal))
}

// SetQueueDepth publishes one peer's current queue depth, tracked
// per-peer since a bus may host many peers with very different traffic
// shapes.
func SetQueueDepth(peerID uint64, depth int) {
	metrics.GetOrCreateGauge(`kbus_queue_depth{peer="`+itoa(peerID)+`"}`, nil).
		Set(float64(depth))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
