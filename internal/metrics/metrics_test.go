// ABOUTME: Tests for stream statistics
// ABOUTME: Checks counters, snapshots and the nil receiver
package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAndSnapshot(t *testing.T) {
	s := New()

	s.PacketReceived("tcp")
	s.PacketReceived("tcp")
	s.BytesEnqueued(5120, 880)
	s.SequenceRegression()

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Packets)
	assert.Equal(t, uint64(5120), snap.BytesMoved)
	assert.Equal(t, uint64(880), snap.BytesLost)
	assert.Equal(t, uint64(1), snap.Regressions)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.packets.WithLabelValues("tcp")))
	assert.Equal(t, 880.0, testutil.ToFloat64(s.bytesLost))
}

func TestNilStatsIgnoresUpdates(t *testing.T) {
	var s *Stats

	s.PacketReceived("udp")
	s.BytesEnqueued(1, 1)
	s.ConnectAttempt("udp", false)
	s.SetConnected(true)

	assert.Equal(t, Snapshot{}, s.Snapshot())
}

func TestHandlerServesMetrics(t *testing.T) {
	s := New()
	s.ConnectAttempt("adb", true)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `androidmic_connects_total{result="ok",transport="adb"} 1`))
}
