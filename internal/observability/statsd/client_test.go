package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenUDP starts a local UDP listener and returns its address plus a
// channel of received datagrams.
func listenUDP(t *testing.T) (string, <-chan string) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	lines := make(chan string, 16)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, _, readErr := conn.ReadFrom(buf)
			if readErr != nil {
				return
			}
			lines <- string(buf[:n])
		}
	}()
	return conn.LocalAddr().String(), lines
}

func receiveLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case line := <-lines:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for statsd datagram")
		return ""
	}
}

func TestClient_Count(t *testing.T) {
	addr, lines := listenUDP(t)

	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "viewer"})
	require.NoError(t, err)
	defer client.Close()
	require.True(t, client.Enabled())

	client.Count("sessions.issued", 2, map[string]string{"result": "success"})
	assert.Equal(t, "viewer.sessions.issued:2|c|#result:success", receiveLine(t, lines))
}

func TestClient_GaugeAndTiming(t *testing.T) {
	addr, lines := listenUDP(t)

	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	defer client.Close()

	client.Gauge("sessions.active", 3.5, nil)
	assert.Equal(t, "sessions.active:3.5|g", receiveLine(t, lines))

	client.Timing("op.duration", 1500*time.Millisecond, nil)
	assert.Equal(t, "op.duration:1500|ms", receiveLine(t, lines))
}

func TestClient_TagsMergedAndSorted(t *testing.T) {
	addr, lines := listenUDP(t)

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    addr,
		GlobalTags: map[string]string{"env": "test", "result": "global"},
	})
	require.NoError(t, err)
	defer client.Close()

	client.Count("op", 1, map[string]string{"result": "success"})
	assert.Equal(t, "op:1|c|#env:test,result:success", receiveLine(t, lines))
}

func TestClient_Disabled(t *testing.T) {
	client, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:9"})
	require.NoError(t, err)
	assert.False(t, client.Enabled())

	// Must not panic or block.
	client.Count("op", 1, nil)
	client.Gauge("g", 1, nil)
	client.Timing("t", time.Second, nil)
	assert.NoError(t, client.Close())
}

func TestClient_NilSafe(t *testing.T) {
	var client *Client
	assert.False(t, client.Enabled())
	client.Count("op", 1, nil)
	client.Gauge("g", 1, nil)
	client.Timing("t", time.Second, nil)
	assert.NoError(t, client.Close())
}

func TestNormalizeMetricName(t *testing.T) {
	assert.Equal(t, "a.b", normalizeMetricName(".a..b."))
	assert.Equal(t, "a_b", normalizeMetricName("a b"))
	assert.Equal(t, "a_b", normalizeMetricName("a/b"))
	assert.Equal(t, "", normalizeMetricName("   "))
}
