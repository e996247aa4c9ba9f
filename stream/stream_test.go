package stream

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRemoveClient(t *testing.T) {
	h := newHub(8)
	c := h.AddClient("127.0.0.1:12345", "TestAgent/1.0")
	require.NotNil(t, c)
	assert.Equal(t, int64(1), h.Stats().ActiveConnections)

	h.RemoveClient(c)
	h.RemoveClient(c)
	assert.Equal(t, int64(0), h.Stats().ActiveConnections)
	select {
	case <-c.Done():
	default:
		t.Fatal("client not signalled")
	}
}

func TestConnectionLimit(t *testing.T) {
	h := newHub(8)
	for i := 0; i < MaxConcurrentConnections; i++ {
		require.NotNil(t, h.AddClient("a", "b"))
	}
	assert.Nil(t, h.AddClient("a", "b"))
	s := h.Stats()
	assert.Equal(t, int64(MaxConcurrentConnections), s.ActiveConnections)
	assert.Equal(t, int64(1), s.RejectedConnections)
}

func TestDeliverCountsDrops(t *testing.T) {
	h := newHub(8)
	fast := h.AddClient("fast", "")
	slow := h.AddClient("slow", "")
	for i := 0; i < ClientChannelBuffer; i++ {
		h.deliver(Message{Type: "fill"})
	}
	<-fast.Messages()
	h.deliver(Message{Type: "last"})

	s := h.Stats()
	assert.Equal(t, int64(2*ClientChannelBuffer+1), s.TotalMessages)
	assert.Equal(t, int64(1), s.DroppedClientMsgs)
	assert.Len(t, slow.Messages(), ClientChannelBuffer)
	assert.Equal(t, int64(ClientChannelBuffer), slow.MessagesSent)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	h := newHub(2)
	for i := 0; i < 5; i++ {
		h.Broadcast(Message{Type: "flood"})
	}
	assert.Equal(t, int64(3), h.Stats().DroppedBroadcasts)
}

func TestPublishEncodesJSON(t *testing.T) {
	h := newHub(4)
	h.PublishFPS(41.6)
	h.Publish("bad", func() {})
	require.Len(t, h.broadcast, 1)
	msg := <-h.broadcast
	assert.Equal(t, Message{Type: KindFPS, Msg: `{"fps":42}`}, msg)
}

func TestCleanupStaleConnections(t *testing.T) {
	h := newHub(4)
	now := time.Unix(1000, 0)
	h.now = func() time.Time { return now }
	stale := h.AddClient("stale", "")
	now = now.Add(CleanupInterval)
	fresh := h.AddClient("fresh", "")
	now = now.Add(CleanupInterval + time.Second)

	h.cleanupStaleConnections()
	assert.Equal(t, int64(1), h.Stats().ActiveConnections)
	select {
	case <-stale.Done():
	default:
		t.Fatal("stale client kept")
	}
	select {
	case <-fresh.Done():
		t.Fatal("fresh client dropped")
	default:
	}
}

func TestFormatSSE(t *testing.T) {
	tests := []struct {
		msg  Message
		want string
	}{
		{Message{Type: "render", Msg: `{"id":"123"}`}, "event: render\ndata: {\"id\":\"123\"}\n\n"},
		{Message{Type: "note", Msg: "a\nb"}, "event: note\ndata: a\ndata: b\n\n"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSSE(tt.msg))
	}
}

func TestServeHTTP(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var kind, data string
		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return kind, data
			case strings.HasPrefix(line, "event: "):
				kind = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	kind, _ := readEvent()
	assert.Equal(t, "connected", kind)

	h.Publish(KindRender, map[string]string{"updateType": "create"})
	kind, data := readEvent()
	assert.Equal(t, KindRender, kind)
	assert.JSONEq(t, `{"updateType":"create"}`, data)

	h.Shutdown()
	_, err = r.ReadString('\n')
	assert.Error(t, err)
}

func TestServeHTTPAfterShutdown(t *testing.T) {
	h := newHub(1)
	h.Shutdown()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
