package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"blocklag/internal/model"
)

// newHubServer serves hub upgrades with a fixed hello frame.
func newHubServer(t *testing.T, h *Hub, hello []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.ServeWS(w, r, hello); err != nil {
			t.Logf("serve ws: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q failed: %v", data, err)
	}
	return ev
}

func waitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestHub_HelloDelivered(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	server := newHubServer(t, h, []byte(`{"type":"snapshot"}`))

	conn := dialHub(t, server)

	ev := readEvent(t, conn)
	if ev.Type != "snapshot" {
		t.Errorf("first frame type = %q, want snapshot", ev.Type)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	server := newHubServer(t, h, nil)

	first := dialHub(t, server)
	second := dialHub(t, server)
	waitFor(t, time.Second, "both clients registered", func() bool {
		return h.ClientCount() == 2
	})

	h.ObserveSample(model.ModeFinal, model.Sample{Height: 1001, Latency: 1.5})

	for _, conn := range []*websocket.Conn{first, second} {
		ev := readEvent(t, conn)
		if ev.Type != "sample" {
			t.Errorf("frame type = %q, want sample", ev.Type)
		}
		if ev.Mode != "final" {
			t.Errorf("frame mode = %q, want final", ev.Mode)
		}
		if ev.Sample == nil || ev.Sample.Height != 1001 {
			t.Errorf("frame sample = %+v, want height 1001", ev.Sample)
		}
	}
}

func TestHub_ObserveResetEvent(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	server := newHubServer(t, h, nil)

	conn := dialHub(t, server)
	waitFor(t, time.Second, "client registered", func() bool {
		return h.ClientCount() == 1
	})

	h.ObserveReset(model.ModeOptimistic)

	ev := readEvent(t, conn)
	if ev.Type != "reset" {
		t.Errorf("frame type = %q, want reset", ev.Type)
	}
	if ev.Mode != "optimistic" {
		t.Errorf("frame mode = %q, want optimistic", ev.Mode)
	}
	if ev.Sample != nil {
		t.Errorf("reset frame carries a sample: %+v", ev.Sample)
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	// A client with a single-slot queue and no write pump backs up
	// after one frame.
	c := &streamClient{send: make(chan []byte, 1)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.ObserveSample(model.ModeFinal, model.Sample{Height: 1})
	if got := h.ClientCount(); got != 1 {
		t.Fatalf("ClientCount after first frame = %d, want 1", got)
	}

	h.ObserveSample(model.ModeFinal, model.Sample{Height: 2})
	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount after overflow = %d, want 0", got)
	}

	// The queue still holds the first frame, then reports closed.
	if buf, ok := <-c.send; !ok || len(buf) == 0 {
		t.Error("expected the queued frame before close")
	}
	if _, ok := <-c.send; ok {
		t.Error("send queue not closed after drop")
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewHub(nil)
	server := newHubServer(t, h, nil)

	conn := dialHub(t, server)
	waitFor(t, time.Second, "client registered", func() bool {
		return h.ClientCount() == 1
	})

	h.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected read to fail after Close")
	}
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("close error = %v, want normal closure", err)
	}
	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount after Close = %d, want 0", got)
	}

	// New upgrades are refused once closed.
	refused, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err == nil {
		refused.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := refused.ReadMessage(); err == nil {
			t.Error("expected refused connection to die")
		}
		refused.Close()
	}
	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount after refused dial = %d, want 0", got)
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	server := newHubServer(t, h, nil)

	conn := dialHub(t, server)
	waitFor(t, time.Second, "client registered", func() bool {
		return h.ClientCount() == 1
	})

	conn.Close()
	waitFor(t, time.Second, "client unregistered", func() bool {
		return h.ClientCount() == 0
	})
}
