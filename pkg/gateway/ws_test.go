package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scrubgate/scrubgate/pkg/api"
	"github.com/scrubgate/scrubgate/pkg/bus"
	"github.com/scrubgate/scrubgate/pkg/config"
)

func dialObserver(t *testing.T, g *testGateway, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", path, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// syncObserver floods the channel with pings until the socket sees one,
// proving the server-side subscription is live. The dial handshake finishes
// before the handler subscribes, so a publish straight after dialing races.
func syncObserver(t *testing.T, g *testGateway, conn *websocket.Conn, channel string) {
	t.Helper()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		tick := time.NewTicker(5 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				g.bus.Publish(context.Background(), channel, []byte("ping"))
			}
		}
	}()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	close(stop)
	<-done
	if err != nil {
		t.Fatalf("observer never came live: %v", err)
	}
}

// readFrame returns the next non-ping frame.
func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("reading frame: %v", err)
		}
		if !bytes.Equal(msg, []byte("ping")) {
			return msg
		}
	}
}

func TestObserverSocketReceivesInterceptions(t *testing.T) {
	g := newTestGateway(t, nil)
	conn := dialObserver(t, g, "/ws/prompts")
	syncObserver(t, g, conn, bus.ChannelPromptIntercept)

	g.postChat(t, "hello observers", false)

	var processing api.InterceptEvent
	if err := json.Unmarshal(readFrame(t, conn), &processing); err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	if processing.Status != "Processing…" || processing.Prompt != "hello observers" {
		t.Errorf("first event = %+v", processing)
	}

	var done api.InterceptEvent
	if err := json.Unmarshal(readFrame(t, conn), &done); err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	if !strings.Contains(done.Status, "Clean") {
		t.Errorf("second event = %+v", done)
	}
}

func TestObserverSocketMultipleObservers(t *testing.T) {
	g := newTestGateway(t, nil)
	a := dialObserver(t, g, "/ws/prompts")
	syncObserver(t, g, a, bus.ChannelPromptIntercept)
	b := dialObserver(t, g, "/ws/prompts")
	syncObserver(t, g, b, bus.ChannelPromptIntercept)

	if err := g.bus.Publish(context.Background(), bus.ChannelPromptIntercept,
		[]byte(`{"prompt":"x","sanitized":"","status":"fan-out"}`)); err != nil {
		t.Fatal(err)
	}

	for i, conn := range []*websocket.Conn{a, b} {
		if msg := readFrame(t, conn); !strings.Contains(string(msg), `"status":"fan-out"`) {
			t.Errorf("observer %d got %s", i, msg)
		}
	}
}

func TestDebugSocketRequiresDevMode(t *testing.T) {
	g := newTestGateway(t, nil)

	resp, err := http.Get(g.server.URL + "/ws/debug")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without dev mode", resp.StatusCode)
	}

	dev := newTestGateway(t, func(cfg *config.Config) {
		cfg.DevMode = true
	})
	conn := dialObserver(t, dev, "/ws/debug")
	syncObserver(t, dev, conn, bus.ChannelDebugTraces)

	if err := dev.bus.Publish(context.Background(), bus.ChannelDebugTraces, []byte(`{"msg":"trace"}`)); err != nil {
		t.Fatal(err)
	}
	if msg := readFrame(t, conn); string(msg) != `{"msg":"trace"}` {
		t.Errorf("frame = %s", msg)
	}
}
