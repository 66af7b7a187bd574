package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	ws "github.com/queez/quizbots/internal/websocket"
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// echoServer upgrades and echoes every text frame back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectSendReceive(t *testing.T) {
	srv := echoServer(t)

	conn := ws.New(ws.Config{URL: wsURL(srv)})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Send([]byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	data, err := conn.Receive(time.Now().Add(2 * time.Second))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(data) != `{"type":"ping"}` {
		t.Fatalf("unexpected echo: %s", data)
	}

	m := conn.Metrics()
	if m.MessagesSent != 1 || m.MessagesReceived != 1 {
		t.Fatalf("unexpected counters: %+v", m)
	}
	if m.ConnectDuration <= 0 {
		t.Fatal("connect duration not recorded")
	}
}

func TestConnectRefused(t *testing.T) {
	conn := ws.New(ws.Config{URL: "ws://127.0.0.1:1", HandshakeTimeout: time.Second})
	if err := conn.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestDoubleConnect(t *testing.T) {
	srv := echoServer(t)

	conn := ws.New(ws.Config{URL: wsURL(srv)})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Connect(context.Background()); err == nil {
		t.Fatal("expected error on second connect")
	}
}

func TestSendBeforeConnect(t *testing.T) {
	conn := ws.New(ws.Config{URL: "ws://unused"})
	if err := conn.Send([]byte("x")); err != ws.ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestReceiveDeadline(t *testing.T) {
	srv := echoServer(t)

	conn := ws.New(ws.Config{URL: wsURL(srv)})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	start := time.Now()
	if _, err := conn.Receive(time.Now().Add(100 * time.Millisecond)); err == nil {
		t.Fatal("expected deadline error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("deadline not honored, waited %s", time.Since(start))
	}
}

func TestCloseUnblocksReceive(t *testing.T) {
	srv := echoServer(t)

	conn := ws.New(ws.Config{URL: wsURL(srv)})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Receive(time.Time{})
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	conn.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected read error after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not unblock after close")
	}

	// Close again must be a no-op.
	if err := conn.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
