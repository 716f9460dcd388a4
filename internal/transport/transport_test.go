package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEndpoint_NextPortUp(t *testing.T) {
	if got := Endpoint("192.168.43.1", 8080); got != "ws://192.168.43.1:8081/" {
		t.Errorf("unexpected endpoint %q", got)
	}
	if got := Endpoint("::1", 8080); got != "ws://[::1]:8081/" {
		t.Errorf("unexpected IPv6 endpoint %q", got)
	}
}

func TestEndpointFromPageURL(t *testing.T) {
	cases := map[string]string{
		"http://192.168.43.1:8080/blocks/index.html": "ws://192.168.43.1:8081/",
		"http://robot.local/":                        "ws://robot.local:81/",
		"https://robot.local/java":                   "ws://robot.local:444/",
	}
	for page, want := range cases {
		got, err := EndpointFromPageURL(page)
		if err != nil {
			t.Fatalf("EndpointFromPageURL(%q): %v", page, err)
		}
		if got != want {
			t.Errorf("EndpointFromPageURL(%q) = %q, want %q", page, got, want)
		}
	}
	if _, err := EndpointFromPageURL("/relative/only"); err == nil {
		t.Error("expected error for url without host")
	}
}

func TestWebSocket_EchoRoundTrip(t *testing.T) {
	up := NewUpgrader(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := NewWebSocketDialer(0, 0).Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := conn.WriteMessage([]byte(`{"namespace":"echo"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{"namespace":"echo"}` {
		t.Errorf("unexpected echo %q", got)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := conn.WriteMessage([]byte("x")); err != ErrClosed {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}
