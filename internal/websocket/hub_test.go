package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"requisition/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type tokenResolver map[string]identity.Identity

func (r tokenResolver) ResolveIdentity(_ context.Context, token string) (identity.Identity, error) {
	id, ok := r[token]
	if !ok {
		return identity.Identity{}, errors.New("unknown token")
	}
	return id, nil
}

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	resolver := tokenResolver{"good": {ID: uuid.New(), Email: "clerk@example.com"}}

	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		ServeWs(hub, c, resolver)
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastsToConnectedClients(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()
	server := newTestServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "?token=good"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	event := `{"type":"requisition.approved","requisition_id":1}`
	hub.Publish([]byte(event))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(message) != event {
		t.Errorf("message = %s, want %s", message, event)
	}

	_ = conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestServeWs_RejectsUnauthenticated(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()
	server := newTestServer(t, hub)

	for _, query := range []string{"", "?token=forged"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, query), nil)
		if err == nil {
			t.Fatalf("dial %q succeeded, want rejection", query)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("dial %q response = %v, want 401", query, resp)
		}
	}
	if hub.ClientCount() != 0 {
		t.Errorf("clients = %d, want 0", hub.ClientCount())
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer*2; i++ {
			hub.Publish([]byte("event"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}
