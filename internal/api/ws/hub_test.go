package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/your-org/buddywatch/internal/auth"
	"github.com/your-org/buddywatch/internal/models"
	"github.com/your-org/buddywatch/pkg/dto"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	r := gin.New()
	r.GET("/ws", auth.APIKeyMiddleware(map[string]string{"ka": "alice", "kb": "bob"}), hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url, key string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-API-Key": []string{key}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversOnlyToOwner(t *testing.T) {
	hub, url := startHub(t)
	alice := dial(t, url, "ka")
	bob := dial(t, url, "kb")
	waitClients(t, hub, 2)

	id := uuid.New()
	hub.BroadcastAssetEvent(models.AssetEvent{
		Type:      models.AssetCreated,
		AssetID:   id,
		OwnerID:   "alice",
		Title:     "park",
		Thumbnail: true,
		Timestamp: time.Now(),
	})

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := alice.ReadMessage()
	if err != nil {
		t.Fatalf("alice read: %v", err)
	}
	var ev dto.WSEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != "asset.created" || ev.AssetID != id || !ev.Thumbnail {
		t.Errorf("event = %+v", ev)
	}

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Error("bob received alice's event")
	}
}

func TestHubRejectsMissingCredentials(t *testing.T) {
	_, url := startHub(t)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without credentials succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %v", resp)
	}
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url, "ka")
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}
