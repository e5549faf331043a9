package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptkit/internal/components"
	"promptkit/internal/render"
	"promptkit/internal/server/handlers"
	"promptkit/internal/tokenizer"
)

func newTestHub() *Hub {
	return NewHub(tokenizer.NewApprox(), render.DefaultOptions(256), tokenizer.CharsPerToken)
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message queued")
		return WSMessage{}
	}
}

func update(id, doc string, offset int) []byte {
	data, _ := json.Marshal(WSMessage{
		Type: TypeUpdate,
		ID:   id,
		Request: &handlers.RenderRequest{
			CompletionRequest: components.CompletionRequest{Document: doc, Offset: offset, Path: "main.go"},
		},
	})
	return data
}

func TestNewClient(t *testing.T) {
	hub := newTestHub()
	client := NewClient(hub, nil)

	assert.Same(t, hub, client.hub)
	assert.NotNil(t, client.send)
	assert.NotEmpty(t, client.id)
	assert.False(t, client.connectedAt.IsZero())
	assert.Nil(t, client.session, "session is created on the first update")
	assert.NoError(t, client.ctx.Err())

	client.close()
	assert.Error(t, client.ctx.Err())
}

func TestClientHandleMessage(t *testing.T) {
	hub := newTestHub()
	client := NewClient(hub, nil)

	var mu sync.Mutex
	var journaled []string
	hub.SetJournal(func(res render.Result, path string) {
		mu.Lock()
		defer mu.Unlock()
		journaled = append(journaled, path)
	})

	t.Run("ping", func(t *testing.T) {
		client.handleMessage([]byte(`{"type":"ping","id":"p1"}`))
		msg := receive(t, client)
		assert.Equal(t, TypePong, msg.Type)
		assert.Equal(t, "p1", msg.ID)
	})

	t.Run("update renders a prompt", func(t *testing.T) {
		doc := "func f() {\n\treturn\n}\n"
		client.handleMessage(update("u1", doc, len("func f() {\n\t")))

		msg := receive(t, client)
		require.Equal(t, TypePrompt, msg.Type, msg.Message)
		assert.Equal(t, "u1", msg.ID)
		require.NotNil(t, msg.Result)
		assert.True(t, strings.HasSuffix(msg.Result.Prefix, "func f() {\n\t"))
		assert.Equal(t, "}\n", msg.Result.Suffix)
		require.NotNil(t, client.session)
	})

	t.Run("session persists across updates", func(t *testing.T) {
		session := client.session
		client.handleMessage(update("u2", "func f() {\n\tret\n}\n", len("func f() {\n\tret")))

		msg := receive(t, client)
		require.Equal(t, TypePrompt, msg.Type, msg.Message)
		assert.Same(t, session, client.session)
		assert.True(t, strings.HasSuffix(msg.Result.Prefix, "\tret"))
	})

	t.Run("invalid offset keeps the session", func(t *testing.T) {
		client.handleMessage(update("u3", "abc", 10))

		msg := receive(t, client)
		assert.Equal(t, TypeError, msg.Type)
		assert.Equal(t, CodeInvalidRequest, msg.Code)
		assert.Equal(t, "u3", msg.ID)
	})

	t.Run("update without request", func(t *testing.T) {
		client.handleMessage([]byte(`{"type":"update"}`))
		msg := receive(t, client)
		assert.Equal(t, CodeInvalidRequest, msg.Code)
	})

	t.Run("render failure", func(t *testing.T) {
		percent := 101
		data, _ := json.Marshal(WSMessage{
			Type: TypeUpdate,
			Request: &handlers.RenderRequest{
				CompletionRequest: components.CompletionRequest{Document: "x", Offset: 1},
				Options:           &handlers.RenderOverrides{SuffixPercent: &percent},
			},
		})
		client.handleMessage(data)
		msg := receive(t, client)
		assert.Equal(t, TypeError, msg.Type)
		assert.Equal(t, CodeRenderFailed, msg.Code)
	})

	t.Run("malformed and unknown messages", func(t *testing.T) {
		client.handleMessage([]byte("{"))
		assert.Equal(t, CodeInvalidMessage, receive(t, client).Code)

		client.handleMessage([]byte(`{"type":"subscribe"}`))
		assert.Equal(t, CodeInvalidMessage, receive(t, client).Code)
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"main.go", "main.go", ""}, journaled)
}

func TestServeWs(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, update("u1", "a = 1\n", 6)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypePrompt, msg.Type)
	assert.Equal(t, "u1", msg.ID)

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
