package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/pkg/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFeed(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(logger.Nop())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws/feed", func(c *gin.Context) { ServeWs(ctx, hub, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/feed"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestFeedBroadcastsPosts(t *testing.T) {
	hub, url := startFeed(t)
	all := dial(t, url)
	only := dial(t, url+"?botId=bot-2")
	assert.Equal(t, ws.TypeHello, read(t, all).Type)
	assert.Equal(t, ws.TypeHello, read(t, only).Type)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish(models.GeneratedContent{BotID: "bot-1", ContentType: models.ContentPost, Text: "first"})
	hub.Publish(models.GeneratedContent{BotID: "bot-2", ContentType: models.ContentPost, Text: "second"})

	for _, want := range []string{"first", "second"} {
		msg := read(t, all)
		assert.Equal(t, ws.TypePost, msg.Type)
		var content models.GeneratedContent
		require.NoError(t, json.Unmarshal(msg.Content, &content))
		assert.Equal(t, want, content.Text)
	}

	msg := read(t, only)
	var content models.GeneratedContent
	require.NoError(t, json.Unmarshal(msg.Content, &content))
	assert.Equal(t, "bot-2", content.BotID)
}

func TestFeedAnswersPing(t *testing.T) {
	_, url := startFeed(t)
	conn := dial(t, url)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypePing}))
	assert.Equal(t, ws.TypePong, read(t, conn).Type)
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(logger.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Publish(models.GeneratedContent{BotID: "bot-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
	assert.EqualValues(t, 10, hub.Dropped())
}

func TestReplyAfterHubClosedClientIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(logger.Nop())
	go hub.Run(ctx)

	client := &Client{ID: "c1", Send: make(chan []byte, 1), Hub: hub}
	hub.register <- client
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	assert.True(t, client.reply(ws.TypePong, nil))
	assert.False(t, client.reply(ws.TypePong, nil), "buffer full")
	<-client.Send

	hub.unregister <- client
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() {
		assert.False(t, client.reply(ws.TypePong, nil))
	})
	_, open := <-client.Send
	assert.False(t, open)
	assert.NotPanics(t, client.closeSend)
}
