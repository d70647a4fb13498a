package controllers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/medilink/medilink-api/models"
	"github.com/medilink/medilink-api/services"
)

// dialLiveChat serves the chat endpoint as the given user and dials it with a
// real WebSocket client
func dialLiveChat(ctx context.Context, t *testing.T, auth0ID, role string) *websocket.Conn {
	t.Helper()

	router := setupTestRouter()
	router.GET("/ws/chat", mockAuthMiddleware(auth0ID, role, "mock-token"), LiveChat)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	})
	return conn
}

func readChatEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) chatEvent {
	t.Helper()
	var ev chatEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	return ev
}

func writeChatEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, ev chatEvent) {
	t.Helper()
	require.NoError(t, wsjson.Write(ctx, conn, ev))
}

func TestLiveChatProtocol(t *testing.T) {
	fixture := setupMessageFixture(t, true)

	store := services.NewMessageStore(fixture.db)
	seeded, err := store.Send(fixture.doctor.ID, fixture.patient.ID, "Your results are in")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialLiveChat(ctx, t, fixture.patient.Auth0ID, "patient")

	t.Run("Select delivers the history frame", func(t *testing.T) {
		writeChatEvent(ctx, t, conn, chatEvent{Type: "select", ContactID: fixture.doctor.ID})

		ev := readChatEvent(ctx, t, conn)
		assert.Equal(t, "history", ev.Type)
		assert.Equal(t, fixture.doctor.ID, ev.ContactID)
		require.Len(t, ev.Messages, 1)
		assert.Equal(t, seeded.ID, ev.Messages[0].ID)
		assert.Equal(t, "Your results are in", ev.Messages[0].Body)
	})

	t.Run("Selecting a non-contact yields an error frame", func(t *testing.T) {
		writeChatEvent(ctx, t, conn, chatEvent{Type: "select", ContactID: fixture.stranger.ID})

		ev := readChatEvent(ctx, t, conn)
		assert.Equal(t, "error", ev.Type)
		require.NotNil(t, ev.Error)
		assert.Equal(t, "NOT_A_CONTACT", ev.Error.Code)
	})

	t.Run("Selecting an unknown user yields an error frame", func(t *testing.T) {
		writeChatEvent(ctx, t, conn, chatEvent{Type: "select", ContactID: 9999})

		ev := readChatEvent(ctx, t, conn)
		assert.Equal(t, "error", ev.Type)
		require.NotNil(t, ev.Error)
		assert.Equal(t, "RECIPIENT_NOT_FOUND", ev.Error.Code)
	})

	t.Run("Unknown event types are answered, not dropped", func(t *testing.T) {
		writeChatEvent(ctx, t, conn, chatEvent{Type: "poke"})

		ev := readChatEvent(ctx, t, conn)
		assert.Equal(t, "error", ev.Type)
		require.NotNil(t, ev.Error)
		assert.Equal(t, "UNKNOWN_EVENT", ev.Error.Code)
	})

	t.Run("Send persists and echoes a message frame", func(t *testing.T) {
		// The failed selects above never replaced the doctor conversation
		writeChatEvent(ctx, t, conn, chatEvent{Type: "send", Body: "Thanks, doctor"})

		ev := readChatEvent(ctx, t, conn)
		assert.Equal(t, "message", ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, "Thanks, doctor", ev.Message.Body)
		assert.Equal(t, fixture.patient.ID, ev.Message.SenderID)
		assert.Equal(t, fixture.doctor.ID, ev.Message.ReceiverID)

		var count int64
		fixture.db.Model(&models.Message{}).Count(&count)
		assert.Equal(t, int64(2), count)
	})

	t.Run("Whitespace send is a no-op", func(t *testing.T) {
		writeChatEvent(ctx, t, conn, chatEvent{Type: "send", Body: "   "})
		writeChatEvent(ctx, t, conn, chatEvent{Type: "send", Body: "after the blank"})

		// The first frame back is the real message; the blank produced none
		ev := readChatEvent(ctx, t, conn)
		assert.Equal(t, "message", ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, "after the blank", ev.Message.Body)
	})
}

func TestLiveChatDeliversAcrossConnections(t *testing.T) {
	fixture := setupMessageFixture(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	patientConn := dialLiveChat(ctx, t, fixture.patient.Auth0ID, "patient")
	doctorConn := dialLiveChat(ctx, t, fixture.doctor.Auth0ID, "doctor")

	// Both sides open the same conversation
	writeChatEvent(ctx, t, patientConn, chatEvent{Type: "select", ContactID: fixture.doctor.ID})
	require.Equal(t, "history", readChatEvent(ctx, t, patientConn).Type)
	writeChatEvent(ctx, t, doctorConn, chatEvent{Type: "select", ContactID: fixture.patient.ID})
	require.Equal(t, "history", readChatEvent(ctx, t, doctorConn).Type)

	writeChatEvent(ctx, t, patientConn, chatEvent{Type: "send", Body: "Is the dosage still correct?"})

	// The sender gets the confirmed message back once
	echo := readChatEvent(ctx, t, patientConn)
	assert.Equal(t, "message", echo.Type)
	require.NotNil(t, echo.Message)
	assert.Equal(t, "Is the dosage still correct?", echo.Message.Body)

	// The counterpart receives it live through the change feed
	delivered := readChatEvent(ctx, t, doctorConn)
	assert.Equal(t, "message", delivered.Type)
	require.NotNil(t, delivered.Message)
	assert.Equal(t, echo.Message.ID, delivered.Message.ID)
	assert.Equal(t, fixture.patient.ID, delivered.Message.SenderID)
}
