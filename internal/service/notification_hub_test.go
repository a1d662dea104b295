package service

import (
	"context"
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
)

func dialHub(t *testing.T, hub *NotificationHub, userID uint) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotificationHubDeliversToUser(t *testing.T) {
	hub := NewNotificationHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	first := dialHub(t, hub, 7)
	second := dialHub(t, hub, 7)
	other := dialHub(t, hub, 8)
	require.Eventually(t, func() bool { return hub.Connections(7) == 2 && hub.Connections(8) == 1 }, time.Second, 10*time.Millisecond)

	hub.Notify(7, MsgLevelUp, map[string]int{"level": 2})

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type string         `json:"type"`
			Data map[string]int `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, MsgLevelUp, msg.Type)
		assert.Equal(t, 2, msg.Data["level"])
	}

	// 其他用户收不到
	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestNotificationHubUnregistersOnClose(t *testing.T) {
	hub := NewNotificationHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub, 3)
	require.Eventually(t, func() bool { return hub.Connections(3) == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Connections(3) == 0 }, 2*time.Second, 10*time.Millisecond)

	// 无连接时推送直接丢弃
	hub.Notify(3, MsgStreakReset, nil)
}

type recordingNotifier struct {
	mu    sync.Mutex
	types map[uint][]string
}

func (r *recordingNotifier) Notify(userID uint, msgType string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types == nil {
		r.types = make(map[uint][]string)
	}
	r.types[userID] = append(r.types[userID], msgType)
}

func TestProgressionNotifiesAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	rec := &recordingNotifier{}
	env.progression.Notifier = rec

	env.addUser(t, 1)
	m := env.addModule(t, "Arrays", 1)
	p := env.addProblem(t, m.ID, "Two Sum", "hard", 50, 1)

	out := env.submit(t, 1, p.ID)
	require.True(t, out.LeveledUp)

	assert.Equal(t, []string{MsgSubmissionJudged, MsgLevelUp, MsgAchievementUnlocked}, rec.types[1])
}
