package service

import (
	"algo_learn_backend/pkg/logger"
	"algo_learn_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	shardCount     = 16

	// 多实例部署时通过 Redis 频道转发到持有连接的实例
	notifyChannel = "progress_notifications"
)

// 推送消息类型
const (
	MsgSubmissionJudged    = "SUBMISSION_JUDGED"
	MsgLevelUp             = "LEVEL_UP"
	MsgAchievementUnlocked = "ACHIEVEMENT_UNLOCKED"
	MsgStreakReset         = "STREAK_RESET"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type notifyEnvelope struct {
	UserID  uint            `json:"userId"`
	Payload json.RawMessage `json:"payload"`
}

type wsClient struct {
	hub    *NotificationHub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
}

// readPump 客户端不发送业务消息，只处理 pong 与断开
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.userID))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type hubShard struct {
	mu      sync.RWMutex
	clients map[uint]map[*wsClient]struct{}
}

// NotificationHub 向在线用户推送经验、升级、成就等进度变化，同一用户可有多个连接
type NotificationHub struct {
	shards [shardCount]*hubShard
	Redis  *redis.Client

	done     chan struct{}
	stopOnce sync.Once
}

func NewNotificationHub(rdb *redis.Client) *NotificationHub {
	h := &NotificationHub{Redis: rdb, done: make(chan struct{})}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &hubShard{clients: make(map[uint]map[*wsClient]struct{})}
	}
	return h
}

func (h *NotificationHub) getShard(userID uint) *hubShard {
	return h.shards[userID%shardCount]
}

// Run 订阅跨实例频道，ctx 结束时关闭全部连接
func (h *NotificationHub) Run(ctx context.Context) {
	if h.Redis != nil {
		pubsub := h.Redis.Subscribe(ctx, notifyChannel)
		go func() {
			defer pubsub.Close()
			ch := pubsub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					var env notifyEnvelope
					if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
						logger.Log.Error("PubSub unmarshal error", zap.Error(err))
						continue
					}
					h.deliver(env.UserID, env.Payload)
				}
			}
		}()
	}

	<-ctx.Done()
	h.Stop()
}

// Stop 关闭所有本地连接
func (h *NotificationHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		closed := 0
		for i := 0; i < shardCount; i++ {
			s := h.shards[i]
			s.mu.Lock()
			for userID, set := range s.clients {
				for c := range set {
					close(c.send)
					closed++
				}
				delete(s.clients, userID)
			}
			s.mu.Unlock()
		}
		monitoring.OnlineLearners.Set(0)
		logger.Log.Info("NotificationHub stopped", zap.Int("closedConnections", closed))
	})
}

func (h *NotificationHub) registerClient(c *wsClient) bool {
	s := h.getShard(c.userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	set, ok := s.clients[c.userID]
	if !ok {
		set = make(map[*wsClient]struct{})
		s.clients[c.userID] = set
	}
	set[c] = struct{}{}
	monitoring.OnlineLearners.Inc()
	return true
}

func (h *NotificationHub) unregisterClient(c *wsClient) {
	s := h.getShard(c.userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(s.clients, c.userID)
	}
	monitoring.OnlineLearners.Dec()
}

// Connections 本实例上该用户的连接数
func (h *NotificationHub) Connections(userID uint) int {
	s := h.getShard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Notify 推送给用户的全部连接，有 Redis 时经频道广播到所有实例
func (h *NotificationHub) Notify(userID uint, msgType string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Type: msgType, Data: data})
	if err != nil {
		logger.Log.Warn("failed to encode notification", zap.String("type", msgType), zap.Error(err))
		return
	}

	if h.Redis != nil {
		raw, _ := json.Marshal(notifyEnvelope{UserID: userID, Payload: payload})
		err := h.Redis.Publish(context.Background(), notifyChannel, raw).Err()
		if err == nil {
			return
		}
		logger.Log.Warn("notification publish failed, delivering locally", zap.Error(err))
	}
	h.deliver(userID, payload)
}

func (h *NotificationHub) deliver(userID uint, payload []byte) {
	s := h.getShard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients[userID] {
		// 发送队列满时丢弃，不阻塞判题流程
		select {
		case c.send <- payload:
		default:
		}
	}
}

func (h *NotificationHub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &wsClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: userID,
	}
	if !h.registerClient(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
