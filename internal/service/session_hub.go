package service

import (
	"context"
	"encoding/json"
	"interview_pilot_backend/pkg/logger"
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
	presenceTTL    = 2 * time.Minute // 在线状态过期时间

	presenceKeyPrefix = "interview:presence:"
	lastActiveKey     = "interview:last_active"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	EventTick       = "TICK"
	EventQuestion   = "QUESTION"
	EventFeedback   = "FEEDBACK"
	EventAutoSubmit = "AUTO_SUBMIT"
	EventCompleted  = "COMPLETED"
	EventChat       = "CHAT"
)

type SessionEvent struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type HubClient struct {
	hub         *SessionHub
	conn        *websocket.Conn
	send        chan []byte
	candidateID string
}

// SessionHub 把会话事件（倒计时、出题、评分反馈、完成）推送给
// 订阅对应候选人的连接，并在 Redis 里维护在线状态。
type SessionHub struct {
	rdb *redis.Client

	mu      sync.RWMutex
	clients map[string]map[*HubClient]bool

	register   chan *HubClient
	unregister chan *HubClient
	events     chan candidateEvent
	done       chan struct{}
}

type candidateEvent struct {
	candidateID string
	payload     []byte
}

func NewSessionHub(rdb *redis.Client) *SessionHub {
	return &SessionHub{
		rdb:        rdb,
		clients:    make(map[string]map[*HubClient]bool),
		register:   make(chan *HubClient),
		unregister: make(chan *HubClient),
		events:     make(chan candidateEvent, 256),
		done:       make(chan struct{}),
	}
}

func (h *SessionHub) Run() {
	for {
		select {
		case <-h.done:
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.candidateID] == nil {
				h.clients[client.candidateID] = make(map[*HubClient]bool)
			}
			h.clients[client.candidateID][client] = true
			h.mu.Unlock()
			h.touchPresence(client.candidateID)
		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.candidateID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
					if len(set) == 0 {
						delete(h.clients, client.candidateID)
					}
				}
			}
			h.mu.Unlock()
		case evt := <-h.events:
			h.mu.RLock()
			for client := range h.clients[evt.candidateID] {
				select {
				case client.send <- evt.payload:
				default:
					// 发送缓冲积压的慢连接直接放弃本条
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *SessionHub) Stop() {
	close(h.done)
	h.mu.Lock()
	for _, set := range h.clients {
		for client := range set {
			client.conn.Close()
		}
	}
	h.clients = make(map[string]map[*HubClient]bool)
	h.mu.Unlock()
}

// Publish 非阻塞投递，事件通道满时丢弃（推送只是 UI 加速，店内状态才是权威）
func (h *SessionHub) Publish(candidateID string, evt SessionEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case h.events <- candidateEvent{candidateID: candidateID, payload: payload}:
	default:
	}
	if evt.Type == EventTick {
		h.touchPresence(candidateID)
	}
}

func (h *SessionHub) touchPresence(candidateID string) {
	if h.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.rdb.Set(ctx, presenceKeyPrefix+candidateID, time.Now().Unix(), presenceTTL)
	h.rdb.Set(ctx, lastActiveKey, candidateID, 0)
}

// LastActiveCandidate 最近活跃的候选人 id，用于 welcome-back 提示
func (h *SessionHub) LastActiveCandidate(ctx context.Context) (string, error) {
	if h.rdb == nil {
		return "", nil
	}
	id, err := h.rdb.Get(ctx, lastActiveKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

// IsOnline 候选人是否有存活连接（以 Redis 在线键为准）
func (h *SessionHub) IsOnline(ctx context.Context, candidateID string) bool {
	if h.rdb == nil {
		return false
	}
	n, err := h.rdb.Exists(ctx, presenceKeyPrefix+candidateID).Result()
	return err == nil && n > 0
}

// ServeWS 升级连接并纳入该候选人的订阅集合
func (h *SessionHub) ServeWS(w http.ResponseWriter, r *http.Request, candidateID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &HubClient{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, 64),
		candidateID: candidateID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *HubClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		// 入站消息不承载业务，纯心跳保活
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("websocket unexpected close", zap.Error(err), zap.String("candidateId", c.candidateID))
			}
			break
		}
	}
}

func (c *HubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
