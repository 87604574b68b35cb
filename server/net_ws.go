package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 256 << 10 // 满员计划（10 实体 x 120 路径点）的 JSON 约 40KB
	sendQueueSize  = 64
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws    *websocket.Conn
	frame int
	send  chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewClientConn 按编码选择帧类型（文本/二进制）
func NewClientConn(ws *websocket.Conn, codec Codec) *ClientConn {
	return &ClientConn{
		ws:    ws,
		frame: codec.FrameType(),
		send:  make(chan []byte, sendQueueSize),
		done:  make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃，防止阻塞 Tick）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case <-c.done:
	case c.send <- b:
	default:
	}
}

// Close 通知写协程发送关闭帧并退出；可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() { close(c.done) })
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(c.frame, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息，限流、解码后转为房间命令
func (c *ClientConn) readPump(room *Room, id ParticipantID, codec Codec, maxPerSecond int) {
	defer c.ws.Close()
	// 读泵退出时，通知房间在 Tick 线程中移除该参与者
	defer room.RequestLeave(id)
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	limiter := newRateLimiter(maxPerSecond, time.Second)
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugf("read: room=%s participant=%s: %v", room.ID, id, err)
			}
			return
		}
		handleInbound(room, id, codec, limiter, time.Now(), payload)
	}
}

// handleInbound 限流、解码后转为房间命令；超限消息每个窗口最多回执一次，避免占满房间收件箱
func handleInbound(room *Room, id ParticipantID, codec Codec, limiter *rateLimiter, now time.Time, payload []byte) {
	if !limiter.Allow(now) {
		room.Metrics().IncRateLimited()
		if limiter.ShouldNotify() {
			room.Reject(id, 0, CodeRateLimited)
		}
		return
	}
	var msg InboundMessage
	if err := codec.Decode(payload, &msg); err != nil {
		room.Reject(id, 0, CodeBadMessage)
		return
	}
	switch strings.ToLower(msg.Type) {
	case MsgPlan:
		room.OnPlan(id, msg.Seq, msg.Plans)
	default:
		room.Reject(id, msg.Seq, CodeBadMessage)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：?room=room-1&name=alice&codec=json|msgpack
func (m *RoomManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomID, err := ValidateRoomID(q.Get("room"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name, err := ValidateName(q.Get("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	codec, ok := CodecByName(q.Get("codec"))
	if !ok {
		http.Error(w, "unknown codec", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws, codec)
	p := &Participant{ID: NewParticipantID(), Name: name, Codec: codec, Conn: client}
	room, err := m.Join(roomID, p)
	if err != nil {
		Log.Errorf("join %s: %v", roomID, err)
		_ = ws.Close()
		return
	}

	go client.writePump()
	go client.readPump(room, p.ID, codec, m.cfg.MaxMsgsPerSecond)
}
