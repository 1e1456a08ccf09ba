package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Gopher0727/StudyHive/internal/services"
	"github.com/Gopher0727/StudyHive/pkg/mq"
)

const (
	writeWait      = 10 * time.Second    // 允许写入消息到对端的最大时间
	pongWait       = 60 * time.Second    // 允许读取下一个 pong 消息的最大时间
	pingPeriod     = (pongWait * 9) / 10 // 发送 ping 到对端的周期。必须小于 pongWait
	maxMessageSize = 8192                // 允许来自对端的最大消息大小
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ConversationLister 连接建立时获取用户参与的会话列表
type ConversationLister interface {
	ListIDsForUser(userID uint) ([]uint, error)
}

// Client 代表一个 WebSocket 连接客户端
type Client struct {
	hub             *Hub
	conn            *websocket.Conn        // WebSocket 连接
	send            chan *BroadcastMessage // 缓冲通道，用于发送消息
	userID          uint                   // 用户 ID
	conversationIDs []uint                 // 用户参与的会话 ID 列表（用于订阅）
	messageService  *services.MessageService
	presenceService *services.PresenceService
	kafkaProducer   *mq.KafkaProducer
}

// inboundEvent 客户端上行事件
// {"type": "message", "conversation_id": 1, "content": "hello"}
// {"type": "typing", "conversation_id": 1, "is_typing": true}
type inboundEvent struct {
	Type           string `json:"type"`
	ConversationID uint   `json:"conversation_id"`
	Content        string `json:"content"`
	MsgType        string `json:"msg_type"`
	IsTyping       bool   `json:"is_typing"`
}

// KafkaEnvelope 发往 Kafka 的消息信封
type KafkaEnvelope struct {
	UserID         uint                         `json:"user_id"`
	ConversationID uint                         `json:"conversation_id"`
	Content        *services.SendMessageRequest `json:"content"`
}

// readPump 泵送来自 WebSocket 连接的事件到服务层
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// 收到 Pong 说明客户端还活着，刷新在线状态，异步执行避免阻塞
		if c.presenceService != nil {
			go c.presenceService.Heartbeat(context.Background(), c.userID)
		}
		// 续期 Redis 路由键 TTL
		if c.hub != nil && c.hub.redis != nil {
			key := "User:Connect:" + strconv.Itoa(int(c.userID))
			_ = c.hub.redis.Expire(context.Background(), key, 5*time.Minute).Err()
		}
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("错误: %v", err)
			}
			break
		}

		var ev inboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("json 反序列化错误: %v", err)
			continue
		}

		switch ev.Type {
		case EventTyping:
			c.handleTyping(&ev)
		case EventMessage, "":
			c.handleMessage(&ev)
		}
	}
}

// handleTyping 输入状态不落库、不走 Kafka，直接写 Redis TTL 键并广播
func (c *Client) handleTyping(ev *inboundEvent) {
	ctx := context.Background()
	if c.presenceService != nil {
		if err := c.presenceService.SetTyping(ctx, ev.ConversationID, c.userID, ev.IsTyping); err != nil {
			return
		}
	}
	c.hub.BroadcastToConversation(ev.ConversationID, EventTyping, gin.H{
		"user_id":   c.userID,
		"is_typing": ev.IsTyping,
	})
}

// handleMessage 消息优先走 Kafka 管道，无 Kafka 时降级为直接落库并广播
func (c *Client) handleMessage(ev *inboundEvent) {
	sendReq := &services.SendMessageRequest{
		Content: ev.Content,
		MsgType: ev.MsgType,
	}

	if c.kafkaProducer != nil {
		envelope := &KafkaEnvelope{
			UserID:         c.userID,
			ConversationID: ev.ConversationID,
			Content:        sendReq,
		}
		// 使用会话 ID 作为 Key，保证同一会话的消息在同一个 Partition，从而有序
		if err := c.kafkaProducer.SendMessage(strconv.Itoa(int(ev.ConversationID)), envelope); err != nil {
			log.Printf("发送消息到 kafka 失败: %v", err)
		}
		return
	}

	resp, err := c.messageService.SendMessage(context.Background(), c.userID, ev.ConversationID, sendReq)
	if err != nil {
		log.Printf("发送消息错误: %v", err)
		return
	}
	c.hub.BroadcastToConversation(ev.ConversationID, EventMessage, resp)
}

// writePump 泵送来自 Hub 的事件到 WebSocket 连接
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			// 客户端收到后根据 conversation_id 判断事件归属的会话
			json.NewEncoder(w).Encode(msg)

			// 添加队列中的其他消息（如果有）
			n := len(c.send)
			for range n {
				json.NewEncoder(w).Encode(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// ServeWs 处理 WebSocket 请求
func ServeWs(
	hub *Hub,
	messageService *services.MessageService,
	presenceService *services.PresenceService,
	convLister ConversationLister,
	kafkaProducer *mq.KafkaProducer,
	c *gin.Context,
) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级 websocket 失败: %v", err)
		return
	}

	uID := userID.(uint)
	conversationIDs, err := convLister.ListIDsForUser(uID)
	if err != nil {
		log.Printf("获取用户会话列表失败: %v", err)
		conn.Close()
		return
	}

	// 一致性哈希选择目标节点
	targetNode := ""
	if hub.hashRing != nil {
		targetNode = hub.hashRing.Get(strconv.Itoa(int(uID)))
	}

	// 命中当前节点：写入 Redis 路由并注册到本地 Hub
	// 未命中时仍接入本节点（简单策略），跨节点事件由 Redis 订阅兜底
	if targetNode != hub.nodeID && targetNode != "" {
		log.Printf("用户 %d 映射到节点 %s, 当前节点 %s", uID, targetNode, hub.nodeID)
	} else if hub.redis != nil {
		key := "User:Connect:" + strconv.Itoa(int(uID))
		// TTL 选择心跳周期的 2-3 倍，这里暂定 5 分钟，Pong 处刷新续期
		if err := hub.redis.Set(c, key, hub.nodeID, 5*time.Minute).Err(); err != nil {
			log.Printf("设置用户路由失败: %v", err)
		}
	}

	client := &Client{
		hub:             hub,
		conn:            conn,
		send:            make(chan *BroadcastMessage, 256),
		userID:          uID,
		conversationIDs: conversationIDs,
		messageService:  messageService,
		presenceService: presenceService,
		kafkaProducer:   kafkaProducer,
	}
	client.hub.register <- client
	go client.writePump()
	go client.readPump()
}
