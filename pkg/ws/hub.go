package ws

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"github.com/Gopher0727/StudyHive/utils/consistenthash"
)

const (
	redisChannelName = "chat:broadcast"
)

// 广播事件类型
const (
	EventMessage = "message"
	EventTyping  = "typing"
	EventRead    = "read"
	EventSystem  = "system"
)

// Hub 维护活跃的客户端连接并按会话广播事件
type Hub struct {
	// 注册的客户端
	clients map[*Client]bool

	// 会话对应的客户端集合 ConversationID -> Client -> bool
	rooms map[uint]map[*Client]bool

	// 互斥锁，保护 map 的并发读写
	mu sync.RWMutex

	// 注册请求通道
	register chan *Client

	// 注销请求通道
	unregister chan *Client

	// 广播消息通道（内部使用）
	broadcast chan *BroadcastMessage

	// Redis 客户端，用于跨节点广播与连接路由
	redis *redis.Client

	// 用户 ID 到客户端的映射，方便查找
	userClients map[uint]*Client

	// 一致性哈希环与当前节点
	hashRing *consistenthash.Ring
	nodeID   string
}

// BroadcastMessage 广播事件结构
// Event 区分 message / typing / read / system，客户端按 conversation_id 路由。
type BroadcastMessage struct {
	ConversationID uint   `json:"conversation_id"`
	Event          string `json:"event"`
	Payload        any    `json:"payload"`
}

func NewHub(redisClient *redis.Client, ring *consistenthash.Ring, nodeID string) *Hub {
	return &Hub{
		broadcast:   make(chan *BroadcastMessage),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		rooms:       make(map[uint]map[*Client]bool),
		userClients: make(map[uint]*Client),
		redis:       redisClient,
		hashRing:    ring,
		nodeID:      nodeID,
	}
}

// SetHashRing 外部更新哈希环时使用
func (h *Hub) SetHashRing(ring *consistenthash.Ring) {
	h.mu.Lock()
	h.hashRing = ring
	h.mu.Unlock()
}

func (h *Hub) Run() {
	// 启动 Redis 订阅协程
	if h.redis != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.userClients[client.userID] = client
			// 将客户端加入其参与的所有会话
			for _, convID := range client.conversationIDs {
				if _, ok := h.rooms[convID]; !ok {
					h.rooms[convID] = make(map[*Client]bool)
				}
				h.rooms[convID][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.removeClientLocked(client)
			}
			h.mu.Unlock()
			// 删除 Redis 路由键，避免脏路由
			if h.redis != nil {
				key := "User:Connect:" + strconv.Itoa(int(client.userID))
				_ = h.redis.Del(context.Background(), key).Err()
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			// 收集需要关闭的客户端，避免在 RLock 中修改 map
			var closedClients []*Client

			if clients, ok := h.rooms[msg.ConversationID]; ok {
				for client := range clients {
					select {
					case client.send <- msg:
					default:
						// 发送缓冲区满，标记为需要关闭
						closedClients = append(closedClients, client)
					}
				}
			}
			h.mu.RUnlock()

			if len(closedClients) > 0 {
				h.mu.Lock()
				for _, client := range closedClients {
					// Double check，防止已经处理过
					if _, ok := h.clients[client]; ok {
						h.removeClientLocked(client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// removeClientLocked 从所有映射中移除客户端并关闭其发送通道，调用方持有写锁
func (h *Hub) removeClientLocked(client *Client) {
	close(client.send)
	delete(h.clients, client)
	delete(h.userClients, client.userID)
	for _, convID := range client.conversationIDs {
		if room, ok := h.rooms[convID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, convID)
			}
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, redisChannelName)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for msg := range ch {
		var broadcastMsg BroadcastMessage
		if err := json.Unmarshal([]byte(msg.Payload), &broadcastMsg); err == nil {
			// 从 Redis 收到的事件直接送入本地广播通道
			// 这里不再 Publish 回 Redis，否则会死循环
			h.broadcast <- &broadcastMsg
		}
	}
}

// BroadcastToConversation 向会话的所有在线成员广播事件
// 有 Redis 时先发布到 Redis，让所有节点（包括自己）通过订阅收到；
// 否则退化为仅本地广播。
func (h *Hub) BroadcastToConversation(conversationID uint, event string, payload any) {
	msg := &BroadcastMessage{
		ConversationID: conversationID,
		Event:          event,
		Payload:        payload,
	}

	if h.redis != nil {
		data, err := json.Marshal(msg)
		if err == nil {
			h.redis.Publish(context.Background(), redisChannelName, data)
		}
	} else {
		h.broadcast <- msg
	}
}

// JoinConversation 将在线用户动态加入新会话（新建 DM/群聊后无需重连）
func (h *Hub) JoinConversation(userID, conversationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.userClients[userID]
	if !ok {
		return
	}
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]bool)
	}
	h.rooms[conversationID][client] = true
	client.conversationIDs = append(client.conversationIDs, conversationID)
}

// IsUserConnected 检查用户是否在本节点有活跃连接
func (h *Hub) IsUserConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.userClients[userID]
	return ok
}
