package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/StudyHive/internal/services"
	"github.com/Gopher0727/StudyHive/pkg/ws"
	"github.com/Gopher0727/StudyHive/utils/ratelimit"
)

// 每用户每分钟可发送的消息数
const messagesPerMinute = 60

type MessageHandler struct {
	MessageService  *services.MessageService
	PresenceService *services.PresenceService
	Hub             *ws.Hub
	Limiter         ratelimit.Limiter
}

func NewMessageHandler(
	messageService *services.MessageService,
	presenceService *services.PresenceService,
	hub *ws.Hub,
	limiter ratelimit.Limiter,
) *MessageHandler {
	return &MessageHandler{
		MessageService:  messageService,
		PresenceService: presenceService,
		Hub:             hub,
		Limiter:         limiter,
	}
}

// Send 发送消息（REST 入口，WebSocket 之外的备用通道）
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := parseUintParam(c, "conversation_id")
	if err != nil {
		return
	}

	// 跨节点的每用户限流（Redis 计数）
	if h.Limiter != nil {
		key := fmt.Sprintf("user:%d:messages", userID)
		allowed, err := h.Limiter.Allow(c.Request.Context(), key, messagesPerMinute, time.Minute)
		if err == nil && !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "发送过于频繁，请稍后再试"})
			return
		}
	}

	req := services.SendMessageRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	msg, err := h.MessageService.SendMessage(c.Request.Context(), userID, conversationID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastToConversation(conversationID, ws.EventMessage, msg)
	}

	c.JSON(http.StatusCreated, msg)
}

// List 获取会话消息，支持 limit 与 after（增量同步）
func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := parseUintParam(c, "conversation_id")
	if err != nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	// after 为 RFC3339 时间戳时走增量路径
	if after := c.Query("after"); after != "" {
		ts, err := time.Parse(time.RFC3339Nano, after)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after 参数格式错误"})
			return
		}
		msgs, err := h.MessageService.GetMessagesAfter(c.Request.Context(), userID, conversationID, ts, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
		return
	}

	msgs, err := h.MessageService.GetMessages(c.Request.Context(), userID, conversationID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SetTyping 设置输入状态并广播给会话成员
func (h *MessageHandler) SetTyping(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := parseUintParam(c, "conversation_id")
	if err != nil {
		return
	}

	var req struct {
		IsTyping bool `json:"is_typing"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	if err := h.PresenceService.SetTyping(c.Request.Context(), conversationID, userID, req.IsTyping); err != nil {
		writeError(c, err)
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastToConversation(conversationID, ws.EventTyping, gin.H{
			"user_id":   userID,
			"is_typing": req.IsTyping,
		})
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// TypingPeers 当前正在输入的会话成员
func (h *MessageHandler) TypingPeers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := parseUintParam(c, "conversation_id")
	if err != nil {
		return
	}

	peers, err := h.PresenceService.TypingPeers(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"typing": peers})
}
