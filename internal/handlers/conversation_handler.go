package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/StudyHive/internal/services"
	"github.com/Gopher0727/StudyHive/pkg/ws"
)

type ConversationHandler struct {
	ConversationService *services.ConversationService
	Hub                 *ws.Hub
}

func NewConversationHandler(conversationService *services.ConversationService, hub *ws.Hub) *ConversationHandler {
	return &ConversationHandler{
		ConversationService: conversationService,
		Hub:                 hub,
	}
}

// ResolveDM 解析（或创建）与目标用户的 DM 会话
// 目标通过 user_id 或 username 二选一指定。
func (h *ConversationHandler) ResolveDM(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var target services.ResolveTarget
	if err := c.ShouldBindJSON(&target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	conv, err := h.ConversationService.ResolveDirect(c.Request.Context(), userID, target)
	if err != nil {
		writeError(c, err)
		return
	}

	// 新建会话时把双方在线连接拉进房间，无需重连
	if h.Hub != nil {
		h.Hub.JoinConversation(userID, conv.ID)
		if target.UserID != 0 {
			h.Hub.JoinConversation(target.UserID, conv.ID)
		}
	}

	c.JSON(http.StatusOK, conv)
}

// CreateGroup 创建群聊会话
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	req := services.CreateGroupRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	conv, err := h.ConversationService.CreateGroup(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// List 当前用户的会话列表（按最近消息倒序，附带未读数）
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	convs, err := h.ConversationService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// MarkRead 推进当前用户在会话中的已读位置
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := parseUintParam(c, "conversation_id")
	if err != nil {
		return
	}

	if err := h.ConversationService.MarkRead(c.Request.Context(), userID, conversationID); err != nil {
		writeError(c, err)
		return
	}

	// 已读回执广播给其他在线成员
	if h.Hub != nil {
		h.Hub.BroadcastToConversation(conversationID, ws.EventRead, gin.H{"user_id": userID})
	}

	c.JSON(http.StatusOK, gin.H{"message": "已标记已读"})
}

// UnreadCount 当前用户在会话中的未读消息数
func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := parseUintParam(c, "conversation_id")
	if err != nil {
		return
	}

	count, err := h.ConversationService.UnreadCount(c.Request.Context(), userID, conversationID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// AddMember 向群聊添加成员（仅管理员）
func (h *ConversationHandler) AddMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := parseUintParam(c, "conversation_id")
	if err != nil {
		return
	}

	var req struct {
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	if err := h.ConversationService.AddMember(c.Request.Context(), userID, conversationID, req.UserID); err != nil {
		writeError(c, err)
		return
	}

	if h.Hub != nil {
		h.Hub.JoinConversation(req.UserID, conversationID)
	}

	c.JSON(http.StatusOK, gin.H{"message": "已添加成员"})
}

// Leave 退出会话
func (h *ConversationHandler) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := parseUintParam(c, "conversation_id")
	if err != nil {
		return
	}

	if err := h.ConversationService.Leave(c.Request.Context(), userID, conversationID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已退出会话"})
}
