package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/StudyHive/internal/services"
)

type FriendshipHandler struct {
	FriendshipService *services.FriendshipService
}

func NewFriendshipHandler(friendshipService *services.FriendshipService) *FriendshipHandler {
	return &FriendshipHandler{
		FriendshipService: friendshipService,
	}
}

// SendRequest 发起好友请求
func (h *FriendshipHandler) SendRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		TargetID uint   `json:"target_id" binding:"required"`
		Message  string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	f, err := h.FriendshipService.SendRequest(c.Request.Context(), userID, req.TargetID, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"friendship_id": f.ID, "status": f.Status})
}

// Accept 接受好友请求
func (h *FriendshipHandler) Accept(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	friendshipID, err := parseUintParam(c, "friendship_id")
	if err != nil {
		return
	}

	if err := h.FriendshipService.AcceptRequest(c.Request.Context(), userID, friendshipID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已添加好友"})
}

// Decline 拒绝好友请求
func (h *FriendshipHandler) Decline(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	friendshipID, err := parseUintParam(c, "friendship_id")
	if err != nil {
		return
	}

	if err := h.FriendshipService.DeclineRequest(c.Request.Context(), userID, friendshipID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已拒绝请求"})
}

// Unfriend 解除好友关系
func (h *FriendshipHandler) Unfriend(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	otherID, err := parseUintParam(c, "user_id")
	if err != nil {
		return
	}

	if err := h.FriendshipService.Unfriend(c.Request.Context(), userID, otherID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已解除好友关系"})
}

// Block 屏蔽用户
func (h *FriendshipHandler) Block(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	targetID, err := parseUintParam(c, "user_id")
	if err != nil {
		return
	}

	if err := h.FriendshipService.Block(c.Request.Context(), userID, targetID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已屏蔽该用户"})
}

// ListFriends 好友列表
func (h *FriendshipHandler) ListFriends(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	friends, err := h.FriendshipService.ListFriends(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// ListPending 待处理的好友请求
func (h *FriendshipHandler) ListPending(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	reqs, err := h.FriendshipService.ListPendingRequests(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// parseUintParam 解析路径参数为 uint，非法时直接写 400
func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "路径参数格式错误"})
		return 0, err
	}
	return uint(v), nil
}
