package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/StudyHive/internal/services"
)

// writeError 将业务错误映射为 HTTP 状态码与用户可见的提示
// 未识别的错误一律折叠为通用提示，后端细节不出现在响应里。
// MUST_BE_FRIENDS 是唯一改变前端交互的错误：附带 can_send_request
// 提示客户端展示"发送好友请求"入口而不是纯文案。
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrMustBeFriends):
		c.JSON(http.StatusForbidden, gin.H{
			"error":            err.Error(),
			"can_send_request": true,
		})
	case errors.Is(err, services.ErrUnauthorizedConv),
		errors.Is(err, services.ErrNotRequestTarget),
		errors.Is(err, services.ErrNotRoomMember),
		errors.Is(err, services.ErrRoomOwnerLeave):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidContent),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrSelfFriendship):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrFriendshipExists),
		errors.Is(err, services.ErrAlreadyRoomMember):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrFriendshipBlocked),
		errors.Is(err, services.ErrRoomFull),
		errors.Is(err, services.ErrRoomLimitExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务暂时不可用，请稍后重试"})
	}
}

// currentUserID 从认证中间件注入的 context 中取当前用户 ID
func currentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
		return 0, false
	}
	return v.(uint), true
}
