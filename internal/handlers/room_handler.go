package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/StudyHive/internal/services"
)

type RoomHandler struct {
	RoomService *services.RoomService
}

func NewRoomHandler(roomService *services.RoomService) *RoomHandler {
	return &RoomHandler{
		RoomService: roomService,
	}
}

// Create 创建自习室
func (h *RoomHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	req := services.CreateRoomRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	room, err := h.RoomService.CreateRoom(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

// Join 加入自习室：body 里 join_code 与 room_id 二选一
func (h *RoomHandler) Join(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		JoinCode string `json:"join_code"`
		RoomID   uint   `json:"room_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	var (
		room *services.RoomDTO
		err  error
	)
	if req.JoinCode != "" {
		room, err = h.RoomService.JoinByCode(c.Request.Context(), userID, req.JoinCode)
	} else if req.RoomID != 0 {
		room, err = h.RoomService.JoinPublic(c.Request.Context(), userID, req.RoomID)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "需要提供 join_code 或 room_id"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// Leave 退出自习室
func (h *RoomHandler) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	roomID, err := parseUintParam(c, "room_id")
	if err != nil {
		return
	}

	if err := h.RoomService.Leave(c.Request.Context(), userID, roomID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已退出自习室"})
}

// Invite 邀请用户加入自习室
func (h *RoomHandler) Invite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	roomID, err := parseUintParam(c, "room_id")
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

	if err := h.RoomService.Invite(c.Request.Context(), userID, roomID, req.UserID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已发送邀请"})
}

// ListPublic 公开自习室列表，支持 subject 过滤与分页
func (h *RoomHandler) ListPublic(c *gin.Context) {
	subject := c.Query("subject")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rooms, total, err := h.RoomService.ListPublic(c.Request.Context(), subject, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "total": total})
}

// ListMine 我加入的自习室
func (h *RoomHandler) ListMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	rooms, err := h.RoomService.ListMine(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}
