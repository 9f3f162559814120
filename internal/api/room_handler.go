package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/story-game/internal/middleware"
	"github.com/wfunc/story-game/internal/service"
)

// RoomHandler 房间与游戏处理器
type RoomHandler struct {
	roomService service.RoomService
}

// NewRoomHandler 创建房间处理器
func NewRoomHandler(roomService service.RoomService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
	}
}

// CreateRoom 创建房间
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
			Details: err.Error(),
		})
		return
	}

	userID, _ := middleware.GetUserID(c)
	username, _ := middleware.GetUsername(c)
	req.HostID = userID
	req.HostName = username

	room, err := h.roomService.CreateRoom(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "房间已创建", Data: room})
}

// ListRooms 列出房间
func (h *RoomHandler) ListRooms(c *gin.Context) {
	var query struct {
		Status   string `form:"status"`
		Page     int    `form:"page"`
		PageSize int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
		})
		return
	}

	rooms, err := h.roomService.ListRooms(c.Request.Context(), query.Status, query.Page, query.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: rooms})
}

// JoinRoom 加入房间
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	code := c.Param("code")
	userID, _ := middleware.GetUserID(c)
	username, _ := middleware.GetUsername(c)

	if err := h.roomService.JoinRoom(c.Request.Context(), code, userID, username); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "已加入房间"})
}

// LeaveRoom 退出房间
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	code := c.Param("code")
	userID, _ := middleware.GetUserID(c)

	if err := h.roomService.LeaveRoom(c.Request.Context(), code, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "已退出房间"})
}

// StartGame 开始游戏（仅房主）
func (h *RoomHandler) StartGame(c *gin.Context) {
	code := c.Param("code")
	userID, _ := middleware.GetUserID(c)

	if err := h.roomService.StartGame(c.Request.Context(), code, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "游戏已开始"})
}

// SubmitAction 提交回合行动
func (h *RoomHandler) SubmitAction(c *gin.Context) {
	code := c.Param("code")
	userID, _ := middleware.GetUserID(c)

	var req struct {
		Input string `json:"input" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
			Details: err.Error(),
		})
		return
	}

	if err := h.roomService.SubmitAction(c.Request.Context(), code, userID, req.Input); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "行动已提交"})
}

// GetState 查询房间状态
func (h *RoomHandler) GetState(c *gin.Context) {
	code := c.Param("code")

	state, err := h.roomService.GetState(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: state})
}

// GetTranscript 导出房间剧本
func (h *RoomHandler) GetTranscript(c *gin.Context) {
	code := c.Param("code")

	transcript, err := h.roomService.GetTranscript(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.String(http.StatusOK, transcript)
}
