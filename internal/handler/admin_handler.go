package handler

import (
	"net/http"
	"strconv"

	"mzunguko/internal/service"
	"mzunguko/internal/storage"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes platform-admin overrides. All routes sit behind
// AdminRequired; the service layer re-checks the role anyway.
type AdminHandler struct {
	overrides *service.OverrideService
}

func NewAdminHandler(overrides *service.OverrideService) *AdminHandler {
	return &AdminHandler{overrides: overrides}
}

func (h *AdminHandler) Freeze(c *gin.Context) {
	h.setFrozen(c, true)
}

func (h *AdminHandler) Unfreeze(c *gin.Context) {
	h.setFrozen(c, false)
}

func (h *AdminHandler) setFrozen(c *gin.Context, frozen bool) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var (
		snap interface{}
		err  error
	)
	if frozen {
		snap, err = h.overrides.Freeze(c.Request.Context(), actorFrom(c), circleID, req.Reason)
	} else {
		snap, err = h.overrides.Unfreeze(c.Request.Context(), actorFrom(c), circleID, req.Reason)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *AdminHandler) TransferAdmin(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	var req struct {
		ToUserID uint `json:"to_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.overrides.TransferAdmin(c.Request.Context(), actorFrom(c), circleID, req.ToUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *AdminHandler) ReassignOrder(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Order  []uint `json:"order" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.overrides.ReassignOrder(c.Request.Context(), actorFrom(c), circleID, req.Order, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *AdminHandler) VoidEntry(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil || seq == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sequence"})
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.overrides.VoidEntry(c.Request.Context(), actorFrom(c), circleID, seq, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *AdminHandler) BanUser(c *gin.Context) {
	userID, ok := userIDParam(c, "userId")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.overrides.BanUser(c.Request.Context(), actorFrom(c), userID, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"banned": true, "user_id": userID})
}

func (h *AdminHandler) UnbanUser(c *gin.Context) {
	userID, ok := userIDParam(c, "userId")
	if !ok {
		return
	}
	if err := h.overrides.UnbanUser(c.Request.Context(), actorFrom(c), userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"banned": false, "user_id": userID})
}

func (h *AdminHandler) Rebuild(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	snap, err := h.overrides.Rebuild(c.Request.Context(), actorFrom(c), circleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *AdminHandler) History(c *gin.Context) {
	var f storage.HistoryFilter
	if v, err := strconv.ParseUint(c.Query("circle_id"), 10, 32); err == nil {
		f.CircleID = uint(v)
	}
	if v, err := strconv.ParseUint(c.Query("actor_id"), 10, 32); err == nil {
		f.ActorID = uint(v)
	}
	f.Type = c.Query("type")
	f.Status = c.Query("status")
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, total, err := h.overrides.History(c.Request.Context(), actorFrom(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total, "page": f.Page, "limit": f.Limit})
}
