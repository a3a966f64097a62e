package handler

import (
	"net/http"
	"strconv"
	"time"

	"mzunguko/internal/middleware"
	"mzunguko/internal/service"
	"mzunguko/internal/storage"

	"github.com/gin-gonic/gin"
)

type CircleHandler struct {
	circles *service.CircleService
	store   storage.Store
}

func NewCircleHandler(circles *service.CircleService, store storage.Store) *CircleHandler {
	return &CircleHandler{circles: circles, store: store}
}

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

func circleIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid circle id"})
		return 0, false
	}
	return uint(id), true
}

func userIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return uint(id), true
}

func (h *CircleHandler) Create(c *gin.Context) {
	var req struct {
		Name        string     `json:"name" binding:"required"`
		AmountCents int64      `json:"amount_cents" binding:"required,gt=0"`
		Currency    string     `json:"currency"`
		Frequency   string     `json:"frequency" binding:"required,oneof=WEEKLY BIWEEKLY MONTHLY"`
		Capacity    int        `json:"capacity" binding:"required,gte=2"`
		StartDate   *time.Time `json:"start_date"`
		Preference  string     `json:"preference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.circles.CreateCircle(c.Request.Context(), actorFrom(c), service.CreateCircleInput{
		Name:        req.Name,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Frequency:   req.Frequency,
		Capacity:    req.Capacity,
		StartDate:   req.StartDate,
		Username:    middleware.GetUsername(c),
		Preference:  req.Preference,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *CircleHandler) Get(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	snap, err := h.circles.GetSnapshot(c.Request.Context(), circleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *CircleHandler) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)
	memberships, err := h.store.ListActiveMembershipsByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memberships": memberships})
}

func (h *CircleHandler) Join(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Preference string `json:"preference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.circles.RequestJoin(c.Request.Context(), actorFrom(c), circleID, middleware.GetUsername(c), req.Preference)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *CircleHandler) Approve(c *gin.Context) {
	h.resolveJoin(c, true)
}

func (h *CircleHandler) Reject(c *gin.Context) {
	h.resolveJoin(c, false)
}

func (h *CircleHandler) resolveJoin(c *gin.Context, approve bool) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	userID, ok := userIDParam(c, "userId")
	if !ok {
		return
	}
	var (
		snap interface{}
		err  error
	)
	if approve {
		snap, err = h.circles.Approve(c.Request.Context(), actorFrom(c), circleID, userID)
	} else {
		snap, err = h.circles.Reject(c.Request.Context(), actorFrom(c), circleID, userID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *CircleHandler) Leave(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	snap, err := h.circles.Leave(c.Request.Context(), actorFrom(c), circleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *CircleHandler) Activate(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Order []uint `json:"order"`
		Force bool   `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.circles.Activate(c.Request.Context(), actorFrom(c), circleID, req.Order, req.Force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *CircleHandler) Cancel(c *gin.Context) {
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
	snap, err := h.circles.Cancel(c.Request.Context(), actorFrom(c), circleID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *CircleHandler) Grid(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	grid, err := h.circles.GetGrid(c.Request.Context(), circleID, time.Now().UTC())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

func (h *CircleHandler) MemberStatus(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	userID, ok := userIDParam(c, "userId")
	if !ok {
		return
	}
	round, err := strconv.Atoi(c.Param("round"))
	if err != nil || round < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round"})
		return
	}
	status, err := h.circles.GetMemberStatus(c.Request.Context(), circleID, round, userID, time.Now().UTC())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"circle_id": circleID, "round": round, "user_id": userID, "status": status})
}

func (h *CircleHandler) Ledger(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	afterSeq, _ := strconv.ParseUint(c.DefaultQuery("after_seq", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.circles.ListLedger(c.Request.Context(), circleID, afterSeq, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
