package handler

import (
	"net/http"
	"strconv"

	"mzunguko/internal/service"

	"github.com/gin-gonic/gin"
)

type ContributionHandler struct {
	contributions *service.ContributionService
}

func NewContributionHandler(contributions *service.ContributionService) *ContributionHandler {
	return &ContributionHandler{contributions: contributions}
}

// MarkPaid handles POST /circles/:id/contributions. The payer defaults to the
// caller; the circle admin may set user_id to record a cash payment received
// in person.
func (h *ContributionHandler) MarkPaid(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	var req struct {
		UserID         uint   `json:"user_id"`
		Round          int    `json:"round"`
		AmountCents    int64  `json:"amount_cents"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	entry, err := h.contributions.MarkPaid(c.Request.Context(), actorFrom(c), req.UserID, service.MarkPaidInput{
		CircleID:       circleID,
		Round:          req.Round,
		AmountCents:    req.AmountCents,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Confirm handles POST /circles/:id/contributions/:userId/confirm.
func (h *ContributionHandler) Confirm(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	userID, ok := userIDParam(c, "userId")
	if !ok {
		return
	}
	round, _ := strconv.Atoi(c.DefaultQuery("round", "0"))
	entry, err := h.contributions.Confirm(c.Request.Context(), actorFrom(c), circleID, round, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Void handles POST /circles/:id/ledger/:seq/void for contribution entries.
func (h *ContributionHandler) Void(c *gin.Context) {
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
	entry, err := h.contributions.Void(c.Request.Context(), actorFrom(c), circleID, seq, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}
