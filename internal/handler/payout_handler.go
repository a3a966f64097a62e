package handler

import (
	"net/http"

	"mzunguko/internal/service"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	payouts *service.PayoutService
}

func NewPayoutHandler(payouts *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

// Issue handles POST /circles/:id/payouts.
func (h *PayoutHandler) Issue(c *gin.Context) {
	circleID, ok := circleIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Round          int    `json:"round"`
		RecipientID    uint   `json:"recipient_id"`
		AmountCents    int64  `json:"amount_cents"`
		Partial        bool   `json:"partial"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	snap, err := h.payouts.IssuePayout(c.Request.Context(), actorFrom(c), service.IssuePayoutInput{
		CircleID:       circleID,
		Round:          req.Round,
		RecipientID:    req.RecipientID,
		AmountCents:    req.AmountCents,
		Partial:        req.Partial,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}
