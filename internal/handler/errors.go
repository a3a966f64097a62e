package handler

import (
	"errors"
	"net/http"

	"mzunguko/internal/domain"

	"github.com/gin-gonic/gin"
)

// writeError maps domain errors onto HTTP statuses. Unknown errors become 500
// with a generic body; the detail stays in the server log, not the response.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotAMember), errors.Is(err, domain.ErrNotCircleAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSequenceConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent update, retry"})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrCircleFrozen),
		errors.Is(err, domain.ErrAlreadyIssued),
		errors.Is(err, domain.ErrAlreadyVoided),
		errors.Is(err, domain.ErrRecipientMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
