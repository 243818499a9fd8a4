package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "moneta/internal/errors"
	"moneta/internal/services"
)

// SyncHandler handles recurring-transaction sync requests.
type SyncHandler struct {
	syncService  services.SyncServicer
	auditService services.AuditServicer
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncService services.SyncServicer, auditService services.AuditServicer) *SyncHandler {
	return &SyncHandler{syncService: syncService, auditService: auditService}
}

// Sync materializes all due recurring transactions for the authenticated user.
// @Summary     Sync recurring transactions
// @Description Generate transactions for all recurring rules due up to the given date (default today) and update account balances and budget consumption. Safe to call repeatedly.
// @Tags        sync
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       as_of query string false "Sync up to this date (RFC3339 or YYYY-MM-DD, default now)"
// @Success     200 {object} services.SyncResult "Sync result"
// @Failure     400 {object} ErrorResponse "Invalid as_of date"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error or broken rule pair"
// @Router      /sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf := time.Now()
	if v := c.Query("as_of"); v != "" {
		parsed, parseErr := parseFlexibleTime(v)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, parseErr.Error()))
			return
		}
		asOf = parsed
	}

	result, err := h.syncService.Sync(userID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if result.TransactionsGenerated > 0 {
		h.auditService.Log(userID, "SYNC_RECURRING", "sync", "", c.ClientIP(),
			map[string]interface{}{
				"transactions_generated": result.TransactionsGenerated,
				"rules_processed":        result.RulesProcessed,
			})
	}

	c.JSON(http.StatusOK, result)
}
