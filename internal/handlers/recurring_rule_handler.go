package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
	"moneta/internal/pagination"
	"moneta/internal/services"
)

// RecurringRuleHandler handles recurring-rule requests.
type RecurringRuleHandler struct {
	ruleService  services.RecurringRuleServicer
	auditService services.AuditServicer
}

// NewRecurringRuleHandler creates a new RecurringRuleHandler.
func NewRecurringRuleHandler(ruleService services.RecurringRuleServicer, auditService services.AuditServicer) *RecurringRuleHandler {
	return &RecurringRuleHandler{ruleService: ruleService, auditService: auditService}
}

// CreateRuleRequest represents the request payload for creating a recurring rule.
type CreateRuleRequest struct {
	AccountID   string                     `json:"account_id" binding:"required,uuid"`
	CategoryID  *string                    `json:"category_id" binding:"omitempty,uuid"`
	Type        models.TransactionType     `json:"type" binding:"required,transaction_type"`
	Amount      int64                      `json:"amount" binding:"required,gt=0"`
	Description string                     `json:"description" binding:"max=500"`
	Frequency   models.RecurrenceFrequency `json:"frequency" binding:"required,rule_frequency"`
	Interval    int                        `json:"interval" binding:"omitempty,gte=1"`
	Weekdays    []int                      `json:"weekdays" binding:"omitempty,dive,gte=0,lte=6"`
	MonthDays   []int                      `json:"month_days" binding:"omitempty,dive,gte=1,lte=31"`
	StartDate   string                     `json:"start_date" binding:"required"`
	EndDate     *string                    `json:"end_date"`
}

// CreateTransferRuleRequest represents the request payload for creating a
// recurring transfer between two accounts.
type CreateTransferRuleRequest struct {
	FromAccountID string                     `json:"from_account_id" binding:"required,uuid"`
	ToAccountID   string                     `json:"to_account_id" binding:"required,uuid"`
	Amount        int64                      `json:"amount" binding:"required,gt=0"`
	Description   string                     `json:"description" binding:"max=500"`
	Frequency     models.RecurrenceFrequency `json:"frequency" binding:"required,rule_frequency"`
	Interval      int                        `json:"interval" binding:"omitempty,gte=1"`
	Weekdays      []int                      `json:"weekdays" binding:"omitempty,dive,gte=0,lte=6"`
	MonthDays     []int                      `json:"month_days" binding:"omitempty,dive,gte=1,lte=31"`
	StartDate     string                     `json:"start_date" binding:"required"`
	EndDate       *string                    `json:"end_date"`
}

// UpdateRuleRequest represents the request payload for updating a recurring rule.
// Setting apply_retroactive together with start_date deletes the transactions
// the rule generated between the old start date and today, then regenerates
// from the new start date on the next sync.
type UpdateRuleRequest struct {
	Amount           *int64  `json:"amount" binding:"omitempty,gt=0"`
	Description      *string `json:"description" binding:"omitempty,max=500"`
	CategoryID       *string `json:"category_id" binding:"omitempty,uuid"`
	StartDate        *string `json:"start_date"`
	EndDate          *string `json:"end_date"`
	IsActive         *bool   `json:"is_active"`
	ApplyRetroactive bool    `json:"apply_retroactive"`
}

// TransferRuleResponse represents the two paired rules of a recurring transfer.
type TransferRuleResponse struct {
	Outgoing models.RecurringRule `json:"outgoing"`
	Incoming models.RecurringRule `json:"incoming"`
}

func parseRuleDates(startDate string, endDate *string) (time.Time, *time.Time, error) {
	start, err := parseFlexibleTime(startDate)
	if err != nil {
		return time.Time{}, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	var end *time.Time
	if endDate != nil && *endDate != "" {
		parsed, err := parseFlexibleTime(*endDate)
		if err != nil {
			return time.Time{}, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		end = &parsed
	}
	return start, end, nil
}

// CreateRule handles the creation of a new recurring rule.
// @Summary     Create a recurring rule
// @Description Create a recurring transaction rule that generates transactions on sync
// @Tags        recurring-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateRuleRequest true "Rule details"
// @Success     201 {object} models.RecurringRule "Rule created"
// @Failure     400 {object} ErrorResponse "Invalid input or schedule"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-rules [post]
func (h *RecurringRuleHandler) CreateRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	start, end, err := parseRuleDates(req.StartDate, req.EndDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rule, err := h.ruleService.CreateRule(userID, services.RuleInput{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Frequency:   req.Frequency,
		Interval:    req.Interval,
		Weekdays:    req.Weekdays,
		MonthDays:   req.MonthDays,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_RECURRING_RULE", "recurring_rule", rule.ID, c.ClientIP(),
		map[string]interface{}{"type": req.Type, "amount": req.Amount, "frequency": req.Frequency})

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// CreateTransferRule handles the creation of a recurring transfer between accounts.
// @Summary     Create a recurring transfer rule
// @Description Create a pair of linked recurring rules that generate a transfer on each occurrence
// @Tags        recurring-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransferRuleRequest true "Transfer rule details"
// @Success     201 {object} TransferRuleResponse "Transfer rules created"
// @Failure     400 {object} ErrorResponse "Invalid input, schedule, or same-account transfer"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-rules/transfer [post]
func (h *RecurringRuleHandler) CreateTransferRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransferRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	start, end, err := parseRuleDates(req.StartDate, req.EndDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	outgoing, incoming, err := h.ruleService.CreateTransferRule(userID, req.FromAccountID, req.ToAccountID, services.RuleInput{
		Amount:      req.Amount,
		Description: req.Description,
		Frequency:   req.Frequency,
		Interval:    req.Interval,
		Weekdays:    req.Weekdays,
		MonthDays:   req.MonthDays,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_RECURRING_TRANSFER_RULE", "recurring_rule", outgoing.ID, c.ClientIP(),
		map[string]interface{}{
			"from_account_id": req.FromAccountID,
			"to_account_id":   req.ToAccountID,
			"amount":          req.Amount,
			"frequency":       req.Frequency,
		})

	c.JSON(http.StatusCreated, TransferRuleResponse{Outgoing: *outgoing, Incoming: *incoming})
}

// GetRules handles listing recurring rules for the authenticated user.
// @Summary     Get recurring rules
// @Description Get a paginated list of recurring rules for the authenticated user
// @Tags        recurring-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       is_active query bool false "Filter by active status"
// @Param       page      query int  false "Page number (default 1)"
// @Param       page_size query int  false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.RecurringRule] "Paginated rules"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-rules [get]
func (h *RecurringRuleHandler) GetRules(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var isActive *bool
	if v := c.Query("is_active"); v != "" {
		switch v {
		case "true":
			b := true
			isActive = &b
		case "false":
			b := false
			isActive = &b
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "is_active must be 'true' or 'false'"))
			return
		}
	}

	result, err := h.ruleService.GetUserRules(userID, page, isActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRule handles retrieving a specific recurring rule.
// @Summary     Get recurring rule by ID
// @Description Get a specific recurring rule by ID
// @Tags        recurring-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rule ID"
// @Success     200 {object} models.RecurringRule "Rule details"
// @Failure     400 {object} ErrorResponse "Invalid rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-rules/{id} [get]
func (h *RecurringRuleHandler) GetRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ruleID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	rule, err := h.ruleService.GetRuleByID(userID, ruleID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// UpdateRule handles updating an existing recurring rule.
// @Summary     Update recurring rule
// @Description Update a recurring rule. Updates to a transfer rule apply to both paired rules. A start-date change with apply_retroactive=true deletes previously generated transactions and regenerates from the new start date on the next sync.
// @Tags        recurring-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Rule ID"
// @Param       request body UpdateRuleRequest true "Fields to update"
// @Success     200 {object} models.RecurringRule "Updated rule"
// @Failure     400 {object} ErrorResponse "Invalid input or rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-rules/{id} [put]
func (h *RecurringRuleHandler) UpdateRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ruleID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	update := services.RuleUpdate{
		Amount:           req.Amount,
		Description:      req.Description,
		CategoryID:       req.CategoryID,
		IsActive:         req.IsActive,
		ApplyRetroactive: req.ApplyRetroactive,
	}

	if req.StartDate != nil && *req.StartDate != "" {
		parsed, parseErr := parseFlexibleTime(*req.StartDate)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, parseErr.Error()))
			return
		}
		update.StartDate = &parsed
	}

	if req.EndDate != nil && *req.EndDate != "" {
		parsed, parseErr := parseFlexibleTime(*req.EndDate)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, parseErr.Error()))
			return
		}
		update.EndDate = &parsed
	}

	rule, err := h.ruleService.UpdateRule(userID, ruleID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_RECURRING_RULE", "recurring_rule", ruleID, c.ClientIP(),
		map[string]interface{}{"apply_retroactive": req.ApplyRetroactive})

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// DeleteRule handles deleting a recurring rule.
// @Summary     Delete recurring rule
// @Description Delete a recurring rule by ID. Deleting one side of a transfer rule deletes both. Transactions already generated by the rule are kept.
// @Tags        recurring-rules
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rule ID"
// @Success     200 {object} MessageResponse "Rule deleted"
// @Failure     400 {object} ErrorResponse "Invalid rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-rules/{id} [delete]
func (h *RecurringRuleHandler) DeleteRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ruleID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.ruleService.DeleteRule(userID, ruleID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_RECURRING_RULE", "recurring_rule", ruleID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Recurring rule deleted successfully"})
}
