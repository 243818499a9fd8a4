package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
	"moneta/internal/pagination"
	"moneta/internal/schedule"
	"moneta/internal/uuid"
)

// recurringRuleService handles recurring-rule business logic: rule CRUD,
// transfer-rule pairing, and the retroactive edit transitions (start-date
// changes, reactivation, pair-aware deletion). Materialization itself lives
// in the sync service.
type recurringRuleService struct {
	db             *gorm.DB
	accountService AccountServicer
}

// NewRecurringRuleService creates a new RecurringRuleServicer.
func NewRecurringRuleService(db *gorm.DB, accountService AccountServicer) RecurringRuleServicer {
	return &recurringRuleService{db: db, accountService: accountService}
}

// ruleSchedule builds the cadence calendar for a rule.
func ruleSchedule(rule *models.RecurringRule) schedule.Schedule {
	weekdays := make([]time.Weekday, len(rule.Weekdays))
	for i, d := range rule.Weekdays {
		weekdays[i] = time.Weekday(d)
	}
	return schedule.Schedule{
		Frequency: schedule.Frequency(rule.Frequency),
		Interval:  rule.Interval,
		Weekdays:  weekdays,
		MonthDays: rule.MonthDays,
		Anchor:    rule.StartDate,
		End:       rule.EndDate,
	}
}

// buildRule validates the input and assembles an unsaved rule with its
// cursor seeded to the first occurrence on or after the start date.
func (s *recurringRuleService) buildRule(userID string, input RuleInput) (*models.RecurringRule, error) {
	if input.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if input.Type != models.TransactionTypeIncome && input.Type != models.TransactionTypeExpense {
		return nil, apperrors.ErrInvalidTransactionType
	}

	rule := &models.RecurringRule{
		UserID:      userID,
		AccountID:   input.AccountID,
		CategoryID:  input.CategoryID,
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Description,
		Frequency:   input.Frequency,
		Interval:    input.Interval,
		Weekdays:    models.DayList(input.Weekdays),
		MonthDays:   models.DayList(input.MonthDays),
		StartDate:   schedule.Day(input.StartDate),
		IsActive:    true,
	}
	if input.EndDate != nil {
		end := schedule.Day(*input.EndDate)
		rule.EndDate = &end
	}

	sched := ruleSchedule(rule)
	if err := sched.Validate(); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
	}

	next, ok := sched.Next(rule.StartDate)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, "schedule never produces an occurrence")
	}
	rule.NextRunDate = next

	return rule, nil
}

// CreateRule creates a recurring rule for the user.
func (s *recurringRuleService) CreateRule(userID string, input RuleInput) (*models.RecurringRule, error) {
	rule, err := s.buildRule(userID, input)
	if err != nil {
		return nil, err
	}

	if _, err := s.accountService.GetAccountByID(userID, input.AccountID); err != nil {
		return nil, err
	}
	if input.CategoryID != nil {
		var count int64
		if err := s.db.Model(&models.Category{}).
			Where("id = ? AND user_id = ?", *input.CategoryID, userID).
			Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			return nil, apperrors.ErrCategoryNotFound
		}
	}

	if err := s.db.Create(rule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rule, nil
}

// CreateTransferRule creates a pair of rules representing a recurring
// transfer: an expense rule on the source account and an income rule on the
// destination, mutually linked and sharing amount and cadence. The pair is
// created atomically.
func (s *recurringRuleService) CreateTransferRule(
	userID string,
	fromAccountID, toAccountID string,
	input RuleInput,
) (*models.RecurringRule, *models.RecurringRule, error) {
	if fromAccountID == toAccountID {
		return nil, nil, apperrors.ErrSameAccountTransfer
	}
	if _, err := s.accountService.GetAccountByID(userID, fromAccountID); err != nil {
		return nil, nil, err
	}
	if _, err := s.accountService.GetAccountByID(userID, toAccountID); err != nil {
		return nil, nil, err
	}

	// Transfer legs never count toward budgets, so pair rules carry no
	// category.
	input.CategoryID = nil

	outInput := input
	outInput.AccountID = fromAccountID
	outInput.Type = models.TransactionTypeExpense
	outRule, err := s.buildRule(userID, outInput)
	if err != nil {
		return nil, nil, err
	}

	inInput := input
	inInput.AccountID = toAccountID
	inInput.Type = models.TransactionTypeIncome
	inRule, err := s.buildRule(userID, inInput)
	if err != nil {
		return nil, nil, err
	}

	outID := uuid.New()
	inID := uuid.New()
	outRule.ID = outID
	outRule.PairedRuleID = &inID
	inRule.ID = inID
	inRule.PairedRuleID = &outID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(outRule).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Create(inRule).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return outRule, inRule, nil
}

// GetUserRules returns a paginated list of the user's recurring rules.
func (s *recurringRuleService) GetUserRules(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.RecurringRule], error) {
	page.Defaults()

	base := s.db.Model(&models.RecurringRule{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rules []models.RecurringRule
	if err := base.Scopes(pagination.Paginate(page)).
		Order("next_run_date").
		Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rules, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetRuleByID returns a rule by ID if it belongs to the user.
func (s *recurringRuleService) GetRuleByID(userID, ruleID string) (*models.RecurringRule, error) {
	var rule models.RecurringRule
	if err := s.db.Where("id = ? AND user_id = ?", ruleID, userID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRuleNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rule, nil
}

// loadPairedRule fetches the sibling of a paired rule and verifies the
// back-reference. A missing sibling or a one-sided link is a broken pair.
func (s *recurringRuleService) loadPairedRule(rule *models.RecurringRule) (*models.RecurringRule, error) {
	if rule.PairedRuleID == nil {
		return nil, nil
	}
	sibling, err := s.GetRuleByID(rule.UserID, *rule.PairedRuleID)
	if err != nil {
		if errors.Is(err, apperrors.ErrRuleNotFound) {
			return nil, apperrors.ErrRulePairBroken
		}
		return nil, err
	}
	if sibling.PairedRuleID == nil || *sibling.PairedRuleID != rule.ID {
		return nil, apperrors.ErrRulePairBroken
	}
	return sibling, nil
}

// UpdateRule applies an update to a rule, handling the retroactive
// transitions:
//
//   - A start-date change with ApplyRetroactive deletes the rule's generated
//     transactions dated between the old start date and today, then resets
//     the cursor to the first occurrence on or after the new start date.
//     Without the flag only future materialization is affected.
//   - Reactivating an inactive rule fast-forwards the cursor to the next
//     occurrence on or after today; dormant rules never backfill missed
//     occurrences.
//
// For paired rules the update is applied to both sides so the pair keeps
// identical amount, dates, and active flag.
func (s *recurringRuleService) UpdateRule(userID, ruleID string, update RuleUpdate) (*models.RecurringRule, error) {
	rule, err := s.GetRuleByID(userID, ruleID)
	if err != nil {
		return nil, err
	}
	sibling, err := s.loadPairedRule(rule)
	if err != nil {
		return nil, err
	}

	if update.Amount != nil && *update.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if update.CategoryID != nil {
		if rule.PairedRuleID != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transfer rules cannot carry a category")
		}
		var count int64
		if err := s.db.Model(&models.Category{}).
			Where("id = ? AND user_id = ?", *update.CategoryID, userID).
			Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			return nil, apperrors.ErrCategoryNotFound
		}
	}

	today := schedule.Day(time.Now())

	err = s.db.Transaction(func(tx *gorm.DB) error {
		targets := []*models.RecurringRule{rule}
		if sibling != nil {
			targets = append(targets, sibling)
		}

		for _, target := range targets {
			if err := s.applyUpdate(tx, target, update, today); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// applyUpdate mutates a single rule inside the update transaction.
func (s *recurringRuleService) applyUpdate(tx *gorm.DB, rule *models.RecurringRule, update RuleUpdate, today time.Time) error {
	updates := make(map[string]interface{})

	if update.Amount != nil {
		rule.Amount = *update.Amount
		updates["amount"] = *update.Amount
	}
	if update.Description != nil {
		rule.Description = *update.Description
		updates["description"] = *update.Description
	}
	if update.CategoryID != nil {
		rule.CategoryID = update.CategoryID
		updates["category_id"] = *update.CategoryID
	}
	if update.EndDate != nil {
		end := schedule.Day(*update.EndDate)
		rule.EndDate = &end
		updates["end_date"] = end
	}

	if update.StartDate != nil {
		oldStart := rule.StartDate
		newStart := schedule.Day(*update.StartDate)
		rule.StartDate = newStart
		updates["start_date"] = newStart

		sched := ruleSchedule(rule)
		if err := sched.Validate(); err != nil {
			return apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
		}

		if update.ApplyRetroactive {
			if err := s.deleteGeneratedRange(tx, rule, oldStart, today); err != nil {
				return err
			}
			next, ok := sched.Next(newStart)
			if !ok {
				return apperrors.WithMessage(apperrors.ErrInvalidSchedule, "schedule never produces an occurrence")
			}
			rule.NextRunDate = next
			updates["next_run_date"] = next
		} else if newStart.After(rule.NextRunDate) {
			// The cursor must never precede the start date. Moving the
			// start earlier without the retroactive flag leaves the cursor
			// alone: past windows are not rescanned.
			next, ok := sched.Next(newStart)
			if !ok {
				return apperrors.WithMessage(apperrors.ErrInvalidSchedule, "schedule never produces an occurrence")
			}
			rule.NextRunDate = next
			updates["next_run_date"] = next
		}
	}

	if update.IsActive != nil {
		reactivating := *update.IsActive && !rule.IsActive
		rule.IsActive = *update.IsActive
		updates["is_active"] = *update.IsActive

		if reactivating {
			// Resume from now. The old cursor may be far in the past and
			// must not cause months of backfill on the next sync.
			sched := ruleSchedule(rule)
			if next, ok := sched.Next(today); ok {
				rule.NextRunDate = next
				updates["next_run_date"] = next
			} else if rule.EndDate != nil {
				exhausted := rule.EndDate.AddDate(0, 0, 1)
				rule.NextRunDate = exhausted
				updates["next_run_date"] = exhausted
			}
		}
	}

	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(&models.RecurringRule{}).Where("id = ?", rule.ID).
		Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// deleteGeneratedRange removes the rule's generated transactions dated in
// [from, through] and recomputes the aggregates they touched.
func (s *recurringRuleService) deleteGeneratedRange(tx *gorm.DB, rule *models.RecurringRule, from, through time.Time) error {
	var victims []models.Transaction
	if err := tx.Where("recurring_rule_id = ? AND generated = ? AND date BETWEEN ? AND ?",
		rule.ID, true, from, through).
		Find(&victims).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(victims) == 0 {
		return nil
	}

	ids := make([]string, len(victims))
	accountIDs := make(map[string]struct{})
	categoryIDs := make(map[string]struct{})
	for i := range victims {
		ids[i] = victims[i].ID
		accountIDs[victims[i].AccountID] = struct{}{}
		if victims[i].CategoryID != nil && !victims[i].IsTransferLeg() {
			categoryIDs[*victims[i].CategoryID] = struct{}{}
		}
	}

	if err := tx.Where("id IN ?", ids).Delete(&models.Transaction{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	_, _, err := recomputeAggregates(tx, rule.UserID, accountIDs, categoryIDs, time.Now())
	return err
}

// DeleteRule soft-deletes a rule, and its paired sibling with it. Already
// materialized transactions are permanent history and are never touched.
func (s *recurringRuleService) DeleteRule(userID, ruleID string) error {
	rule, err := s.GetRuleByID(userID, ruleID)
	if err != nil {
		return err
	}
	sibling, err := s.loadPairedRule(rule)
	if err != nil && !errors.Is(err, apperrors.ErrRulePairBroken) {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(rule).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if sibling != nil {
			if err := tx.Delete(sibling).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
}
