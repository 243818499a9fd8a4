package services

import (
	"time"

	"gorm.io/gorm"

	apperrors "moneta/internal/errors"
	"moneta/internal/logger"
	"moneta/internal/models"
	"moneta/internal/schedule"
	"moneta/internal/uuid"
)

// syncService materializes due occurrences for a user's recurring rules.
//
// One Sync call is a single database transaction: rule cursors, generated
// transactions, and the cached aggregates either all commit together or
// none do. A failed run leaves every cursor where it was, so the caller can
// retry without double-materializing; a repeated call with the same as-of
// date is a no-op because every cursor already sits past it.
type syncService struct {
	db *gorm.DB
}

// NewSyncService creates a new SyncServicer.
func NewSyncService(db *gorm.DB) SyncServicer {
	return &syncService{db: db}
}

// Sync materializes every due occurrence across the user's active rules up
// to and including asOf, then recomputes each affected account balance and
// budget consumption exactly once.
func (s *syncService) Sync(userID string, asOf time.Time) (*SyncResult, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	through := schedule.Day(asOf)

	result := &SyncResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rules []models.RecurringRule
		if err := tx.Where(
			"user_id = ? AND is_active = ? AND next_run_date <= ? AND (end_date IS NULL OR next_run_date <= end_date)",
			userID, true, through,
		).Find(&rules).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		dueByID := make(map[string]*models.RecurringRule, len(rules))
		for i := range rules {
			dueByID[rules[i].ID] = &rules[i]
		}

		accountIDs := make(map[string]struct{})
		categoryIDs := make(map[string]struct{})
		processed := make(map[string]bool, len(rules))

		for i := range rules {
			rule := &rules[i]
			if processed[rule.ID] {
				continue
			}

			if rule.PairedRuleID == nil {
				generated, err := s.materializeRule(tx, rule, through, accountIDs, categoryIDs)
				if err != nil {
					return err
				}
				result.TransactionsGenerated += generated
				result.RulesProcessed++
				processed[rule.ID] = true
				continue
			}

			// Paired rules advance together: the sibling must be due in
			// this same run, mutually linked, with a mirrored definition.
			sibling := dueByID[*rule.PairedRuleID]
			if sibling == nil || sibling.PairedRuleID == nil || *sibling.PairedRuleID != rule.ID {
				logger.Get().Errorw("transfer rule pair is broken",
					"rule_id", rule.ID,
					"paired_rule_id", *rule.PairedRuleID,
					"user_id", userID,
				)
				return apperrors.ErrRulePairBroken
			}

			generated, err := s.materializePair(tx, rule, sibling, through, accountIDs)
			if err != nil {
				return err
			}
			result.TransactionsGenerated += generated
			result.RulesProcessed += 2
			processed[rule.ID] = true
			processed[sibling.ID] = true
		}

		accountsUpdated, budgetsUpdated, err := recomputeAggregates(tx, userID, accountIDs, categoryIDs, time.Now())
		if err != nil {
			return err
		}
		result.AccountsUpdated = accountsUpdated
		result.BudgetsUpdated = budgetsUpdated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// materializeRule generates and inserts the due transactions for a single
// unpaired rule, then advances its cursor.
func (s *syncService) materializeRule(
	tx *gorm.DB,
	rule *models.RecurringRule,
	through time.Time,
	accountIDs, categoryIDs map[string]struct{},
) (int, error) {
	sched := ruleSchedule(rule)
	occurrences := sched.Occurrences(rule.NextRunDate, through)

	for _, date := range occurrences {
		transaction := &models.Transaction{
			UserID:          rule.UserID,
			AccountID:       rule.AccountID,
			CategoryID:      rule.CategoryID,
			Type:            rule.Type,
			Amount:          rule.Amount,
			Description:     rule.Description,
			Date:            date,
			RecurringRuleID: &rule.ID,
			Generated:       true,
		}
		if err := tx.Create(transaction).Error; err != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if len(occurrences) > 0 {
		accountIDs[rule.AccountID] = struct{}{}
		if rule.CategoryID != nil {
			categoryIDs[*rule.CategoryID] = struct{}{}
		}
	}

	if err := s.advanceCursor(tx, rule, sched, occurrences, through); err != nil {
		return 0, err
	}
	return len(occurrences), nil
}

// materializePair generates the due transactions for a transfer rule pair.
// Each occurrence yields two mutually paired transactions sharing date and
// amount. Both cursors advance together.
func (s *syncService) materializePair(
	tx *gorm.DB,
	a, b *models.RecurringRule,
	through time.Time,
	accountIDs map[string]struct{},
) (int, error) {
	out, in := a, b
	if out.Type != models.TransactionTypeExpense {
		out, in = b, a
	}
	if out.Type != models.TransactionTypeExpense || in.Type != models.TransactionTypeIncome ||
		out.Amount != in.Amount || !out.NextRunDate.Equal(in.NextRunDate) {
		return 0, apperrors.ErrRulePairBroken
	}

	outSched := ruleSchedule(out)
	inSched := ruleSchedule(in)
	occurrences := outSched.Occurrences(out.NextRunDate, through)
	inOccurrences := inSched.Occurrences(in.NextRunDate, through)

	// Both sides carry identical cadence by construction; a divergence
	// would materialize one-sided transfers and aborts the run instead.
	if len(occurrences) != len(inOccurrences) {
		return 0, apperrors.ErrRulePairBroken
	}
	for i := range occurrences {
		if !occurrences[i].Equal(inOccurrences[i]) {
			return 0, apperrors.ErrRulePairBroken
		}
	}

	for _, date := range occurrences {
		outID := uuid.New()
		inID := uuid.New()

		outLeg := &models.Transaction{
			UserID:              out.UserID,
			AccountID:           out.AccountID,
			Type:                models.TransactionTypeExpense,
			Amount:              out.Amount,
			Description:         out.Description,
			Date:                date,
			PairedTransactionID: &inID,
			RecurringRuleID:     &out.ID,
			Generated:           true,
		}
		outLeg.ID = outID

		inLeg := &models.Transaction{
			UserID:              in.UserID,
			AccountID:           in.AccountID,
			Type:                models.TransactionTypeIncome,
			Amount:              in.Amount,
			Description:         in.Description,
			Date:                date,
			PairedTransactionID: &outID,
			RecurringRuleID:     &in.ID,
			Generated:           true,
		}
		inLeg.ID = inID

		if err := tx.Create(outLeg).Error; err != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Create(inLeg).Error; err != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if len(occurrences) > 0 {
		accountIDs[out.AccountID] = struct{}{}
		accountIDs[in.AccountID] = struct{}{}
	}

	if err := s.advanceCursor(tx, out, outSched, occurrences, through); err != nil {
		return 0, err
	}
	if err := s.advanceCursor(tx, in, inSched, occurrences, through); err != nil {
		return 0, err
	}
	return 2 * len(occurrences), nil
}

// advanceCursor moves a rule's cursor past the materialized window: to the
// next occurrence after the last one generated, or past the as-of date when
// nothing was due, so already-checked empty ranges are never rescanned.
func (s *syncService) advanceCursor(
	tx *gorm.DB,
	rule *models.RecurringRule,
	sched schedule.Schedule,
	occurrences []time.Time,
	through time.Time,
) error {
	var cursor time.Time
	if len(occurrences) > 0 {
		last := occurrences[len(occurrences)-1]
		if next, ok := sched.Next(last.AddDate(0, 0, 1)); ok {
			cursor = next
		} else if rule.EndDate != nil {
			cursor = rule.EndDate.AddDate(0, 0, 1)
		} else {
			cursor = through.AddDate(0, 0, 1)
		}
	} else {
		cursor = through.AddDate(0, 0, 1)
	}

	rule.NextRunDate = cursor
	if err := tx.Model(&models.RecurringRule{}).Where("id = ?", rule.ID).
		Update("next_run_date", cursor).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
