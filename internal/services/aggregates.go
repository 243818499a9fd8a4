package services

import (
	"time"

	"github.com/jinzhu/now"
	"gorm.io/gorm"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
)

// This file implements the cached-aggregate recomputer. Account balances and
// budget consumption are never adjusted incrementally: whenever transactions
// change, the affected aggregates are recomputed from the transaction table
// inside the same database transaction. Recomputation is idempotent, so the
// sync engine batches it to once per distinct account/budget per run.

// recalculateAccountBalance recomputes an account's cached balance as the
// signed sum of its non-deleted transactions.
func recalculateAccountBalance(tx *gorm.DB, accountID string) error {
	var balance int64
	err := tx.Model(&models.Transaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)", models.TransactionTypeIncome).
		Where("account_id = ?", accountID).
		Scan(&balance).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := tx.Model(&models.Account{}).Where("id = ?", accountID).
		Update("balance", balance).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// budgetPeriodWindow returns the current period bounds for a budget
// relative to the reference time.
func budgetPeriodWindow(period models.BudgetPeriod, ref time.Time) (time.Time, time.Time) {
	n := now.New(ref)
	if period == models.BudgetPeriodYearly {
		return n.BeginningOfYear(), n.EndOfYear()
	}
	return n.BeginningOfMonth(), n.EndOfMonth()
}

// recalculateBudgetConsumption recomputes a budget's cached consumption:
// the sum of expense transactions for its category within the current
// period. Transfer legs carry a pairing reference and are excluded, so
// internal transfers never count as spending.
func recalculateBudgetConsumption(tx *gorm.DB, budget *models.Budget, ref time.Time) error {
	periodStart, periodEnd := budgetPeriodWindow(budget.Period, ref)

	var spent int64
	err := tx.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND category_id = ? AND type = ? AND paired_transaction_id IS NULL AND date BETWEEN ? AND ?",
			budget.UserID, budget.CategoryID, models.TransactionTypeExpense, periodStart, periodEnd).
		Scan(&spent).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	budget.Consumption = spent
	if err := tx.Model(&models.Budget{}).Where("id = ?", budget.ID).
		Update("consumption", spent).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// recomputeAggregates recomputes every account in accountIDs and every
// active budget of the user tracking a category in categoryIDs, exactly once
// each. It returns the number of accounts and budgets updated.
func recomputeAggregates(tx *gorm.DB, userID string, accountIDs, categoryIDs map[string]struct{}, ref time.Time) (int, int, error) {
	for accountID := range accountIDs {
		if err := recalculateAccountBalance(tx, accountID); err != nil {
			return 0, 0, err
		}
	}

	budgetsUpdated := 0
	if len(categoryIDs) > 0 {
		ids := make([]string, 0, len(categoryIDs))
		for id := range categoryIDs {
			ids = append(ids, id)
		}

		var budgets []models.Budget
		if err := tx.Where("user_id = ? AND is_active = ? AND category_id IN ?", userID, true, ids).
			Find(&budgets).Error; err != nil {
			return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		for i := range budgets {
			if err := recalculateBudgetConsumption(tx, &budgets[i], ref); err != nil {
				return 0, 0, err
			}
			budgetsUpdated++
		}
	}

	return len(accountIDs), budgetsUpdated, nil
}
