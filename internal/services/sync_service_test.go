package services

import (
	"errors"
	"testing"
	"time"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
	"moneta/internal/schedule"
	"moneta/internal/testutil"

	"gorm.io/gorm"
)

func countTransactions(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	return n
}

func reloadRule(t *testing.T, db *gorm.DB, ruleID string) *models.RecurringRule {
	t.Helper()
	var rule models.RecurringRule
	if err := db.First(&rule, "id = ?", ruleID).Error; err != nil {
		t.Fatalf("failed to reload rule: %v", err)
	}
	return &rule
}

func TestSync(t *testing.T) {
	t.Run("materializes_due_occurrences", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSyncService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		start := schedule.Day(time.Now()).AddDate(0, 0, -4)
		rule := testutil.CreateTestRule(t, db, user.ID, account.ID, nil, models.TransactionTypeExpense, 1500, start)

		result, err := svc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)

		// Daily rule spanning five calendar days, bounds inclusive.
		if result.TransactionsGenerated != 5 {
			t.Errorf("expected 5 generated transactions, got %d", result.TransactionsGenerated)
		}
		if result.RulesProcessed != 1 {
			t.Errorf("expected 1 rule processed, got %d", result.RulesProcessed)
		}
		if result.AccountsUpdated != 1 {
			t.Errorf("expected 1 account updated, got %d", result.AccountsUpdated)
		}

		var generated []models.Transaction
		if err := db.Where("recurring_rule_id = ?", rule.ID).Order("date").Find(&generated).Error; err != nil {
			t.Fatalf("failed to load generated transactions: %v", err)
		}
		if len(generated) != 5 {
			t.Fatalf("expected 5 transactions in DB, got %d", len(generated))
		}
		for _, tx := range generated {
			if !tx.Generated {
				t.Error("expected generated flag on materialized transaction")
			}
			if tx.Amount != 1500 || tx.Type != models.TransactionTypeExpense {
				t.Errorf("unexpected transaction %s: %d %s", tx.ID, tx.Amount, tx.Type)
			}
		}

		updated := reloadRule(t, db, rule.ID)
		if !updated.NextRunDate.After(schedule.Day(time.Now())) {
			t.Errorf("expected cursor past today, got %v", updated.NextRunDate)
		}
	})

	t.Run("idempotent_second_run", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSyncService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		start := schedule.Day(time.Now()).AddDate(0, 0, -2)
		testutil.CreateTestRule(t, db, user.ID, account.ID, nil, models.TransactionTypeExpense, 1000, start)

		first, err := svc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)
		if first.TransactionsGenerated != 3 {
			t.Fatalf("expected 3 transactions on first sync, got %d", first.TransactionsGenerated)
		}

		second, err := svc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)
		if second.TransactionsGenerated != 0 {
			t.Errorf("expected 0 transactions on second sync, got %d", second.TransactionsGenerated)
		}
		if second.RulesProcessed != 0 {
			t.Errorf("expected 0 rules processed on second sync, got %d", second.RulesProcessed)
		}
		if n := countTransactions(t, db, user.ID); n != 3 {
			t.Errorf("expected 3 transactions total, got %d", n)
		}
	})

	t.Run("updates_account_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSyncService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		start := schedule.Day(time.Now()).AddDate(0, 0, -1)
		testutil.CreateTestRule(t, db, user.ID, account.ID, nil, models.TransactionTypeIncome, 2500, start)

		_, err := svc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)

		// One occurrence yesterday and one today, both income.
		testutil.AssertBalance(t, db, account.ID, 5000)
	})

	t.Run("updates_budget_consumption", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSyncService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, 100000)

		// Starts today so the occurrence is guaranteed inside the current
		// budget period.
		start := schedule.Day(time.Now())
		testutil.CreateTestRule(t, db, user.ID, account.ID, &cat.ID, models.TransactionTypeExpense, 4200, start)

		result, err := svc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)
		if result.BudgetsUpdated != 1 {
			t.Errorf("expected 1 budget updated, got %d", result.BudgetsUpdated)
		}

		var updated models.Budget
		if err := db.First(&updated, "id = ?", budget.ID).Error; err != nil {
			t.Fatalf("failed to reload budget: %v", err)
		}
		if updated.Consumption != 4200 {
			t.Errorf("expected consumption 4200, got %d", updated.Consumption)
		}
	})

	t.Run("future_rule_not_due", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSyncService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		start := schedule.Day(time.Now()).AddDate(0, 0, 7)
		rule := testutil.CreateTestRule(t, db, user.ID, account.ID, nil, models.TransactionTypeExpense, 1000, start)

		result, err := svc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)
		if result.TransactionsGenerated != 0 || result.RulesProcessed != 0 {
			t.Errorf("expected nothing processed, got %+v", result)
		}

		updated := reloadRule(t, db, rule.ID)
		if !updated.NextRunDate.Equal(start) {
			t.Errorf("expected untouched cursor %v, got %v", start, updated.NextRunDate)
		}
	})

	t.Run("inactive_rule_skipped", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSyncService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		start := schedule.Day(time.Now()).AddDate(0, 0, -3)
		rule := testutil.CreateTestRule(t, db, user.ID, account.ID, nil, models.TransactionTypeExpense, 1000, start)
		if err := db.Model(rule).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed to deactivate rule: %v", err)
		}

		result, err := svc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)
		if result.TransactionsGenerated != 0 {
			t.Errorf("expected no transactions for inactive rule, got %d", result.TransactionsGenerated)
		}
	})

	t.Run("end_date_caps_generation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSyncService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		start := schedule.Day(time.Now()).AddDate(0, 0, -6)
		end := start.AddDate(0, 0, 2)
		rule := testutil.CreateTestRule(t, db, user.ID, account.ID, nil, models.TransactionTypeExpense, 1000, start)
		if err := db.Model(rule).Update("end_date", end).Error; err != nil {
			t.Fatalf("failed to set end date: %v", err)
		}

		result, err := svc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)
		if result.TransactionsGenerated != 3 {
			t.Errorf("expected 3 transactions up to end date, got %d", result.TransactionsGenerated)
		}

		// The exhausted rule must never come due again.
		updated := reloadRule(t, db, rule.ID)
		if !updated.NextRunDate.After(end) {
			t.Errorf("expected cursor past end date, got %v", updated.NextRunDate)
		}
		again, err := svc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)
		if again.TransactionsGenerated != 0 || again.RulesProcessed != 0 {
			t.Errorf("expected exhausted rule skipped, got %+v", again)
		}
	})

	t.Run("materializes_transfer_pair", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		syncSvc := NewSyncService(db)
		accountSvc := NewAccountService(db)
		ruleSvc := NewRecurringRuleService(db, accountSvc)
		user := testutil.CreateTestUser(t, db)
		from := testutil.CreateTestAccount(t, db, user.ID)
		to := testutil.CreateTestAccount(t, db, user.ID)

		start := schedule.Day(time.Now()).AddDate(0, 0, -1)
		outRule, inRule, err := ruleSvc.CreateTransferRule(user.ID, from.ID, to.ID, RuleInput{
			Amount:      3000,
			Description: "Savings move",
			Frequency:   models.FrequencyDaily,
			Interval:    1,
			StartDate:   start,
		})
		testutil.AssertNoError(t, err)

		result, err := syncSvc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)

		// Two occurrences, two legs each.
		if result.TransactionsGenerated != 4 {
			t.Errorf("expected 4 generated transactions, got %d", result.TransactionsGenerated)
		}
		if result.RulesProcessed != 2 {
			t.Errorf("expected 2 rules processed, got %d", result.RulesProcessed)
		}

		var legs []models.Transaction
		if err := db.Where("user_id = ?", user.ID).Order("date").Find(&legs).Error; err != nil {
			t.Fatalf("failed to load transactions: %v", err)
		}
		for _, leg := range legs {
			if leg.PairedTransactionID == nil {
				t.Errorf("expected transaction %s to be paired", leg.ID)
				continue
			}
			var sibling models.Transaction
			if err := db.First(&sibling, "id = ?", *leg.PairedTransactionID).Error; err != nil {
				t.Errorf("paired transaction %s missing for %s", *leg.PairedTransactionID, leg.ID)
				continue
			}
			if sibling.PairedTransactionID == nil || *sibling.PairedTransactionID != leg.ID {
				t.Errorf("pairing between %s and %s is not mutual", leg.ID, sibling.ID)
			}
			if sibling.Amount != leg.Amount || !sibling.Date.Equal(leg.Date) {
				t.Errorf("paired legs disagree on amount or date: %s vs %s", leg.ID, sibling.ID)
			}
		}

		var fromAcc, toAcc models.Account
		if err := db.First(&fromAcc, "id = ?", from.ID).Error; err != nil {
			t.Fatalf("failed to reload account: %v", err)
		}
		if err := db.First(&toAcc, "id = ?", to.ID).Error; err != nil {
			t.Fatalf("failed to reload account: %v", err)
		}
		if fromAcc.Balance != -6000 {
			t.Errorf("expected source balance -6000, got %d", fromAcc.Balance)
		}
		if toAcc.Balance != 6000 {
			t.Errorf("expected destination balance 6000, got %d", toAcc.Balance)
		}

		// Both cursors advance together.
		outAfter := reloadRule(t, db, outRule.ID)
		inAfter := reloadRule(t, db, inRule.ID)
		if !outAfter.NextRunDate.Equal(inAfter.NextRunDate) {
			t.Errorf("cursors diverged: %v vs %v", outAfter.NextRunDate, inAfter.NextRunDate)
		}
	})

	t.Run("transfer_legs_do_not_consume_budgets", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		syncSvc := NewSyncService(db)
		accountSvc := NewAccountService(db)
		ruleSvc := NewRecurringRuleService(db, accountSvc)
		user := testutil.CreateTestUser(t, db)
		from := testutil.CreateTestAccount(t, db, user.ID)
		to := testutil.CreateTestAccount(t, db, user.ID)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, 50000)

		start := schedule.Day(time.Now())
		_, _, err := ruleSvc.CreateTransferRule(user.ID, from.ID, to.ID, RuleInput{
			Amount:    8000,
			Frequency: models.FrequencyDaily,
			Interval:  1,
			StartDate: start,
		})
		testutil.AssertNoError(t, err)

		result, err := syncSvc.Sync(user.ID, time.Now())
		testutil.AssertNoError(t, err)
		if result.BudgetsUpdated != 0 {
			t.Errorf("expected no budgets touched by a transfer, got %d", result.BudgetsUpdated)
		}

		var updated models.Budget
		if err := db.First(&updated, "id = ?", budget.ID).Error; err != nil {
			t.Fatalf("failed to reload budget: %v", err)
		}
		if updated.Consumption != 0 {
			t.Errorf("expected zero consumption, got %d", updated.Consumption)
		}
	})

	t.Run("broken_pair_aborts_run", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		syncSvc := NewSyncService(db)
		accountSvc := NewAccountService(db)
		ruleSvc := NewRecurringRuleService(db, accountSvc)
		user := testutil.CreateTestUser(t, db)
		from := testutil.CreateTestAccount(t, db, user.ID)
		to := testutil.CreateTestAccount(t, db, user.ID)
		other := testutil.CreateTestAccount(t, db, user.ID)

		start := schedule.Day(time.Now()).AddDate(0, 0, -1)
		outRule, inRule, err := ruleSvc.CreateTransferRule(user.ID, from.ID, to.ID, RuleInput{
			Amount:    3000,
			Frequency: models.FrequencyDaily,
			Interval:  1,
			StartDate: start,
		})
		testutil.AssertNoError(t, err)

		// An unpaired rule that would otherwise materialize in this run.
		solo := testutil.CreateTestRule(t, db, user.ID, other.ID, nil, models.TransactionTypeExpense, 500, start)

		if err := db.Unscoped().Delete(inRule).Error; err != nil {
			t.Fatalf("failed to break the pair: %v", err)
		}

		_, err = syncSvc.Sync(user.ID, time.Now())
		if !errors.Is(err, apperrors.ErrRulePairBroken) {
			t.Fatalf("expected ErrRulePairBroken, got %v", err)
		}

		// The run aborts whole: nothing materialized, no cursor moved.
		if n := countTransactions(t, db, user.ID); n != 0 {
			t.Errorf("expected no transactions after aborted sync, got %d", n)
		}
		outAfter := reloadRule(t, db, outRule.ID)
		if !outAfter.NextRunDate.Equal(start) {
			t.Errorf("expected unchanged cursor %v, got %v", start, outAfter.NextRunDate)
		}
		soloAfter := reloadRule(t, db, solo.ID)
		if !soloAfter.NextRunDate.Equal(start) {
			t.Errorf("expected unchanged solo cursor %v, got %v", start, soloAfter.NextRunDate)
		}
	})

	t.Run("scoped_to_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSyncService(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)
		account1 := testutil.CreateTestAccount(t, db, user1.ID)
		account2 := testutil.CreateTestAccount(t, db, user2.ID)

		start := schedule.Day(time.Now()).AddDate(0, 0, -1)
		testutil.CreateTestRule(t, db, user1.ID, account1.ID, nil, models.TransactionTypeExpense, 1000, start)
		testutil.CreateTestRule(t, db, user2.ID, account2.ID, nil, models.TransactionTypeExpense, 1000, start)

		result, err := svc.Sync(user1.ID, time.Now())
		testutil.AssertNoError(t, err)
		if result.TransactionsGenerated != 2 {
			t.Errorf("expected 2 transactions for user1, got %d", result.TransactionsGenerated)
		}
		if n := countTransactions(t, db, user2.ID); n != 0 {
			t.Errorf("expected user2 untouched, got %d transactions", n)
		}
	})
}
