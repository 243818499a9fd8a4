package services

import (
	"testing"
	"time"

	"moneta/internal/models"
	"moneta/internal/pagination"
	"moneta/internal/testutil"
)

func TestCreateBudget(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		budget, err := svc.CreateBudget(user.ID, cat.ID, "Groceries", 50000, models.BudgetPeriodMonthly, time.Now(), nil)
		testutil.AssertNoError(t, err)

		if budget.ID == "" {
			t.Fatal("expected non-empty budget ID")
		}
		if budget.Amount != 50000 {
			t.Errorf("expected amount 50000, got %d", budget.Amount)
		}
		if !budget.IsActive {
			t.Error("expected budget to be active")
		}
	})

	t.Run("seeds_consumption_from_existing_transactions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		budgetSvc := NewBudgetService(db)
		txSvc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		_, err := txSvc.CreateTransaction(user.ID, account.ID, &cat.ID, models.TransactionTypeExpense, 7500, "Before budget", time.Now())
		testutil.AssertNoError(t, err)

		budget, err := budgetSvc.CreateBudget(user.ID, cat.ID, "Groceries", 50000, models.BudgetPeriodMonthly, time.Now(), nil)
		testutil.AssertNoError(t, err)
		if budget.Consumption != 7500 {
			t.Errorf("expected consumption seeded to 7500, got %d", budget.Consumption)
		}
	})

	t.Run("invalid_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		_, err := svc.CreateBudget(user.ID, cat.ID, "Bad", 0, models.BudgetPeriodMonthly, time.Now(), nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("wrong_user_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user2.ID, models.CategoryTypeExpense)

		_, err := svc.CreateBudget(user1.ID, cat.ID, "Not Mine", 50000, models.BudgetPeriodMonthly, time.Now(), nil)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestGetUserBudgets(t *testing.T) {
	t.Run("returns_user_budgets_only", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)
		cat1 := testutil.CreateTestCategory(t, db, user1.ID, models.CategoryTypeExpense)
		cat2 := testutil.CreateTestCategory(t, db, user2.ID, models.CategoryTypeExpense)

		testutil.CreateTestBudget(t, db, user1.ID, cat1.ID, 10000)
		testutil.CreateTestBudget(t, db, user1.ID, cat1.ID, 20000)
		testutil.CreateTestBudget(t, db, user2.ID, cat2.ID, 30000)

		page := pagination.PageRequest{Page: 1, PageSize: 20}
		result, err := svc.GetUserBudgets(user1.ID, page, nil, nil)
		testutil.AssertNoError(t, err)
		if result.TotalItems != 2 {
			t.Errorf("expected 2 budgets, got %d", result.TotalItems)
		}
	})
}

func TestUpdateBudget(t *testing.T) {
	t.Run("updates_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, 10000)

		amount := int64(25000)
		updated, err := svc.UpdateBudget(user.ID, budget.ID, "Renamed", &amount, nil, nil)
		testutil.AssertNoError(t, err)
		if updated.Name != "Renamed" || updated.Amount != 25000 {
			t.Errorf("unexpected budget after update: %s %d", updated.Name, updated.Amount)
		}
	})

	t.Run("period_change_recomputes_consumption", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		budgetSvc := NewBudgetService(db)
		txSvc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, 100000)

		// An expense earlier this year but before the current month.
		old, err := txSvc.CreateTransaction(user.ID, account.ID, &cat.ID, models.TransactionTypeExpense, 9000, "Old", time.Now())
		testutil.AssertNoError(t, err)
		backdated := time.Date(time.Now().Year(), 1, 2, 12, 0, 0, 0, time.UTC)
		if err := db.Model(&models.Transaction{}).Where("id = ?", old.ID).Update("date", backdated).Error; err != nil {
			t.Fatalf("failed to backdate transaction: %v", err)
		}

		period := models.BudgetPeriodYearly
		updated, err := budgetSvc.UpdateBudget(user.ID, budget.ID, "", nil, &period, nil)
		testutil.AssertNoError(t, err)
		if updated.Consumption != 9000 {
			t.Errorf("expected yearly consumption 9000, got %d", updated.Consumption)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.UpdateBudget(user.ID, "b6a7c8d9-0000-7000-8000-000000000004", "X", nil, nil, nil)
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestGetBudgetProgress(t *testing.T) {
	t.Run("reports_cached_consumption", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		budgetSvc := NewBudgetService(db)
		txSvc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		budget, err := budgetSvc.CreateBudget(user.ID, cat.ID, "Groceries", 20000, models.BudgetPeriodMonthly, time.Now(), nil)
		testutil.AssertNoError(t, err)

		_, err = txSvc.CreateTransaction(user.ID, account.ID, &cat.ID, models.TransactionTypeExpense, 5000, "Shop", time.Now())
		testutil.AssertNoError(t, err)

		progress, err := budgetSvc.GetBudgetProgress(user.ID, budget.ID)
		testutil.AssertNoError(t, err)
		if progress.Budgeted != 20000 {
			t.Errorf("expected budgeted 20000, got %d", progress.Budgeted)
		}
		if progress.Spent != 5000 {
			t.Errorf("expected spent 5000, got %d", progress.Spent)
		}
		if progress.Remaining != 15000 {
			t.Errorf("expected remaining 15000, got %d", progress.Remaining)
		}
		if progress.Percentage != 25.0 {
			t.Errorf("expected 25%% consumed, got %f", progress.Percentage)
		}
	})

	t.Run("excludes_transfers", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		budgetSvc := NewBudgetService(db)
		txSvc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		from := testutil.CreateTestAccount(t, db, user.ID)
		to := testutil.CreateTestAccount(t, db, user.ID)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		budget, err := budgetSvc.CreateBudget(user.ID, cat.ID, "Groceries", 20000, models.BudgetPeriodMonthly, time.Now(), nil)
		testutil.AssertNoError(t, err)

		_, _, err = txSvc.CreateTransfer(user.ID, from.ID, to.ID, 9999, "Internal move", time.Now())
		testutil.AssertNoError(t, err)

		progress, err := budgetSvc.GetBudgetProgress(user.ID, budget.ID)
		testutil.AssertNoError(t, err)
		if progress.Spent != 0 {
			t.Errorf("expected transfers excluded from spending, got %d", progress.Spent)
		}
	})
}
