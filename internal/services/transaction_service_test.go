package services

import (
	"testing"
	"time"

	"moneta/internal/models"
	"moneta/internal/pagination"
	"moneta/internal/testutil"

	"gorm.io/gorm"
)

func newTransactionService(db *gorm.DB) TransactionServicer {
	return NewTransactionService(db, NewAccountService(db))
}

func TestCreateTransaction(t *testing.T) {
	t.Run("valid_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		tx, err := svc.CreateTransaction(user.ID, account.ID, &cat.ID, models.TransactionTypeExpense, 2500, "Lunch", time.Now())
		testutil.AssertNoError(t, err)

		if tx.ID == "" {
			t.Fatal("expected non-empty transaction ID")
		}
		if tx.Generated {
			t.Error("manual transaction must not carry the generated flag")
		}

		var acc models.Account
		if err := db.First(&acc, "id = ?", account.ID).Error; err != nil {
			t.Fatalf("failed to reload account: %v", err)
		}
		if acc.Balance != -2500 {
			t.Errorf("expected balance -2500, got %d", acc.Balance)
		}
	})

	t.Run("updates_budget_consumption", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, 100000)

		_, err := svc.CreateTransaction(user.ID, account.ID, &cat.ID, models.TransactionTypeExpense, 3000, "Groceries", time.Now())
		testutil.AssertNoError(t, err)

		var updated models.Budget
		if err := db.First(&updated, "id = ?", budget.ID).Error; err != nil {
			t.Fatalf("failed to reload budget: %v", err)
		}
		if updated.Consumption != 3000 {
			t.Errorf("expected consumption 3000, got %d", updated.Consumption)
		}
	})

	t.Run("invalid_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		_, err := svc.CreateTransaction(user.ID, account.ID, nil, models.TransactionTypeExpense, -100, "", time.Now())
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("invalid_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		_, err := svc.CreateTransaction(user.ID, account.ID, nil, models.TransactionType("transfer"), 100, "", time.Now())
		testutil.AssertAppError(t, err, "INVALID_TRANSACTION_TYPE")
	})

	t.Run("wrong_user_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user2.ID)

		_, err := svc.CreateTransaction(user1.ID, account.ID, nil, models.TransactionTypeExpense, 100, "", time.Now())
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})
}

func TestCreateTransfer(t *testing.T) {
	t.Run("creates_paired_legs", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		from := testutil.CreateTestAccount(t, db, user.ID)
		to := testutil.CreateTestAccount(t, db, user.ID)

		out, in, err := svc.CreateTransfer(user.ID, from.ID, to.ID, 10000, "Move to savings", time.Now())
		testutil.AssertNoError(t, err)

		if out.Type != models.TransactionTypeExpense || in.Type != models.TransactionTypeIncome {
			t.Errorf("unexpected leg types: %s / %s", out.Type, in.Type)
		}
		if out.PairedTransactionID == nil || *out.PairedTransactionID != in.ID {
			t.Error("outgoing leg does not reference incoming leg")
		}
		if in.PairedTransactionID == nil || *in.PairedTransactionID != out.ID {
			t.Error("incoming leg does not reference outgoing leg")
		}

		var fromAcc, toAcc models.Account
		if err := db.First(&fromAcc, "id = ?", from.ID).Error; err != nil {
			t.Fatalf("failed to reload account: %v", err)
		}
		if err := db.First(&toAcc, "id = ?", to.ID).Error; err != nil {
			t.Fatalf("failed to reload account: %v", err)
		}
		if fromAcc.Balance != -10000 || toAcc.Balance != 10000 {
			t.Errorf("expected balances -10000/10000, got %d/%d", fromAcc.Balance, toAcc.Balance)
		}
	})

	t.Run("same_account_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		_, _, err := svc.CreateTransfer(user.ID, account.ID, account.ID, 10000, "", time.Now())
		testutil.AssertAppError(t, err, "SAME_ACCOUNT_TRANSFER")
	})
}

func TestGetUserTransactions(t *testing.T) {
	t.Run("filter_by_generated", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, 100)
		generated := testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, 200)
		if err := db.Model(generated).Update("generated", true).Error; err != nil {
			t.Fatalf("failed to flag transaction: %v", err)
		}

		page := pagination.PageRequest{Page: 1, PageSize: 20}
		flag := true
		result, err := svc.GetUserTransactions(user.ID, page, TransactionFilter{Generated: &flag})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 {
			t.Errorf("expected 1 generated transaction, got %d", result.TotalItems)
		}
	})

	t.Run("filter_by_date_range_and_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		old := testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, 100)
		if err := db.Model(old).Update("date", time.Now().AddDate(0, -2, 0)).Error; err != nil {
			t.Fatalf("failed to backdate transaction: %v", err)
		}
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, 200)
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeIncome, 300)

		page := pagination.PageRequest{Page: 1, PageSize: 20}
		from := time.Now().AddDate(0, 0, -7)
		txType := models.TransactionTypeExpense
		result, err := svc.GetUserTransactions(user.ID, page, TransactionFilter{FromDate: &from, Type: &txType})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 {
			t.Errorf("expected 1 matching transaction, got %d", result.TotalItems)
		}
	})
}

func TestDeleteTransaction(t *testing.T) {
	t.Run("recomputes_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		tx, err := svc.CreateTransaction(user.ID, account.ID, nil, models.TransactionTypeIncome, 5000, "", time.Now())
		testutil.AssertNoError(t, err)

		err = svc.DeleteTransaction(user.ID, tx.ID)
		testutil.AssertNoError(t, err)

		var acc models.Account
		if err := db.First(&acc, "id = ?", account.ID).Error; err != nil {
			t.Fatalf("failed to reload account: %v", err)
		}
		if acc.Balance != 0 {
			t.Errorf("expected balance 0 after delete, got %d", acc.Balance)
		}
	})

	t.Run("deletes_paired_leg", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)
		from := testutil.CreateTestAccount(t, db, user.ID)
		to := testutil.CreateTestAccount(t, db, user.ID)

		out, in, err := svc.CreateTransfer(user.ID, from.ID, to.ID, 10000, "", time.Now())
		testutil.AssertNoError(t, err)

		err = svc.DeleteTransaction(user.ID, out.ID)
		testutil.AssertNoError(t, err)

		_, err = svc.GetTransactionByID(user.ID, in.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")

		var fromAcc, toAcc models.Account
		if err := db.First(&fromAcc, "id = ?", from.ID).Error; err != nil {
			t.Fatalf("failed to reload account: %v", err)
		}
		if err := db.First(&toAcc, "id = ?", to.ID).Error; err != nil {
			t.Fatalf("failed to reload account: %v", err)
		}
		if fromAcc.Balance != 0 || toAcc.Balance != 0 {
			t.Errorf("expected both balances restored to 0, got %d/%d", fromAcc.Balance, toAcc.Balance)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTransactionService(db)
		user := testutil.CreateTestUser(t, db)

		err := svc.DeleteTransaction(user.ID, "b6a7c8d9-0000-7000-8000-000000000003")
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}
