package services

import (
	"testing"
	"time"

	"moneta/internal/models"
	"moneta/internal/pagination"
	"moneta/internal/testutil"

	"gorm.io/gorm"
)

func newWishlistService(db *gorm.DB) WishlistServicer {
	return NewWishlistService(db, newTransactionService(db))
}

func TestCreateWishlistItem(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newWishlistService(db)
		user := testutil.CreateTestUser(t, db)

		item, err := svc.CreateItem(user.ID, "Laptop", "Work machine", 250000, "https://example.com/laptop", 5)
		testutil.AssertNoError(t, err)

		if item.ID == "" {
			t.Fatal("expected non-empty item ID")
		}
		if item.Purchased {
			t.Error("expected new item unpurchased")
		}
	})

	t.Run("invalid_price", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newWishlistService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateItem(user.ID, "Free", "", 0, "", 0)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetUserWishlistItems(t *testing.T) {
	t.Run("filter_by_purchased", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newWishlistService(db)
		user := testutil.CreateTestUser(t, db)

		testutil.CreateTestWishlistItem(t, db, user.ID, 1000)
		bought := testutil.CreateTestWishlistItem(t, db, user.ID, 2000)
		if err := db.Model(bought).Update("purchased", true).Error; err != nil {
			t.Fatalf("failed to mark item purchased: %v", err)
		}

		page := pagination.PageRequest{Page: 1, PageSize: 20}
		pending := false
		result, err := svc.GetUserItems(user.ID, page, &pending)
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 {
			t.Errorf("expected 1 unpurchased item, got %d", result.TotalItems)
		}
	})
}

func TestPurchaseWishlistItem(t *testing.T) {
	t.Run("records_expense_and_marks_purchased", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newWishlistService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		item := testutil.CreateTestWishlistItem(t, db, user.ID, 30000)

		purchased, err := svc.PurchaseItem(user.ID, item.ID, account.ID, nil, time.Now())
		testutil.AssertNoError(t, err)

		if !purchased.Purchased || purchased.PurchasedAt == nil {
			t.Error("expected item marked purchased")
		}
		if purchased.TransactionID == nil {
			t.Fatal("expected linked transaction")
		}

		var tx models.Transaction
		if err := db.First(&tx, "id = ?", *purchased.TransactionID).Error; err != nil {
			t.Fatalf("failed to load purchase transaction: %v", err)
		}
		if tx.Type != models.TransactionTypeExpense || tx.Amount != 30000 {
			t.Errorf("unexpected purchase transaction: %s %d", tx.Type, tx.Amount)
		}

		var acc models.Account
		if err := db.First(&acc, "id = ?", account.ID).Error; err != nil {
			t.Fatalf("failed to reload account: %v", err)
		}
		if acc.Balance != -30000 {
			t.Errorf("expected balance -30000, got %d", acc.Balance)
		}
	})

	t.Run("already_purchased", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newWishlistService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		item := testutil.CreateTestWishlistItem(t, db, user.ID, 1000)
		_, err := svc.PurchaseItem(user.ID, item.ID, account.ID, nil, time.Now())
		testutil.AssertNoError(t, err)

		_, err = svc.PurchaseItem(user.ID, item.ID, account.ID, nil, time.Now())
		testutil.AssertAppError(t, err, "WISHLIST_ITEM_PURCHASED")
	})

	t.Run("unknown_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newWishlistService(db)
		user := testutil.CreateTestUser(t, db)
		item := testutil.CreateTestWishlistItem(t, db, user.ID, 1000)

		_, err := svc.PurchaseItem(user.ID, item.ID, "b6a7c8d9-0000-7000-8000-000000000005", nil, time.Now())
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})
}

func TestDeleteWishlistItem(t *testing.T) {
	t.Run("wrong_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newWishlistService(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)
		item := testutil.CreateTestWishlistItem(t, db, user1.ID, 1000)

		err := svc.DeleteItem(user2.ID, item.ID)
		testutil.AssertAppError(t, err, "WISHLIST_ITEM_NOT_FOUND")
	})
}
