package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestWishlistFlow_PurchaseRecordsExpense(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "wishlist@test.com", "password123")

	accountID := app.createAccount(t, token, "Checking", 100000)
	categoryID := app.createCategory(t, token, "Electronics", "expense")

	// Add an item
	rec := app.request("POST", "/api/v1/wishlist",
		`{"name":"Mechanical Keyboard","price":25000,"priority":5}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating item, got %d: %s", rec.Code, rec.Body.String())
	}
	item := parseJSON(t, rec)["item"].(map[string]interface{})
	itemID := item["id"].(string)
	if item["purchased"].(bool) {
		t.Error("expected new item to be unpurchased")
	}

	// Purchase it from the account
	rec = app.request("POST", "/api/v1/wishlist/"+itemID+"/purchase",
		fmt.Sprintf(`{"account_id":%q,"category_id":%q}`, accountID, categoryID), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 purchasing item, got %d: %s", rec.Code, rec.Body.String())
	}
	purchased := parseJSON(t, rec)["item"].(map[string]interface{})
	if !purchased["purchased"].(bool) {
		t.Error("expected item to be marked purchased")
	}
	txID, ok := purchased["transaction_id"].(string)
	if !ok || txID == "" {
		t.Fatal("expected purchase to link a transaction")
	}

	// The linked expense reduced the account balance
	if balance := app.accountBalance(t, token, accountID); balance != 75000 {
		t.Errorf("expected balance 75000 after purchase, got %.0f", balance)
	}
	rec = app.request("GET", "/api/v1/transactions/"+txID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching purchase transaction, got %d: %s", rec.Code, rec.Body.String())
	}
	tx := parseJSON(t, rec)["transaction"].(map[string]interface{})
	if tx["type"] != "expense" || tx["amount"].(float64) != 25000 {
		t.Errorf("expected expense of 25000, got %v of %v", tx["type"], tx["amount"])
	}

	// Purchasing again conflicts
	rec = app.request("POST", "/api/v1/wishlist/"+itemID+"/purchase",
		fmt.Sprintf(`{"account_id":%q}`, accountID), token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for repeat purchase, got %d: %s", rec.Code, rec.Body.String())
	}
	errObj := parseJSON(t, rec)["error"].(map[string]interface{})
	if errObj["code"] != "WISHLIST_ITEM_PURCHASED" {
		t.Errorf("expected WISHLIST_ITEM_PURCHASED, got %v", errObj["code"])
	}
}

func TestWishlistFlow_ListAndFilter(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "wishlist2@test.com", "password123")

	accountID := app.createAccount(t, token, "Cash", 50000)

	rec := app.request("POST", "/api/v1/wishlist", `{"name":"Book","price":2000}`, token)
	bookID := parseJSON(t, rec)["item"].(map[string]interface{})["id"].(string)
	app.request("POST", "/api/v1/wishlist", `{"name":"Monitor","price":40000}`, token)

	// Buy the book
	rec = app.request("POST", "/api/v1/wishlist/"+bookID+"/purchase",
		fmt.Sprintf(`{"account_id":%q}`, accountID), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("purchase failed: %d %s", rec.Code, rec.Body.String())
	}

	// Filter unpurchased items
	rec = app.request("GET", "/api/v1/wishlist?purchased=false", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["total_items"].(float64) != 1 {
		t.Fatalf("expected 1 unpurchased item, got %.0f", result["total_items"].(float64))
	}
	remaining := result["data"].([]interface{})[0].(map[string]interface{})
	if remaining["name"] != "Monitor" {
		t.Errorf("expected Monitor to remain, got %v", remaining["name"])
	}
}
