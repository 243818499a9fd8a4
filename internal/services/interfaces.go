package services

import (
	"time"

	"moneta/internal/models"
	"moneta/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID string, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(userID string, name string, accountType models.AccountType, description, currency string, initialBalance int64) (*models.Account, error)
	GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error)
}

// AccountUpdateFields holds optional fields for updating an account.
// Nil pointers leave the corresponding column untouched.
type AccountUpdateFields struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID string, name string, categoryType models.CategoryType, description, icon, color string, parentID *string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetUserCategoriesByType(userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID string, name, description, icon, color string, parentID *string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	CategoryID *string
	MinAmount  *int64
	MaxAmount  *int64
	AccountID  *string
	Generated  *bool
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID, accountID string, categoryID *string, transactionType models.TransactionType, amount int64, description string, date time.Time) (*models.Transaction, error)
	CreateTransfer(userID, fromAccountID, toAccountID string, amount int64, description string, date time.Time) (*models.Transaction, *models.Transaction, error)
	GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
}

// BudgetProgress contains spending vs budget data for a budget's current period.
type BudgetProgress struct {
	BudgetID   string  `json:"budget_id"`
	Budgeted   int64   `json:"budgeted"`
	Spent      int64   `json:"spent"`
	Remaining  int64   `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID, categoryID string, name string, amount int64, period models.BudgetPeriod, startDate time.Time, endDate *time.Time) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID string, name string, amount *int64, period *models.BudgetPeriod, endDate *time.Time) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	GetBudgetProgress(userID, budgetID string) (*BudgetProgress, error)
}

// RuleInput holds the user-supplied definition of a recurring rule.
type RuleInput struct {
	AccountID   string
	CategoryID  *string
	Type        models.TransactionType
	Amount      int64
	Description string
	Frequency   models.RecurrenceFrequency
	Interval    int
	Weekdays    []int
	MonthDays   []int
	StartDate   time.Time
	EndDate     *time.Time
}

// RuleUpdate holds optional fields for updating a recurring rule. A non-nil
// StartDate combined with ApplyRetroactive=true deletes the rule's generated
// transactions between the old start date and today before resetting the
// cursor.
type RuleUpdate struct {
	Amount           *int64
	Description      *string
	CategoryID       *string
	StartDate        *time.Time
	EndDate          *time.Time
	IsActive         *bool
	ApplyRetroactive bool
}

// RecurringRuleServicer defines the contract for recurring-rule business logic.
type RecurringRuleServicer interface {
	CreateRule(userID string, input RuleInput) (*models.RecurringRule, error)
	CreateTransferRule(userID string, fromAccountID, toAccountID string, input RuleInput) (*models.RecurringRule, *models.RecurringRule, error)
	GetUserRules(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.RecurringRule], error)
	GetRuleByID(userID, ruleID string) (*models.RecurringRule, error)
	UpdateRule(userID, ruleID string, update RuleUpdate) (*models.RecurringRule, error)
	DeleteRule(userID, ruleID string) error
}

// SyncResult reports what one sync run materialized.
type SyncResult struct {
	TransactionsGenerated int `json:"transactions_generated"`
	RulesProcessed        int `json:"rules_processed"`
	AccountsUpdated       int `json:"accounts_updated"`
	BudgetsUpdated        int `json:"budgets_updated"`
}

// SyncServicer defines the contract for the recurring-transaction sync engine.
type SyncServicer interface {
	Sync(userID string, asOf time.Time) (*SyncResult, error)
}

// WishlistServicer defines the contract for wishlist business logic.
type WishlistServicer interface {
	CreateItem(userID string, name, description string, price int64, url string, priority int) (*models.WishlistItem, error)
	GetUserItems(userID string, page pagination.PageRequest, purchased *bool) (*pagination.PageResponse[models.WishlistItem], error)
	GetItemByID(userID, itemID string) (*models.WishlistItem, error)
	UpdateItem(userID, itemID string, name, description *string, price *int64, url *string, priority *int) (*models.WishlistItem, error)
	DeleteItem(userID, itemID string) error
	PurchaseItem(userID, itemID, accountID string, categoryID *string, date time.Time) (*models.WishlistItem, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID string, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
