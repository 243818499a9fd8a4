package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
	"moneta/internal/pagination"
)

// wishlistService handles wishlist business logic.
type wishlistService struct {
	db                 *gorm.DB
	transactionService TransactionServicer
}

// NewWishlistService creates a new WishlistServicer.
func NewWishlistService(db *gorm.DB, transactionService TransactionServicer) WishlistServicer {
	return &wishlistService{db: db, transactionService: transactionService}
}

// CreateItem adds an item to the user's wishlist.
func (s *wishlistService) CreateItem(userID string, name, description string, price int64, url string, priority int) (*models.WishlistItem, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item name is required")
	}
	if price <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price must be greater than zero")
	}

	item := &models.WishlistItem{
		UserID:      userID,
		Name:        name,
		Description: description,
		Price:       price,
		URL:         url,
		Priority:    priority,
	}

	if err := s.db.Create(item).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return item, nil
}

// GetUserItems returns a paginated list of wishlist items, optionally
// filtered by purchase state.
func (s *wishlistService) GetUserItems(userID string, page pagination.PageRequest, purchased *bool) (*pagination.PageResponse[models.WishlistItem], error) {
	page.Defaults()

	base := s.db.Model(&models.WishlistItem{}).Where("user_id = ?", userID)
	if purchased != nil {
		base = base.Where("purchased = ?", *purchased)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var items []models.WishlistItem
	if err := base.Scopes(pagination.Paginate(page)).
		Order("priority DESC, created_at").
		Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(items, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetItemByID returns a wishlist item by ID if it belongs to the user.
func (s *wishlistService) GetItemByID(userID, itemID string) (*models.WishlistItem, error) {
	var item models.WishlistItem
	if err := s.db.Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWishlistItemNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &item, nil
}

// UpdateItem updates a wishlist item's fields. Purchased items are frozen.
func (s *wishlistService) UpdateItem(userID, itemID string, name, description *string, price *int64, url *string, priority *int) (*models.WishlistItem, error) {
	item, err := s.GetItemByID(userID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Purchased {
		return nil, apperrors.ErrWishlistItemPurchased
	}

	updates := make(map[string]interface{})
	if name != nil && *name != "" {
		updates["name"] = *name
	}
	if description != nil {
		updates["description"] = *description
	}
	if price != nil {
		if *price <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price must be greater than zero")
		}
		updates["price"] = *price
	}
	if url != nil {
		updates["url"] = *url
	}
	if priority != nil {
		updates["priority"] = *priority
	}

	if len(updates) > 0 {
		if err := s.db.Model(item).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return item, nil
}

// DeleteItem soft-deletes a wishlist item.
func (s *wishlistService) DeleteItem(userID, itemID string) error {
	item, err := s.GetItemByID(userID, itemID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(item).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// PurchaseItem marks an item as purchased and records the purchase as an
// expense transaction on the given account.
func (s *wishlistService) PurchaseItem(userID, itemID, accountID string, categoryID *string, date time.Time) (*models.WishlistItem, error) {
	item, err := s.GetItemByID(userID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Purchased {
		return nil, apperrors.ErrWishlistItemPurchased
	}

	if date.IsZero() {
		date = time.Now()
	}

	transaction, err := s.transactionService.CreateTransaction(
		userID, accountID, categoryID, models.TransactionTypeExpense, item.Price, item.Name, date)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.Model(item).Updates(map[string]interface{}{
		"purchased":      true,
		"purchased_at":   now,
		"transaction_id": transaction.ID,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	item.Purchased = true
	item.PurchasedAt = &now
	item.TransactionID = &transaction.ID

	return item, nil
}
