package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "moneta/internal/errors"
	"moneta/internal/pagination"
	"moneta/internal/services"
)

// WishlistHandler handles wishlist-related requests.
type WishlistHandler struct {
	wishlistService services.WishlistServicer
	auditService    services.AuditServicer
}

// NewWishlistHandler creates a new WishlistHandler.
func NewWishlistHandler(wishlistService services.WishlistServicer, auditService services.AuditServicer) *WishlistHandler {
	return &WishlistHandler{wishlistService: wishlistService, auditService: auditService}
}

// CreateWishlistItemRequest represents the request payload for creating a wishlist item.
type CreateWishlistItemRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=500"`
	Price       int64  `json:"price" binding:"required,gt=0"`
	URL         string `json:"url" binding:"omitempty,url,max=2000"`
	Priority    int    `json:"priority" binding:"gte=0,lte=10"`
}

// UpdateWishlistItemRequest represents the request payload for updating a wishlist item.
type UpdateWishlistItemRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Price       *int64  `json:"price" binding:"omitempty,gt=0"`
	URL         *string `json:"url" binding:"omitempty,url,max=2000"`
	Priority    *int    `json:"priority" binding:"omitempty,gte=0,lte=10"`
}

// PurchaseWishlistItemRequest represents the request payload for purchasing a wishlist item.
type PurchaseWishlistItemRequest struct {
	AccountID  string  `json:"account_id" binding:"required,uuid"`
	CategoryID *string `json:"category_id" binding:"omitempty,uuid"`
	Date       *string `json:"date"`
}

// CreateItem handles the creation of a new wishlist item.
// @Summary     Create a wishlist item
// @Description Add an item to the authenticated user's wishlist
// @Tags        wishlist
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateWishlistItemRequest true "Item details"
// @Success     201 {object} models.WishlistItem "Item created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /wishlist [post]
func (h *WishlistHandler) CreateItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateWishlistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, err := h.wishlistService.CreateItem(userID, req.Name, req.Description, req.Price, req.URL, req.Priority)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_WISHLIST_ITEM", "wishlist_item", item.ID, c.ClientIP(),
		map[string]interface{}{"name": req.Name, "price": req.Price})

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// GetItems handles listing wishlist items for the authenticated user.
// @Summary     Get wishlist items
// @Description Get a paginated list of wishlist items for the authenticated user
// @Tags        wishlist
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       purchased query bool false "Filter by purchased status"
// @Param       page      query int  false "Page number (default 1)"
// @Param       page_size query int  false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.WishlistItem] "Paginated items"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /wishlist [get]
func (h *WishlistHandler) GetItems(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var purchased *bool
	if v := c.Query("purchased"); v != "" {
		switch v {
		case "true":
			b := true
			purchased = &b
		case "false":
			b := false
			purchased = &b
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "purchased must be 'true' or 'false'"))
			return
		}
	}

	result, err := h.wishlistService.GetUserItems(userID, page, purchased)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetItem handles retrieving a specific wishlist item.
// @Summary     Get wishlist item by ID
// @Description Get a specific wishlist item by ID
// @Tags        wishlist
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Item ID"
// @Success     200 {object} models.WishlistItem "Item details"
// @Failure     400 {object} ErrorResponse "Invalid item ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /wishlist/{id} [get]
func (h *WishlistHandler) GetItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	item, err := h.wishlistService.GetItemByID(userID, itemID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// UpdateItem handles updating a wishlist item.
// @Summary     Update wishlist item
// @Description Update an existing wishlist item
// @Tags        wishlist
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                    true "Item ID"
// @Param       request body UpdateWishlistItemRequest true "Fields to update"
// @Success     200 {object} models.WishlistItem "Updated item"
// @Failure     400 {object} ErrorResponse "Invalid input or item already purchased"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /wishlist/{id} [put]
func (h *WishlistHandler) UpdateItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateWishlistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, err := h.wishlistService.UpdateItem(userID, itemID, req.Name, req.Description, req.Price, req.URL, req.Priority)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// DeleteItem handles deleting a wishlist item.
// @Summary     Delete wishlist item
// @Description Delete a wishlist item by ID
// @Tags        wishlist
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Item ID"
// @Success     200 {object} MessageResponse "Item deleted"
// @Failure     400 {object} ErrorResponse "Invalid item ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /wishlist/{id} [delete]
func (h *WishlistHandler) DeleteItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.wishlistService.DeleteItem(userID, itemID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Wishlist item deleted successfully"})
}

// PurchaseItem handles marking a wishlist item as purchased.
// @Summary     Purchase wishlist item
// @Description Mark a wishlist item as purchased and record the expense transaction
// @Tags        wishlist
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                      true "Item ID"
// @Param       request body PurchaseWishlistItemRequest true "Purchase details"
// @Success     200 {object} models.WishlistItem "Purchased item"
// @Failure     400 {object} ErrorResponse "Invalid input or item already purchased"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Item or account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /wishlist/{id}/purchase [post]
func (h *WishlistHandler) PurchaseItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PurchaseWishlistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	purchaseDate := time.Now()
	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseFlexibleTime(*req.Date)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, parseErr.Error()))
			return
		}
		purchaseDate = parsed
	}

	item, err := h.wishlistService.PurchaseItem(userID, itemID, req.AccountID, req.CategoryID, purchaseDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "PURCHASE_WISHLIST_ITEM", "wishlist_item", itemID, c.ClientIP(),
		map[string]interface{}{"account_id": req.AccountID, "price": item.Price})

	c.JSON(http.StatusOK, gin.H{"item": item})
}
