package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrNotFound             = errors.New("not found")
	ErrProductNotFound      = fmt.Errorf("product %w", ErrNotFound)
	ErrCartItemNotFound     = fmt.Errorf("cart item %w", ErrNotFound)
	ErrCategoryNotFound     = fmt.Errorf("category %w", ErrNotFound)
	ErrWishlistItemNotFound = fmt.Errorf("wishlist item %w", ErrNotFound)
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrStorageConflict      = errors.New("storage conflict, try again later")
	ErrInactiveProduct      = errors.New("product is inactive")
	ErrProductInCarts       = errors.New("product is held in carts")
	ErrSKUAlreadyExists     = errors.New("sku already exists")
	ErrCategoryExists       = errors.New("category already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidQuantity      = fmt.Errorf("%w: quantity must be > 0", ErrInvalidArgument)
	ErrInvalidPrice         = fmt.Errorf("%w: price must be >= 0", ErrInvalidArgument)
	ErrInvalidStock         = fmt.Errorf("%w: stock must be >= 0", ErrInvalidArgument)
	ErrQuantityTooLarge     = fmt.Errorf("%w: quantity is too large", ErrInvalidArgument)
	ErrStockTooLarge        = fmt.Errorf("%w: stock plus reserved exceeds limit", ErrInvalidArgument)
	ErrEmptyName            = fmt.Errorf("%w: name is required", ErrInvalidArgument)
	ErrEmptySKU             = fmt.Errorf("%w: sku is required", ErrInvalidArgument)
)

// IsFailedPrecondition: бизнес-отказы, при которых запрос корректен,
// но состояние не позволяет его выполнить.
func IsFailedPrecondition(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInactiveProduct) ||
		errors.Is(err, ErrProductInCarts)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrSKUAlreadyExists) || errors.Is(err, ErrCategoryExists)
}
