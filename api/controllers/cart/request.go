package cart

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
)

// AddItemRequest adds a dish to the cart.
type AddItemRequest struct {
	DishID   int64 `json:"dishId" validate:"required,min=1"`
	Quantity int   `json:"quantity" validate:"required,min=1,max=999"`
}

// SetQuantityRequest carries a direct numeric entry. Out-of-range values,
// zero included, are clamped by the coordinator rather than rejected, so only
// presence is validated here.
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// SyncRequest migrates the named guest cart into the caller's server cart.
type SyncRequest struct {
	GuestSessionID string `json:"guestSessionId" validate:"required"`
}

func dishIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "dishID")
	dishID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || dishID < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid dish id")
	}
	return dishID, nil
}

func restaurantIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "restaurantID")
	restaurantID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid restaurant id")
	}
	return restaurantID, nil
}
