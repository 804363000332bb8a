package cart

import (
	"github.com/shopspring/decimal"

	"github.com/mealkart/cartsync-backend/internal/cartview"
	"github.com/mealkart/cartsync-backend/internal/engine"
	"github.com/mealkart/cartsync-backend/internal/mutation"
	"github.com/mealkart/cartsync-backend/internal/selection"
)

// ItemResponse is one cart row joined with its selection flag and the live
// state of its mutation machine.
type ItemResponse struct {
	DishID         int64           `json:"dishId"`
	Name           string          `json:"name"`
	Image          string          `json:"image"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Quantity       int             `json:"quantity"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	RestaurantID   int64           `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
	Selected       bool            `json:"selected"`
	State          string          `json:"state"`
	CanIncrement   bool            `json:"canIncrement"`
	CanDecrement   bool            `json:"canDecrement"`
	ConfirmOpen    bool            `json:"confirmOpen"`
	LastError      string          `json:"lastError,omitempty"`
}

// GroupResponse is one restaurant section with its derived checkbox.
type GroupResponse struct {
	RestaurantID   int64           `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
	Checked        bool            `json:"checked"`
	Items          []ItemResponse  `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

// ViewResponse is the whole cart page: grouped rows, totals, and the derived
// select-all and checkout summary.
type ViewResponse struct {
	Groups     []GroupResponse  `json:"groups"`
	TotalItems int              `json:"totalItems"`
	TotalPrice decimal.Decimal  `json:"totalPrice"`
	AllChecked bool             `json:"allChecked"`
	Selected   selection.Totals `json:"selected"`
}

// LineResponse reports one line's machine state after a mutation call.
type LineResponse struct {
	DishID       int64  `json:"dishId"`
	State        string `json:"state"`
	Quantity     int    `json:"quantity"`
	CanIncrement bool   `json:"canIncrement"`
	CanDecrement bool   `json:"canDecrement"`
	ConfirmOpen  bool   `json:"confirmOpen"`
	LastError    string `json:"lastError,omitempty"`
}

// SyncResponse summarizes a guest cart migration.
type SyncResponse struct {
	Attempted int `json:"attempted"`
	Failed    int `json:"failed"`
}

// CountResponse carries the badge count.
type CountResponse struct {
	Count int `json:"count"`
}

func toLineResponse(view mutation.LineView) LineResponse {
	return LineResponse{
		DishID:       view.DishID,
		State:        view.State.String(),
		Quantity:     view.Quantity,
		CanIncrement: view.CanIncrement,
		CanDecrement: view.CanDecrement,
		ConfirmOpen:  view.ConfirmOpen,
		LastError:    view.LastError,
	}
}

func toItemResponse(item cartview.Item, selected bool, view mutation.LineView) ItemResponse {
	return ItemResponse{
		DishID:         item.DishID,
		Name:           item.Name,
		Image:          item.Image,
		UnitPrice:      item.UnitPrice,
		Quantity:       item.Quantity,
		Subtotal:       item.Subtotal,
		RestaurantID:   item.RestaurantID,
		RestaurantName: item.RestaurantName,
		Selected:       selected,
		State:          view.State.String(),
		CanIncrement:   view.CanIncrement,
		CanDecrement:   view.CanDecrement,
		ConfirmOpen:    view.ConfirmOpen,
		LastError:      view.LastError,
	}
}

func toViewResponse(eng *engine.Engine, resp cartview.CartResponse) ViewResponse {
	groups := selection.GroupByRestaurant(resp.Items)
	out := ViewResponse{
		Groups:     make([]GroupResponse, 0, len(groups)),
		TotalItems: resp.TotalItems,
		TotalPrice: resp.TotalPrice,
		AllChecked: eng.Selection.AllChecked(resp.Items),
		Selected:   eng.Selection.SelectedTotals(resp.Items),
	}
	for _, group := range groups {
		gr := GroupResponse{
			RestaurantID:   group.RestaurantID,
			RestaurantName: group.RestaurantName,
			Checked:        eng.Selection.GroupChecked(group),
			Items:          make([]ItemResponse, 0, len(group.Items)),
			Subtotal:       decimal.Zero,
		}
		for _, item := range group.Items {
			gr.Subtotal = gr.Subtotal.Add(item.Subtotal)
			gr.Items = append(gr.Items, toItemResponse(
				item,
				eng.Selection.IsSelected(item.DishID),
				eng.Coordinator.View(item.DishID),
			))
		}
		out.Groups = append(out.Groups, gr)
	}
	return out
}
