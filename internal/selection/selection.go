package selection

import (
	"sync"

	"github.com/mealkart/cartsync-backend/internal/cartview"
	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Set tracks the dish ids chosen for checkout. It is kept a subset of the
// current cart by Reconcile (after every refetch) and Prune (on removal).
// Group and select-all checked states are always derived, never stored.
type Set struct {
	mu     sync.Mutex
	chosen map[int64]struct{}
}

// NewSet returns an empty selection.
func NewSet() *Set {
	return &Set{chosen: map[int64]struct{}{}}
}

// ToggleItem flips one dish's membership.
func (s *Set) ToggleItem(dishID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chosen[dishID]; ok {
		delete(s.chosen, dishID)
		return
	}
	s.chosen[dishID] = struct{}{}
}

// ToggleGroup checks every member when any member is unchecked, otherwise
// unchecks the whole group.
func (s *Set) ToggleGroup(group Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := true
	for _, item := range group.Items {
		if _, ok := s.chosen[item.DishID]; !ok {
			all = false
			break
		}
	}
	for _, item := range group.Items {
		if all {
			delete(s.chosen, item.DishID)
		} else {
			s.chosen[item.DishID] = struct{}{}
		}
	}
}

// ToggleAll checks every item when any is unchecked, otherwise clears.
func (s *Set) ToggleAll(items []cartview.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := true
	for _, item := range items {
		if _, ok := s.chosen[item.DishID]; !ok {
			all = false
			break
		}
	}
	for _, item := range items {
		if all {
			delete(s.chosen, item.DishID)
		} else {
			s.chosen[item.DishID] = struct{}{}
		}
	}
}

// IsSelected reports one dish's membership.
func (s *Set) IsSelected(dishID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chosen[dishID]
	return ok
}

// GroupChecked derives a group's checkbox: true iff every member is selected.
func (s *Set) GroupChecked(group Group) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(group.Items) == 0 {
		return false
	}
	for _, item := range group.Items {
		if _, ok := s.chosen[item.DishID]; !ok {
			return false
		}
	}
	return true
}

// AllChecked derives the select-all checkbox over the whole cart.
func (s *Set) AllChecked(items []cartview.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if _, ok := s.chosen[item.DishID]; !ok {
			return false
		}
	}
	return true
}

// Prune drops one dish, e.g. after its removal from the cart.
func (s *Set) Prune(dishID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chosen, dishID)
}

// Reconcile drops every selected id the cart no longer contains, restoring
// the subset invariant after a refetch.
func (s *Set) Reconcile(items []cartview.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[int64]struct{}, len(items))
	for _, item := range items {
		known[item.DishID] = struct{}{}
	}
	for dishID := range s.chosen {
		if _, ok := known[dishID]; !ok {
			delete(s.chosen, dishID)
		}
	}
}

// Totals sums quantity and subtotal over the selected items.
type Totals struct {
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
}

// SelectedTotals computes the checkout summary for the current selection.
func (s *Set) SelectedTotals(items []cartview.Item) Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := Totals{Price: decimal.Zero}
	for _, item := range items {
		if _, ok := s.chosen[item.DishID]; ok {
			totals.Count += item.Quantity
			totals.Price = totals.Price.Add(item.Subtotal)
		}
	}
	return totals
}

// Snapshot lists the selected dish ids.
func (s *Set) Snapshot() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.chosen))
	for dishID := range s.chosen {
		ids = append(ids, dishID)
	}
	return ids
}

// Len reports how many dishes are selected.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chosen)
}

// CheckoutPreconditions gates the checkout hand-off: the visitor must be
// authenticated and something must be selected. Violations return typed
// errors the UI maps to a login prompt or a "nothing selected" notice.
func (s *Set) CheckoutPreconditions(authenticated bool) error {
	if !authenticated {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "login required before checkout")
	}
	if s.Len() == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no items selected for checkout")
	}
	return nil
}
