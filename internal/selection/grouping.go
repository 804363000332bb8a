package selection

import (
	"github.com/mealkart/cartsync-backend/internal/cartview"
)

// Group partitions cart items by owning restaurant. Groups are derived on
// every read, ordered by first appearance, and never stored.
type Group struct {
	RestaurantID   int64           `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
	Items          []cartview.Item `json:"items"`
}

// GroupByRestaurant partitions items by restaurantId, insertion-ordered.
func GroupByRestaurant(items []cartview.Item) []Group {
	var groups []Group
	index := map[int64]int{}
	for _, item := range items {
		if at, ok := index[item.RestaurantID]; ok {
			groups[at].Items = append(groups[at].Items, item)
			continue
		}
		index[item.RestaurantID] = len(groups)
		groups = append(groups, Group{
			RestaurantID:   item.RestaurantID,
			RestaurantName: item.RestaurantName,
			Items:          []cartview.Item{item},
		})
	}
	return groups
}
