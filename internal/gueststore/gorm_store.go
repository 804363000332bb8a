package gueststore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mealkart/cartsync-backend/pkg/db/models"
	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
	"github.com/mealkart/cartsync-backend/pkg/logger"
	"gorm.io/gorm"
)

// GormStore persists guest cart lines in the cart_lines table. SQLite is the
// usual backend (local device storage); postgres works unchanged.
type GormStore struct {
	db       *gorm.DB
	logg     *logger.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewGormStore auto-migrates the cart_lines table and returns the store.
func NewGormStore(db *gorm.DB, logg *logger.Logger, cacheTTL time.Duration) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm connection required")
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if err := db.AutoMigrate(&models.CartLine{}); err != nil {
		return nil, fmt.Errorf("migrating cart_lines: %w", err)
	}
	return &GormStore{db: db, logg: logg, cacheTTL: cacheTTL, now: time.Now}, nil
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return s.db
	}
	return s.db.WithContext(ctx)
}

func (s *GormStore) AddItem(ctx context.Context, sessionID string, dishID int64, qty int, info *DishInfo) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var row models.CartLine
	err := s.conn(ctx).Where("session_id = ? AND dish_id = ?", sessionID, dishID).First(&row).Error
	switch {
	case err == nil:
		row.Quantity += qty
		applyInfoToRow(&row, info, s.now())
		if err := s.conn(ctx).Save(&row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update guest cart line")
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = models.CartLine{SessionID: sessionID, DishID: dishID, Quantity: qty}
		applyInfoToRow(&row, info, s.now())
		if err := s.conn(ctx).Create(&row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "insert guest cart line")
		}
		return nil
	default:
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load guest cart line")
	}
}

func (s *GormStore) UpdateItem(ctx context.Context, sessionID string, dishID int64, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, sessionID, dishID)
	}
	err := s.conn(ctx).
		Model(&models.CartLine{}).
		Where("session_id = ? AND dish_id = ?", sessionID, dishID).
		Update("quantity", qty).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update guest cart quantity")
	}
	return nil
}

func (s *GormStore) RemoveItem(ctx context.Context, sessionID string, dishID int64) error {
	err := s.conn(ctx).
		Where("session_id = ? AND dish_id = ?", sessionID, dishID).
		Delete(&models.CartLine{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "remove guest cart line")
	}
	return nil
}

func (s *GormStore) GetCart(ctx context.Context, sessionID string) ([]Line, error) {
	var rows []models.CartLine
	err := s.conn(ctx).
		Where("session_id = ? AND quantity >= 1", sessionID).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSessionID(ctx, sessionID), "guest cart unreadable, degrading to empty")
		}
		return nil, nil
	}
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, rowToLine(row))
	}
	return lines, nil
}

func (s *GormStore) ClearCart(ctx context.Context, sessionID string) error {
	err := s.conn(ctx).Where("session_id = ?", sessionID).Delete(&models.CartLine{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "clear guest cart")
	}
	return nil
}

func (s *GormStore) ItemsNeedingRefresh(ctx context.Context, sessionID string) ([]Line, error) {
	lines, _ := s.GetCart(ctx, sessionID)
	return filterNeedingRefresh(lines, s.now(), s.cacheTTL), nil
}

func (s *GormStore) UpdateCache(ctx context.Context, sessionID string, batch []CacheEntry) error {
	now := s.now()
	for _, entry := range batch {
		updates := map[string]any{
			"name":      entry.Info.Name,
			"image":     entry.Info.Image,
			"price":     entry.Info.Price,
			"cached_at": now,
		}
		if entry.Info.RestaurantID != 0 {
			updates["restaurant_id"] = entry.Info.RestaurantID
		}
		if entry.Info.RestaurantName != "" {
			updates["restaurant_name"] = entry.Info.RestaurantName
		}
		err := s.conn(ctx).
			Model(&models.CartLine{}).
			Where("session_id = ? AND dish_id = ?", sessionID, entry.DishID).
			Updates(updates).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update guest cart cache")
		}
	}
	return nil
}

func (s *GormStore) PrepareForSync(ctx context.Context, sessionID string) ([]SyncPair, error) {
	lines, _ := s.GetCart(ctx, sessionID)
	return toSyncPairs(lines), nil
}

func applyInfoToRow(row *models.CartLine, info *DishInfo, now time.Time) {
	if info == nil {
		return
	}
	name := info.Name
	image := info.Image
	price := info.Price
	cachedAt := now
	row.Name = &name
	row.Image = &image
	row.Price = &price
	row.CachedAt = &cachedAt
	if info.RestaurantID != 0 {
		rid := info.RestaurantID
		row.RestaurantID = &rid
	}
	if info.RestaurantName != "" {
		rname := info.RestaurantName
		row.RestaurantName = &rname
	}
}

func rowToLine(row models.CartLine) Line {
	return Line{
		DishID:         row.DishID,
		Quantity:       row.Quantity,
		Name:           row.Name,
		Image:          row.Image,
		Price:          row.Price,
		CachedAt:       row.CachedAt,
		RestaurantID:   row.RestaurantID,
		RestaurantName: row.RestaurantName,
	}
}
