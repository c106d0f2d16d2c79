package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	userdomain "github.com/example/realtime-chat/domain/user"
)

// SaveUser creates the user or updates its name.
func (s *Store) SaveUser(ctx context.Context, u *userdomain.User) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(u).Error
}

// FindUser loads a user by id.
func (s *Store) FindUser(ctx context.Context, userID string) (*userdomain.User, error) {
	var u userdomain.User
	result := s.db.WithContext(ctx).First(&u, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &u, nil
}

// SetPresence stores the online flag and last-seen time of userID. A user
// without a profile row gets one.
func (s *Store) SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_online", "last_seen", "updated_at"}),
	}).Create(&userdomain.User{
		ID:       userID,
		IsOnline: online,
		LastSeen: &lastSeen,
	}).Error
}

// ResetPresence marks every user offline. Connections do not survive a
// restart, so flags left online by a crash are stale.
func (s *Store) ResetPresence(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&userdomain.User{}).
		Where("is_online = ?", true).
		Update("is_online", false)
	return result.RowsAffected, result.Error
}
