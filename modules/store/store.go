// Package store persists chats, members, messages and presence with GORM on SQLite.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	domain "github.com/example/realtime-chat/domain/chat"
	userdomain "github.com/example/realtime-chat/domain/user"
)

var (
	// ErrNotFound is returned when a chat, message or user does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyMember is returned when adding a user that is already in the chat.
	ErrAlreadyMember = errors.New("user is already a member of this chat")
)

// Open opens the SQLite database at path and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases shared across goroutines.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables used by the chat core.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&userdomain.User{},
		&domain.Chat{},
		&domain.ChatMember{},
		&domain.Message{},
		&domain.MessageSeen{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Store is the durable store for the chat core.
type Store struct {
	db *gorm.DB
}

// New creates a Store on an opened database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsMember reports whether userID has a ChatMember row for chatID.
func (s *Store) IsMember(ctx context.Context, userID, chatID string) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// MemberRole returns the role of userID in chatID.
func (s *Store) MemberRole(ctx context.Context, chatID, userID string) (domain.Role, error) {
	var member domain.ChatMember
	result := s.db.WithContext(ctx).First(&member, "chat_id = ? AND user_id = ?", chatID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", result.Error
	}
	return member.Role, nil
}

// ChatMemberIDs returns the user ids of every member of chatID in join order.
func (s *Store) ChatMemberIDs(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	result := s.db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Pluck("user_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}

// CoMemberIDs returns the distinct users sharing at least one chat with userID,
// excluding userID itself.
func (s *Store) CoMemberIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	result := s.db.WithContext(ctx).
		Table("chat_members AS mine").
		Joins("JOIN chat_members AS other ON other.chat_id = mine.chat_id").
		Where("mine.user_id = ? AND other.user_id <> ?", userID, userID).
		Distinct().
		Order("other.user_id ASC").
		Pluck("other.user_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}

// CreateChat inserts the chat together with its members.
func (s *Store) CreateChat(ctx context.Context, chat *domain.Chat) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(chat).Error
	})
}

// FindChat loads a chat and its members.
func (s *Store) FindChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	var chat domain.Chat
	result := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&chat, "id = ?", chatID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &chat, nil
}

// ListChats returns the chats userID belongs to, most recently active first.
func (s *Store) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	var chats []domain.Chat
	result := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id IN (?)", s.db.Model(&domain.ChatMember{}).Select("chat_id").Where("user_id = ?", userID)).
		Order("updated_at DESC").
		Find(&chats)
	if result.Error != nil {
		return nil, result.Error
	}
	return chats, nil
}

// FindDirectChat returns the non-group chat whose members are exactly a and b.
func (s *Store) FindDirectChat(ctx context.Context, a, b string) (*domain.Chat, error) {
	var chatID string
	result := s.db.WithContext(ctx).
		Table("chat_members").
		Select("chat_members.chat_id").
		Joins("JOIN chats ON chats.id = chat_members.chat_id AND chats.is_group = ?", false).
		Where("chat_members.user_id IN ?", []string{a, b}).
		Group("chat_members.chat_id").
		Having("COUNT(DISTINCT chat_members.user_id) = 2").
		Limit(1).
		Scan(&chatID)
	if result.Error != nil {
		return nil, result.Error
	}
	if chatID == "" {
		return nil, ErrNotFound
	}
	return s.FindChat(ctx, chatID)
}

// AddMember adds userID to chatID with the given role.
func (s *Store) AddMember(ctx context.Context, chatID, userID string, role domain.Role) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Chat{}).Where("id = ?", chatID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.ChatMember{
			ChatID: chatID,
			UserID: userID,
			Role:   role,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyMember
		}
		return tx.Model(&domain.Chat{}).Where("id = ?", chatID).Update("updated_at", time.Now()).Error
	})
}

// CreateMessage persists msg, records the sender as its first viewer and
// touches the chat's updatedAt, all in one transaction. It returns the new
// updatedAt of the chat.
func (s *Store) CreateMessage(ctx context.Context, msg *domain.Message) (time.Time, error) {
	updatedAt := msg.CreatedAt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		touched := tx.Model(&domain.Chat{}).Where("id = ?", msg.ChatID).Update("updated_at", updatedAt)
		if touched.Error != nil {
			return touched.Error
		}
		if touched.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Create(&domain.MessageSeen{MessageID: msg.ID, UserID: msg.SenderID}).Error
	})
	if err != nil {
		return time.Time{}, err
	}
	msg.SeenBy = []string{msg.SenderID}
	msg.Sender = s.sender(ctx, msg.SenderID)
	return updatedAt, nil
}

// AddSeen appends userID to the viewers of messageID. Appending a viewer that
// is already present is a no-op. The message is returned with its full SeenBy.
func (s *Store) AddSeen(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	var msg domain.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.MessageSeen{MessageID: messageID, UserID: userID}).Error; err != nil {
			return err
		}
		seenBy, err := seenByFor(tx, []string{messageID})
		if err != nil {
			return err
		}
		msg.SeenBy = seenBy[messageID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindMessage loads a message with its viewers.
func (s *Store) FindMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	var msg domain.Message
	db := s.db.WithContext(ctx)
	if err := db.First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	seenBy, err := seenByFor(db, []string{messageID})
	if err != nil {
		return nil, err
	}
	msg.SeenBy = seenBy[messageID]
	msg.Sender = s.sender(ctx, msg.SenderID)
	return &msg, nil
}

// ListMessages returns up to limit of the most recent messages of chatID,
// oldest first. Order is insertion order (rowid), not created_at, which the
// caller stamps before the insert.
func (s *Store) ListMessages(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	db := s.db.WithContext(ctx)

	var messages []domain.Message
	if err := db.Where("chat_id = ?", chatID).
		Order("rowid DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(messages))
	senderIDs := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
		senderIDs = append(senderIDs, m.SenderID)
	}
	seenBy, err := seenByFor(db, ids)
	if err != nil {
		return nil, err
	}
	senders, err := s.senders(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	out := make([]domain.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		m.SeenBy = seenBy[m.ID]
		if m.SeenBy == nil {
			m.SeenBy = []string{}
		}
		m.Sender = senders[m.SenderID]
		out = append(out, m)
	}
	return out, nil
}

func seenByFor(db *gorm.DB, messageIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	var rows []domain.MessageSeen
	if err := db.Where("message_id IN ?", messageIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.MessageID] = append(out[r.MessageID], r.UserID)
	}
	return out, nil
}

// sender returns the public profile of userID, or a bare id when the user
// row does not exist.
func (s *Store) sender(ctx context.Context, userID string) *domain.MessageSender {
	senders, err := s.senders(ctx, []string{userID})
	if err != nil || senders[userID] == nil {
		return &domain.MessageSender{ID: userID}
	}
	return senders[userID]
}

func (s *Store) senders(ctx context.Context, userIDs []string) (map[string]*domain.MessageSender, error) {
	out := make(map[string]*domain.MessageSender, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var users []userdomain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = &domain.MessageSender{ID: u.ID, Name: u.Name}
	}
	for _, id := range userIDs {
		if out[id] == nil {
			out[id] = &domain.MessageSender{ID: id}
		}
	}
	return out, nil
}
