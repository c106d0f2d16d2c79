// Package membership answers whether a user belongs to a chat.
package membership

import (
	"context"
	"strings"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Lookup is the durable source of truth for chat membership.
type Lookup interface {
	IsMember(ctx context.Context, userID, chatID string) (bool, error)
}

// Cache stores membership answers for a bounded time.
type Cache interface {
	Get(ctx context.Context, userID, chatID string) (member bool, found bool, err error)
	Set(ctx context.Context, userID, chatID string, member bool) error
	InvalidateChat(ctx context.Context, chatID string) error
}

// Oracle gates room joins and chat actions on membership. It fails closed:
// anything it cannot positively confirm is reported as "not a member".
type Oracle struct {
	lookup Lookup
	cache  Cache
	group  singleflight.Group
	logger types.Logger
}

// NewOracle creates an Oracle. cache may be nil.
func NewOracle(lookup Lookup, cache Cache, logger types.Logger) *Oracle {
	return &Oracle{
		lookup: lookup,
		cache:  cache,
		logger: logger,
	}
}

// IsMember reports whether userID is a member of chatID.
func (o *Oracle) IsMember(ctx context.Context, userID, chatID string) bool {
	if !ValidChatID(chatID) || strings.TrimSpace(userID) == "" {
		return false
	}

	if o.cache != nil {
		member, found, err := o.cache.Get(ctx, userID, chatID)
		if err != nil {
			o.logger.Warn("Membership cache read failed", "chatID", chatID, "userID", userID, "error", err)
		} else if found {
			return member
		}
	}

	v, err, _ := o.group.Do(chatID+"|"+userID, func() (any, error) {
		return o.lookup.IsMember(ctx, userID, chatID)
	})
	if err != nil {
		o.logger.Error("Membership lookup failed", "chatID", chatID, "userID", userID, "error", err)
		return false
	}
	member := v.(bool)

	if o.cache != nil {
		if err := o.cache.Set(ctx, userID, chatID, member); err != nil {
			o.logger.Warn("Membership cache write failed", "chatID", chatID, "userID", userID, "error", err)
		}
	}
	return member
}

// Invalidate drops every cached answer for chatID.
func (o *Oracle) Invalidate(ctx context.Context, chatID string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.InvalidateChat(ctx, chatID); err != nil {
		o.logger.Warn("Membership cache invalidation failed", "chatID", chatID, "error", err)
	}
}

// ValidChatID reports whether id is a well-formed chat identifier.
func ValidChatID(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
