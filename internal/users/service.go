package users

import (
	"context"
	"errors"
	"fmt"

	"mindsage/internal/auth"
	"mindsage/internal/docstore"
)

// Service reads and updates the caller's profile document.
type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// Profile returns the stored profile of user. Users who never saved preferences get
// the session identity with default preferences; nothing is written.
func (s *Service) Profile(ctx context.Context, user *auth.SessionUser) (*Profile, error) {
	doc, err := s.store.Get(ctx, collection, user.ID)
	if errors.Is(err, docstore.ErrNotFound) {
		return defaults(user), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return fromDocument(user, doc)
}

// UpdatePreferences merges the set fields into the user's document, creating it on
// first use.
func (s *Service) UpdatePreferences(ctx context.Context, user *auth.SessionUser, req UpdatePreferencesRequest) (*Profile, error) {
	fields := req.fields()
	if len(fields) == 0 {
		return s.Profile(ctx, user)
	}
	fields["email"] = user.Email

	doc, err := s.store.Set(ctx, collection, user.ID, fields)
	if err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return fromDocument(user, doc)
}

func defaults(user *auth.SessionUser) *Profile {
	return &Profile{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		PreferredMode: DefaultMode,
		AvatarID:      DefaultAvatarID,
	}
}

func fromDocument(user *auth.SessionUser, doc *docstore.Document) (*Profile, error) {
	var rec record
	if err := doc.Decode(&rec); err != nil {
		return nil, err
	}

	p := &Profile{
		ID:            user.ID,
		Email:         rec.Email,
		Name:          rec.Name,
		PreferredMode: rec.PreferredMode,
		AvatarID:      rec.AvatarID,
	}
	if p.Name != nil && *p.Name == "" {
		p.Name = nil
	}
	if p.PreferredMode == "" {
		p.PreferredMode = DefaultMode
	}
	if p.AvatarID == "" {
		p.AvatarID = DefaultAvatarID
	}
	if !rec.CreatedAt.IsZero() {
		created := rec.CreatedAt
		p.CreatedAt = &created
	}
	return p, nil
}
