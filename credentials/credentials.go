// Package credentials persists the access/refresh token pair and the stored user
// identity of a dashboard session on top of a pluggable key/value backend.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Keys names the four storage entries of a session.
type Keys struct {
	Access       string // current access token
	Refresh      string // refresh token, may be absent for legacy sessions
	LegacyAccess string // single-token key written by older clients
	User         string // opaque user profile blob
}

// DefaultKeys matches the key names used by the browser dashboard
var DefaultKeys = Keys{
	Access:       "access_token",
	Refresh:      "refresh_token",
	LegacyAccess: "auth_token",
	User:         "user_info",
}

func (k Keys) all() []string {
	return []string{k.Access, k.Refresh, k.LegacyAccess, k.User}
}

// Credentials is the token pair of the current session
type Credentials struct {
	AccessToken  string
	RefreshToken string    // empty when the session predates refresh tokens
	Expiry       time.Time // from the access token's exp claim, zero when unknown
}

// Store reads and writes session credentials
type Store struct {
	kv   KV
	keys Keys
}

type StoreOption func(*Store)

// WithKeys overrides the storage key names
func WithKeys(keys Keys) StoreOption {
	return func(s *Store) {
		s.keys = keys
	}
}

func NewStore(kv KV, options ...StoreOption) *Store {
	s := &Store{
		kv:   kv,
		keys: DefaultKeys,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Keys returns the key names in use
func (s *Store) Keys() Keys {
	return s.keys
}

// Get returns the current credentials, falling back to the legacy access key when
// the structured pair is absent. ok is false when there is no access token at all.
func (s *Store) Get(ctx context.Context) (Credentials, bool, error) {
	access, ok, err := s.kv.Get(ctx, s.keys.Access)
	if err != nil {
		return Credentials{}, false, err
	}
	if !ok || access == "" {
		access, ok, err = s.kv.Get(ctx, s.keys.LegacyAccess)
		if err != nil {
			return Credentials{}, false, err
		}
		if !ok || access == "" {
			return Credentials{}, false, nil
		}
	}

	refresh, _, err := s.kv.Get(ctx, s.keys.Refresh)
	if err != nil {
		return Credentials{}, false, err
	}

	return Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       AccessTokenExpiry(access),
	}, true, nil
}

// AccessToken returns only the access token, with the same legacy fallback as Get
func (s *Store) AccessToken(ctx context.Context) (string, bool, error) {
	c, ok, err := s.Get(ctx)
	return c.AccessToken, ok, err
}

func (s *Store) RefreshToken(ctx context.Context) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, s.keys.Refresh)
	if err != nil {
		return "", false, err
	}
	return v, ok && v != "", nil
}

// Save writes the access token (mirrored into the legacy key) and, when non-empty,
// the refresh token in a single backend write. An empty refresh token keeps the
// stored one. An empty access token is ignored.
func (s *Store) Save(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" {
		return nil
	}
	values := map[string]string{
		s.keys.Access:       accessToken,
		s.keys.LegacyAccess: accessToken,
	}
	if refreshToken != "" {
		values[s.keys.Refresh] = refreshToken
	}
	if err := s.kv.SetMany(ctx, values); err != nil {
		return fmt.Errorf("[Store Save] %w", err)
	}
	return nil
}

// SaveUser stores the user profile blob as-is
func (s *Store) SaveUser(ctx context.Context, user json.RawMessage) error {
	if len(user) == 0 {
		return nil
	}
	if !json.Valid(user) {
		return fmt.Errorf("[Store SaveUser] user is not valid JSON")
	}
	if err := s.kv.SetMany(ctx, map[string]string{s.keys.User: string(user)}); err != nil {
		return fmt.Errorf("[Store SaveUser] %w", err)
	}
	return nil
}

// User returns the stored user profile blob
func (s *Store) User(ctx context.Context) (json.RawMessage, bool, error) {
	v, ok, err := s.kv.Get(ctx, s.keys.User)
	if err != nil || !ok || v == "" {
		return nil, false, err
	}
	return json.RawMessage(v), true, nil
}

// Clear removes access, refresh, legacy and user entries together. Clearing an
// empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.keys.all()...); err != nil {
		return fmt.Errorf("[Store Clear] %w", err)
	}
	return nil
}
