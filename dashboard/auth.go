package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-dashboard-client/apimodel"
	apperrors "github.com/jrsteele09/go-dashboard-client/internal/errors"
	"github.com/jrsteele09/go-dashboard-client/session"
)

// Profile is the signed-in dashboard user
type Profile struct {
	ID             FlexInt `json:"id"`
	Name           string  `json:"name,omitempty"`
	Email          string  `json:"email,omitempty"`
	Role           string  `json:"role,omitempty"`
	Avatar         string  `json:"avatar,omitempty"`
	RestaurantID   FlexInt `json:"restaurantId,omitempty"`
	RestaurantName string  `json:"restaurantName,omitempty"`
}

type OwnerRegistration struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Phone          string `json:"phone,omitempty"`
	RestaurantName string `json:"restaurantName"`
	Address        string `json:"address,omitempty"`
}

type StaffRegistration struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone,omitempty"`
	RestaurantID int    `json:"restaurantId"`
}

// AuthService signs users in and out and manages the stored user profile
type AuthService struct {
	s *session.Session
}

func NewAuthService(s *session.Session) *AuthService {
	return &AuthService{s: s}
}

// Login exchanges credentials for a token pair and stores it with the user profile.
// A rejected login never triggers a token refresh.
func (a *AuthService) Login(ctx context.Context, email, password string) (*Profile, error) {
	raw, err := a.s.Request(ctx, session.Request{
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Body:        apimodel.LoginRequest{Email: email, Password: password},
		SkipRenewal: true,
	})
	if err != nil {
		return nil, err
	}
	return a.establish(ctx, raw)
}

// RegisterOwner creates a restaurant owner account. The owner is signed in straight away.
func (a *AuthService) RegisterOwner(ctx context.Context, reg OwnerRegistration) (*Profile, error) {
	raw, err := a.s.Request(ctx, session.Request{
		Method:      http.MethodPost,
		Path:        "/auth/register-owner",
		Body:        reg,
		SkipRenewal: true,
	})
	if err != nil {
		return nil, err
	}
	return a.establish(ctx, raw)
}

// RegisterStaff requests a staff account. No tokens are issued until a manager approves it.
func (a *AuthService) RegisterStaff(ctx context.Context, reg StaffRegistration) (json.RawMessage, error) {
	return a.s.Request(ctx, session.Request{
		Method:      http.MethodPost,
		Path:        "/auth/register-staff",
		Body:        reg,
		SkipRenewal: true,
	})
}

func (a *AuthService) establish(ctx context.Context, raw json.RawMessage) (*Profile, error) {
	var resp apimodel.LoginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unexpected login response: %w", err)
	}
	access, refresh, user := resp.Tokens()
	if access == "" {
		msg := "no access token in login response"
		if b, ok := apimodel.ParseErrorBody(raw); ok && b.Text() != "" {
			msg = b.Text()
		}
		return nil, apperrors.Wrapf(apperrors.ErrNotAuthenticated, "%s", msg)
	}

	store := a.s.Store()
	if err := store.Save(ctx, access, refresh); err != nil {
		return nil, err
	}
	if err := store.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	profile := &Profile{}
	if len(user) > 0 {
		if err := json.Unmarshal(user, profile); err != nil {
			return nil, fmt.Errorf("unexpected user in login response: %w", err)
		}
	}
	return profile, nil
}

// Me fetches the current user from the backend
func (a *AuthService) Me(ctx context.Context) (*Profile, error) {
	raw, err := a.s.Get(ctx, "/auth/me")
	if err != nil {
		return nil, err
	}
	p := &Profile{}
	if err := decodeData(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}

// StoredUser returns the profile saved at login, or nil when none is stored
func (a *AuthService) StoredUser(ctx context.Context) (*Profile, error) {
	raw, ok, err := a.s.Store().User(ctx)
	if err != nil || !ok {
		return nil, err
	}
	p := &Profile{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("stored user is corrupt: %w", err)
	}
	return p, nil
}

// UpdateStoredUser merges fields into the stored profile. Without a stored
// profile it does nothing.
func (a *AuthService) UpdateStoredUser(ctx context.Context, fields map[string]any) error {
	store := a.s.Store()
	raw, ok, err := store.User(ctx)
	if err != nil || !ok {
		return err
	}
	user := map[string]any{}
	if err := json.Unmarshal(raw, &user); err != nil {
		return fmt.Errorf("stored user is corrupt: %w", err)
	}
	for k, v := range fields {
		user[k] = v
	}
	merged, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return store.SaveUser(ctx, merged)
}

func (a *AuthService) IsAuthenticated(ctx context.Context) bool {
	return a.s.IsAuthenticated(ctx)
}

func (a *AuthService) Logout(ctx context.Context) error {
	return a.s.Logout(ctx)
}

// Refresh renews the access token on demand
func (a *AuthService) Refresh(ctx context.Context) (string, error) {
	return a.s.Renew(ctx)
}
