package dashboard

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-dashboard-client/session"
)

type Restaurant struct {
	ID                   FlexInt  `json:"id"`
	Name                 string   `json:"name"`
	Address              string   `json:"address,omitempty"`
	Phone                string   `json:"phone,omitempty"`
	Description          string   `json:"description,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	OpenTime             string   `json:"open_time,omitempty"`
	CloseTime            string   `json:"close_time,omitempty"`
	RequireDeposit       bool     `json:"require_deposit,omitempty"`
	DefaultDepositAmount FlexInt  `json:"default_deposit_amount,omitempty"`
}

// RestaurantUpdate is a partial update. Nil fields are left untouched.
type RestaurantUpdate struct {
	Name                 *string  `json:"name,omitempty"`
	Address              *string  `json:"address,omitempty"`
	Phone                *string  `json:"phone,omitempty"`
	Description          *string  `json:"description,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	OpenTime             *string  `json:"open_time,omitempty"`
	CloseTime            *string  `json:"close_time,omitempty"`
	RequireDeposit       *bool    `json:"require_deposit,omitempty"`
	DefaultDepositAmount *int     `json:"default_deposit_amount,omitempty"`
}

type RestaurantService struct {
	r Requester
}

// Info returns the restaurant owned by the signed-in user
func (s *RestaurantService) Info(ctx context.Context) (*Restaurant, error) {
	raw, err := s.info(ctx)
	if err != nil {
		return nil, err
	}
	r := &Restaurant{}
	if err := decodeData(raw, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RestaurantService) info(ctx context.Context) (json.RawMessage, error) {
	return s.r.Request(ctx, session.Request{Method: http.MethodGet, Path: "/restaurants/me"})
}

func (s *RestaurantService) Update(ctx context.Context, update RestaurantUpdate) (json.RawMessage, error) {
	return s.r.Request(ctx, session.Request{Method: http.MethodPatch, Path: "/restaurants/me", Body: update})
}

// UpdateHours replaces the opening hours, keyed by weekday
func (s *RestaurantService) UpdateHours(ctx context.Context, hours map[string]any) (json.RawMessage, error) {
	return s.r.Request(ctx, session.Request{Method: http.MethodPatch, Path: "/restaurants/me", Body: map[string]any{"hours": hours}})
}

func (s *RestaurantService) UpdateTags(ctx context.Context, tags []string) (json.RawMessage, error) {
	if tags == nil {
		tags = []string{}
	}
	return s.r.Request(ctx, session.Request{Method: http.MethodPatch, Path: "/restaurants/me", Body: map[string]any{"tags": tags}})
}
