package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-dashboard-client/session"
)

type Table struct {
	ID       FlexInt `json:"id"`
	Name     string  `json:"name"`
	Capacity FlexInt `json:"capacity"`
	Area     string  `json:"area,omitempty"`
	Status   string  `json:"status,omitempty"`
}

type TableInput struct {
	Name     string `json:"name,omitempty"`
	Capacity int    `json:"capacity,omitempty"`
	Area     string `json:"area,omitempty"`
	Status   string `json:"status,omitempty"`
}

type TablesService struct {
	r Requester
}

func (s *TablesService) List(ctx context.Context) ([]Table, error) {
	raw, err := s.r.Request(ctx, session.Request{Method: http.MethodGet, Path: "/tables"})
	if err != nil {
		return nil, err
	}
	items, _, err := decodeList[Table](raw)
	return items, err
}

func (s *TablesService) Create(ctx context.Context, in TableInput) (json.RawMessage, error) {
	return s.r.Request(ctx, session.Request{Method: http.MethodPost, Path: "/tables", Body: in})
}

func (s *TablesService) Update(ctx context.Context, id int, in TableInput) (json.RawMessage, error) {
	raw, err := s.r.Request(ctx, session.Request{Method: http.MethodPatch, Path: fmt.Sprintf("/tables/%d", id), Body: in})
	return raw, notFound(err, "table %d", id)
}

func (s *TablesService) Delete(ctx context.Context, id int) (json.RawMessage, error) {
	raw, err := s.r.Request(ctx, session.Request{Method: http.MethodDelete, Path: fmt.Sprintf("/tables/%d", id)})
	return raw, notFound(err, "table %d", id)
}
