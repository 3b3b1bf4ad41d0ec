package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-dashboard-client/session"
)

type Notification struct {
	ID        FlexInt         `json:"id"`
	Type      string          `json:"type,omitempty"`
	Title     string          `json:"title,omitempty"`
	Message   string          `json:"message,omitempty"`
	IsRead    bool            `json:"is_read"`
	CreatedAt string          `json:"created_at,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type NotificationPage struct {
	Items      []Notification `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

type NotificationsService struct {
	r Requester
}

func (s *NotificationsService) List(ctx context.Context, params url.Values) (*NotificationPage, error) {
	path := "/notifications"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}
	raw, err := s.r.Request(ctx, session.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	items, pagination, err := decodeList[Notification](raw)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Notification{}
	}
	return &NotificationPage{Items: items, Pagination: pagination}, nil
}

// UnreadCount accepts both { unreadCount } and { count }
func (s *NotificationsService) UnreadCount(ctx context.Context) (int, error) {
	raw, err := s.r.Request(ctx, session.Request{Method: http.MethodGet, Path: "/notifications/unread-count"})
	if err != nil {
		return 0, err
	}
	var body struct {
		UnreadCount FlexInt `json:"unreadCount"`
		Count       FlexInt `json:"count"`
	}
	if err := decodeData(raw, &body); err != nil {
		return 0, err
	}
	if body.UnreadCount != 0 {
		return int(body.UnreadCount), nil
	}
	return int(body.Count), nil
}

func (s *NotificationsService) MarkRead(ctx context.Context, id int) (json.RawMessage, error) {
	return s.r.Request(ctx, session.Request{Method: http.MethodPatch, Path: fmt.Sprintf("/notifications/%d/read", id), Body: struct{}{}})
}

func (s *NotificationsService) MarkAllRead(ctx context.Context) (json.RawMessage, error) {
	return s.r.Request(ctx, session.Request{Method: http.MethodPatch, Path: "/notifications/read-all", Body: struct{}{}})
}

func (s *NotificationsService) Delete(ctx context.Context, id int) (json.RawMessage, error) {
	return s.r.Request(ctx, session.Request{Method: http.MethodDelete, Path: fmt.Sprintf("/notifications/%d", id)})
}
