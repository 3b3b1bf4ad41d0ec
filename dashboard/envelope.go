package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// unwrapData returns the "data" member of a { success, data } envelope, or raw
// itself when the response is not wrapped.
func unwrapData(raw json.RawMessage) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return trimmed
	}
	return env.Data
}

// decodeData unwraps raw and decodes it into v
func decodeData(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(unwrapData(raw), v); err != nil {
		return fmt.Errorf("unexpected response shape: %w", err)
	}
	return nil
}

// Pagination as returned next to paged lists
type Pagination struct {
	Page       int `json:"page,omitempty"`
	Limit      int `json:"limit,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"totalPages,omitempty"`
}

// decodeList accepts a bare array, { items, pagination }, and either wrapped in data.
func decodeList[T any](raw json.RawMessage) ([]T, Pagination, error) {
	data := unwrapData(raw)
	if len(data) == 0 || string(data) == "null" {
		return nil, Pagination{}, nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, Pagination{}, fmt.Errorf("unexpected list shape: %w", err)
		}
		return items, Pagination{}, nil
	}
	var page struct {
		Items      []T        `json:"items"`
		Pagination Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, Pagination{}, fmt.Errorf("unexpected list shape: %w", err)
	}
	return page.Items, page.Pagination, nil
}

// FlexInt decodes numbers the backend sometimes sends as strings
type FlexInt int

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// non numeric strings count as zero, matching the dashboard's parseInt fallback
		*n = 0
		return nil
	}
	*n = FlexInt(int(v))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
