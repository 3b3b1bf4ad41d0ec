package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-dashboard-client/session"
)

// Booking statuses used by the backend
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusRejected  = "REJECTED"
	StatusCompleted = "COMPLETED"
	StatusNoShow    = "NO_SHOW"
)

type BookingUser struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type BookingTable struct {
	Name string `json:"name,omitempty"`
}

// Booking is a reservation as the backend returns it
type Booking struct {
	ID            FlexInt       `json:"id"`
	Code          string        `json:"code,omitempty"`
	CustomerName  string        `json:"customer_name,omitempty"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	Phone         string        `json:"phone,omitempty"`
	PeopleCount   FlexInt       `json:"people_count,omitempty"`
	GuestCount    FlexInt       `json:"guest_count,omitempty"`
	Guests        FlexInt       `json:"guests,omitempty"`
	BookingTime   string        `json:"booking_time,omitempty"`
	BookingDate   string        `json:"booking_date,omitempty"`
	Date          string        `json:"date,omitempty"`
	Datetime      string        `json:"datetime,omitempty"`
	Status        string        `json:"status,omitempty"`
	TableID       FlexInt       `json:"table_id,omitempty"`
	TableName     string        `json:"table_name,omitempty"`
	Table         *BookingTable `json:"table,omitempty"`
	DepositAmount FlexInt       `json:"deposit_amount,omitempty"`
	Deposit       FlexInt       `json:"deposit,omitempty"`
	PaymentStatus string        `json:"payment_status,omitempty"`
	Note          string        `json:"note,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     string        `json:"created_at,omitempty"`
	User          *BookingUser  `json:"user,omitempty"`
}

// GuestTotal returns the party size from whichever field the backend filled
func (b Booking) GuestTotal() int {
	for _, n := range []FlexInt{b.PeopleCount, b.GuestCount, b.Guests} {
		if n != 0 {
			return int(n)
		}
	}
	return 0
}

// Time parses the booking time in loc. ok is false when no known field holds a time.
func (b Booking) Time(loc *time.Location) (time.Time, bool) {
	return parseBookingTime(firstNonEmpty(b.BookingTime, b.BookingDate, b.Date, b.Datetime), loc)
}

var bookingTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseBookingTime(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range bookingTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BookingDetail is a single booking mapped for display
type BookingDetail struct {
	ID            int    `json:"id"`
	Code          string `json:"code"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	Guests        int    `json:"guests"`
	Datetime      string `json:"datetime"`
	Status        string `json:"status"`
	TableID       int    `json:"tableId,omitempty"`
	TableName     string `json:"tableName"`
	Deposit       int    `json:"deposit"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
	Notes         string `json:"notes"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

func (b Booking) detail() BookingDetail {
	d := BookingDetail{
		ID:            int(b.ID),
		Code:          b.Code,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.Phone,
		Guests:        int(b.PeopleCount),
		Datetime:      firstNonEmpty(b.BookingTime, b.Datetime),
		Status:        b.Status,
		TableID:       int(b.TableID),
		Deposit:       int(b.DepositAmount),
		PaymentStatus: b.PaymentStatus,
		Notes:         firstNonEmpty(b.Note, b.Notes),
		CreatedAt:     b.CreatedAt,
	}
	if d.Code == "" {
		d.Code = fmt.Sprintf("BK-%d", b.ID)
	}
	if b.User != nil {
		d.CustomerName = firstNonEmpty(d.CustomerName, b.User.DisplayName, b.User.Name)
		d.CustomerPhone = firstNonEmpty(d.CustomerPhone, b.User.Phone)
	}
	d.CustomerName = firstNonEmpty(d.CustomerName, "N/A")
	d.CustomerPhone = firstNonEmpty(d.CustomerPhone, "N/A")
	if d.Guests == 0 {
		d.Guests = int(b.Guests)
	}
	if d.Deposit == 0 {
		d.Deposit = int(b.Deposit)
	}
	switch {
	case b.Table != nil && b.Table.Name != "":
		d.TableName = b.Table.Name
	case b.TableID != 0:
		d.TableName = fmt.Sprintf("Table %d", b.TableID)
	default:
		d.TableName = "Unassigned"
	}
	return d
}

type BookingsService struct {
	r Requester
}

// List returns bookings matching params (status, date, page, limit ...)
func (b *BookingsService) List(ctx context.Context, params url.Values) ([]Booking, error) {
	path := "/bookings"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}
	raw, err := b.r.Request(ctx, session.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	items, _, err := decodeList[Booking](raw)
	return items, err
}

func (b *BookingsService) Get(ctx context.Context, id int) (*BookingDetail, error) {
	raw, err := b.r.Request(ctx, session.Request{Method: http.MethodGet, Path: fmt.Sprintf("/bookings/%d", id)})
	if err != nil {
		return nil, notFound(err, "booking %d", id)
	}
	var booking Booking
	if err := decodeData(raw, &booking); err != nil {
		return nil, err
	}
	d := booking.detail()
	return &d, nil
}

func (b *BookingsService) Confirm(ctx context.Context, id int) (json.RawMessage, error) {
	return b.transition(ctx, id, "confirm", struct{}{})
}

func (b *BookingsService) Cancel(ctx context.Context, id int) (json.RawMessage, error) {
	return b.transition(ctx, id, "cancel", struct{}{})
}

// CheckIn marks the guests as arrived. The backend calls this completing the booking.
func (b *BookingsService) CheckIn(ctx context.Context, id int) (json.RawMessage, error) {
	return b.transition(ctx, id, "complete", struct{}{})
}

func (b *BookingsService) NoShow(ctx context.Context, id int) (json.RawMessage, error) {
	return b.transition(ctx, id, "no-show", struct{}{})
}

func (b *BookingsService) AssignTable(ctx context.Context, id, tableID int) (json.RawMessage, error) {
	return b.transition(ctx, id, "assign-table", map[string]int{"tableId": tableID})
}

func (b *BookingsService) transition(ctx context.Context, id int, action string, body any) (json.RawMessage, error) {
	return b.r.Request(ctx, session.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/bookings/%d/%s", id, action),
		Body:   body,
	})
}
