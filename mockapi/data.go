package mockapi

import (
	"time"
)

// SeedPassword is the password of every seeded account
const SeedPassword = "Password123"

// Seeded account emails
const (
	OwnerEmail = "owner@example.com"
	StaffEmail = "staff@example.com"
)

type restaurant struct {
	ID                   int      `json:"id"`
	Name                 string   `json:"name"`
	Address              string   `json:"address"`
	Phone                string   `json:"phone"`
	Description          string   `json:"description"`
	Tags                 []string `json:"tags"`
	OpenTime             string   `json:"open_time"`
	CloseTime            string   `json:"close_time"`
	RequireDeposit       bool     `json:"require_deposit"`
	DefaultDepositAmount int      `json:"default_deposit_amount"`
	Hours                any      `json:"hours,omitempty"`
}

type table struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Area     string `json:"area"`
	Status   string `json:"status"`
}

type booking struct {
	ID            int    `json:"id"`
	Code          string `json:"code"`
	CustomerName  string `json:"customer_name"`
	Phone         string `json:"phone"`
	PeopleCount   int    `json:"people_count"`
	BookingTime   string `json:"booking_time"`
	Status        string `json:"status"`
	TableID       int    `json:"table_id,omitempty"`
	DepositAmount int    `json:"deposit_amount"`
	PaymentStatus string `json:"payment_status"`
	Note          string `json:"note"`
	CreatedAt     string `json:"created_at"`
}

type notification struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

type image struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Caption   string `json:"caption"`
	IsPrimary bool   `json:"isPrimary"`
}

// dataset is the mutable dashboard state of the fake backend
type dataset struct {
	restaurant    restaurant
	tables        []table
	bookings      []booking
	notifications []notification
	images        []image
}

const bookingTimeLayout = "2006-01-02T15:04:05"

func seedData(now time.Time) dataset {
	at := func(days, hour, minute int) string {
		d := now.AddDate(0, 0, days)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, now.Location()).Format(bookingTimeLayout)
	}
	created := now.Add(-48 * time.Hour).UTC().Format(time.RFC3339)

	return dataset{
		restaurant: restaurant{
			ID:                   1,
			Name:                 "Saigon Garden",
			Address:              "12 Le Loi, District 1",
			Phone:                "028 3822 0000",
			Description:          "Southern Vietnamese home cooking",
			Tags:                 []string{"vietnamese", "family"},
			OpenTime:             "10:00",
			CloseTime:            "22:00",
			RequireDeposit:       true,
			DefaultDepositAmount: 100000,
		},
		tables: []table{
			{ID: 1, Name: "T1", Capacity: 2, Area: "window", Status: "AVAILABLE"},
			{ID: 2, Name: "T2", Capacity: 4, Area: "main", Status: "AVAILABLE"},
			{ID: 3, Name: "T3", Capacity: 6, Area: "main", Status: "AVAILABLE"},
			{ID: 4, Name: "VIP", Capacity: 8, Area: "private", Status: "AVAILABLE"},
		},
		bookings: []booking{
			{ID: 1, Code: "BK-1001", CustomerName: "Nguyen Van An", Phone: "0901000001", PeopleCount: 4, BookingTime: at(0, 23, 30), Status: "PENDING", DepositAmount: 100000, PaymentStatus: "PAID", CreatedAt: created},
			{ID: 2, Code: "BK-1002", CustomerName: "Tran Thi Binh", Phone: "0901000002", PeopleCount: 2, BookingTime: at(0, 0, 30), Status: "COMPLETED", TableID: 1, PaymentStatus: "PAID", CreatedAt: created},
			{ID: 3, Code: "BK-1003", CustomerName: "Le Van Cuong", Phone: "0901000003", PeopleCount: 6, BookingTime: at(1, 19, 0), Status: "CONFIRMED", TableID: 3, DepositAmount: 200000, PaymentStatus: "PAID", Note: "Birthday", CreatedAt: created},
			{ID: 4, Code: "BK-1004", CustomerName: "Pham Thi Dung", Phone: "0901000004", PeopleCount: 3, BookingTime: at(2, 12, 0), Status: "PENDING", PaymentStatus: "UNPAID", CreatedAt: created},
			{ID: 5, Code: "BK-1005", CustomerName: "Hoang Van Em", Phone: "0901000005", PeopleCount: 5, BookingTime: at(0, 0, 15), Status: "CANCELLED", PaymentStatus: "REFUNDED", CreatedAt: created},
		},
		notifications: []notification{
			{ID: 1, Type: "BOOKING_CREATED", Title: "New booking", Message: "BK-1001 is waiting for confirmation", CreatedAt: created},
			{ID: 2, Type: "BOOKING_CANCELLED", Title: "Booking cancelled", Message: "BK-1005 was cancelled by the guest", CreatedAt: created},
			{ID: 3, Type: "REVIEW", Title: "New review", Message: "A guest left a 5 star review", IsRead: true, CreatedAt: created},
		},
		images: []image{
			{ID: 1, Type: "COVER", URL: "/uploads/cover.jpg", Caption: "Dining room", IsPrimary: true},
			{ID: 2, Type: "GALLERY", URL: "/uploads/signature.jpg", Caption: "Signature dish"},
			{ID: 3, Type: "MENU", URL: "/uploads/menu.jpg", Caption: "Main menu"},
		},
	}
}
