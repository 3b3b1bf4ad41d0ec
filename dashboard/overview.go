package dashboard

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const upcomingLimit = 5

type KPIs struct {
	BookingsToday   int `json:"bookingsToday"`
	GuestsToday     int `json:"guestsToday"`
	PendingBookings int `json:"pendingBookings"`
	TableOccupancy  int `json:"tableOccupancy"` // percent, capped at 100
}

type UpcomingBooking struct {
	ID            int    `json:"id"`
	Time          string `json:"time"`
	Date          string `json:"date"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	Guests        int    `json:"guests"`
	Table         string `json:"table,omitempty"`
	Status        string `json:"status"`
}

// Overview is the dashboard landing summary. Failed lists the sources that
// could not be fetched and were treated as empty.
type Overview struct {
	KPIs             KPIs              `json:"kpis"`
	UpcomingBookings []UpcomingBooking `json:"upcomingBookings"`
	Restaurant       json.RawMessage   `json:"restaurant"`
	Failed           []string          `json:"failed,omitempty"`
}

type OverviewService struct {
	bookings   *BookingsService
	restaurant *RestaurantService
	tables     *TablesService
	logger     zerolog.Logger

	now func() time.Time
}

func NewOverviewService(bookings *BookingsService, restaurant *RestaurantService, tables *TablesService, logger zerolog.Logger) *OverviewService {
	return &OverviewService{
		bookings:   bookings,
		restaurant: restaurant,
		tables:     tables,
		logger:     logger.With().Str("component", "overview").Logger(),
		now:        time.Now,
	}
}

// Get fetches bookings, restaurant and tables concurrently and computes the
// summary. A source that fails is logged and counted as empty. Cancelling ctx
// stops the remaining fetches and fails the whole overview.
func (o *OverviewService) Get(ctx context.Context) (*Overview, error) {
	var (
		bookings   []Booking
		tables     []Table
		restaurant json.RawMessage
		failed     [3]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(i int, source string, fn func(context.Context) error) {
		g.Go(func() error {
			err := fn(gctx)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warn().Err(err).Str("source", source).Msg("overview source unavailable")
			failed[i] = true
			return nil
		})
	}
	fetch(0, "bookings", func(ctx context.Context) (err error) {
		bookings, err = o.bookings.List(ctx, nil)
		return err
	})
	fetch(1, "restaurant", func(ctx context.Context) error {
		raw, err := o.restaurant.info(ctx)
		if err == nil {
			restaurant = unwrapData(raw)
		}
		return err
	})
	fetch(2, "tables", func(ctx context.Context) (err error) {
		tables, err = o.tables.List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ov := summarize(bookings, tables, o.now())
	ov.Restaurant = restaurant
	if len(ov.Restaurant) == 0 {
		ov.Restaurant = json.RawMessage("{}")
	}
	for i, name := range []string{"bookings", "restaurant", "tables"} {
		if failed[i] {
			ov.Failed = append(ov.Failed, name)
		}
	}
	return ov, nil
}

func summarize(bookings []Booking, tables []Table, now time.Time) *Overview {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)

	ov := &Overview{UpcomingBookings: []UpcomingBooking{}}

	tableNames := make(map[int]string, len(tables))
	capacity := 0
	for _, t := range tables {
		tableNames[int(t.ID)] = t.Name
		capacity += int(t.Capacity)
	}

	type upcoming struct {
		at time.Time
		b  Booking
	}
	var next []upcoming
	for _, b := range bookings {
		at, ok := b.Time(loc)
		if b.Status == StatusPending || b.Status == "pending" {
			ov.KPIs.PendingBookings++
		}
		if !ok {
			continue
		}
		if !at.Before(today) && at.Before(tomorrow) {
			ov.KPIs.BookingsToday++
			if b.Status != StatusCancelled && b.Status != StatusRejected {
				ov.KPIs.GuestsToday += b.GuestTotal()
			}
		}
		if !at.Before(now) && (b.Status == StatusPending || b.Status == StatusConfirmed) {
			next = append(next, upcoming{at: at, b: b})
		}
	}

	if capacity > 0 {
		pct := int(math.Round(float64(ov.KPIs.GuestsToday) / float64(capacity) * 100))
		ov.KPIs.TableOccupancy = min(pct, 100)
	}

	sort.SliceStable(next, func(i, j int) bool { return next[i].at.Before(next[j].at) })
	if len(next) > upcomingLimit {
		next = next[:upcomingLimit]
	}
	for _, u := range next {
		b := u.b
		name := b.CustomerName
		if name == "" && b.User != nil {
			name = b.User.DisplayName
		}
		table := b.TableName
		if b.Table != nil && b.Table.Name != "" {
			table = b.Table.Name
		}
		if table == "" && b.TableID != 0 {
			table = tableNames[int(b.TableID)]
		}
		ov.UpcomingBookings = append(ov.UpcomingBookings, UpcomingBooking{
			ID:            int(b.ID),
			Time:          u.at.Format("15:04"),
			Date:          u.at.Format("02/01/2006"),
			CustomerName:  firstNonEmpty(name, "Walk-in guest"),
			CustomerPhone: firstNonEmpty(b.Phone, b.CustomerPhone),
			Guests:        int(firstNonZero(b.PeopleCount, b.GuestCount)),
			Table:         table,
			Status:        b.Status,
		})
	}
	return ov
}

func firstNonZero(values ...FlexInt) FlexInt {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
