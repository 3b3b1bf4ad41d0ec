package mockapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-dashboard-client/internal/utils"
)

// booking actions and the status each one moves to
var bookingTransitions = map[string]struct {
	to   string
	from []string
}{
	"confirm":  {to: "CONFIRMED", from: []string{"PENDING"}},
	"cancel":   {to: "CANCELLED", from: []string{"PENDING", "CONFIRMED"}},
	"complete": {to: "COMPLETED", from: []string{"CONFIRMED", "PENDING"}},
	"no-show":  {to: "NO_SHOW", from: []string{"CONFIRMED", "PENDING"}},
}

func (s *Server) listBookingsHandler(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(r.URL.Query().Get("status"))
	date := r.URL.Query().Get("date")

	s.mu.RLock()
	items := make([]booking, 0, len(s.data.bookings))
	for _, b := range s.data.bookings {
		if status != "" && b.Status != status {
			continue
		}
		if date != "" && !strings.HasPrefix(b.BookingTime, date) {
			continue
		}
		items = append(items, b)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].BookingTime < items[j].BookingTime })
	writeData(w, http.StatusOK, items)
}

func (s *Server) getBookingHandler(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.data.bookings {
		if b.ID == id {
			writeData(w, http.StatusOK, b)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Booking not found")
}

func (s *Server) bookingActionHandler(w http.ResponseWriter, r *http.Request) {
	id, action := pathID(r), mux.Vars(r)["action"]

	var tableID int
	if action == "assign-table" {
		var body struct {
			TableID int `json:"tableId"`
		}
		if err := decodeBody(r, &body); err != nil || body.TableID == 0 {
			writeValidation(w, errorDetail{Field: "tableId", Message: "tableId is required"})
			return
		}
		tableID = body.TableID
	} else if _, ok := bookingTransitions[action]; !ok {
		writeError(w, http.StatusNotFound, "Route not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.data.bookings {
		if s.data.bookings[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}
	b := &s.data.bookings[idx]

	if tableID != 0 {
		if !s.hasTableLocked(tableID) {
			writeError(w, http.StatusNotFound, "Table not found")
			return
		}
		b.TableID = tableID
		writeData(w, http.StatusOK, *b)
		return
	}

	t := bookingTransitions[action]
	allowed := false
	for _, from := range t.from {
		if b.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		writeError(w, http.StatusConflict, fmt.Sprintf("Cannot %s a %s booking", action, strings.ToLower(b.Status)))
		return
	}
	b.Status = t.to
	s.data.notifications = append(s.data.notifications, notification{
		ID:        s.nextNotificationIDLocked(),
		Type:      "BOOKING_" + t.to,
		Title:     "Booking updated",
		Message:   fmt.Sprintf("%s is now %s", b.Code, strings.ToLower(t.to)),
		CreatedAt: s.opts.now().UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
	writeData(w, http.StatusOK, *b)
}

func (s *Server) getRestaurantHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeData(w, http.StatusOK, s.data.restaurant)
}

func (s *Server) updateRestaurantHandler(w http.ResponseWriter, r *http.Request) {
	var patch struct {
		Name                 *string   `json:"name"`
		Address              *string   `json:"address"`
		Phone                *string   `json:"phone"`
		Description          *string   `json:"description"`
		Tags                 *[]string `json:"tags"`
		OpenTime             *string   `json:"open_time"`
		CloseTime            *string   `json:"close_time"`
		RequireDeposit       *bool     `json:"require_deposit"`
		DefaultDepositAmount *int      `json:"default_deposit_amount"`
		Hours                any       `json:"hours"`
	}
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		writeValidation(w, errorDetail{Field: "name", Message: "Name cannot be empty"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rest := &s.data.restaurant
	utils.Assign(&rest.Name, patch.Name)
	utils.Assign(&rest.Address, patch.Address)
	utils.Assign(&rest.Phone, patch.Phone)
	utils.Assign(&rest.Description, patch.Description)
	utils.Assign(&rest.OpenTime, patch.OpenTime)
	utils.Assign(&rest.CloseTime, patch.CloseTime)
	utils.Assign(&rest.Tags, patch.Tags)
	utils.Assign(&rest.RequireDeposit, patch.RequireDeposit)
	utils.Assign(&rest.DefaultDepositAmount, patch.DefaultDepositAmount)
	if patch.Hours != nil {
		rest.Hours = patch.Hours
	}
	writeData(w, http.StatusOK, *rest)
}

func (s *Server) listTablesHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeData(w, http.StatusOK, map[string]any{"items": s.data.tables})
}

type tableInput struct {
	Name     *string `json:"name"`
	Capacity *int    `json:"capacity"`
	Area     *string `json:"area"`
	Status   *string `json:"status"`
}

func (s *Server) createTableHandler(w http.ResponseWriter, r *http.Request) {
	var in tableInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var details []errorDetail
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		details = append(details, errorDetail{Field: "name", Message: "Name is required"})
	}
	if in.Capacity == nil || *in.Capacity < 1 {
		details = append(details, errorDetail{Field: "capacity", Message: "Capacity must be at least 1"})
	}
	if len(details) > 0 {
		writeValidation(w, details...)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := table{Name: *in.Name, Capacity: *in.Capacity, Area: utils.Value(in.Area), Status: "AVAILABLE"}
	for _, existing := range s.data.tables {
		t.ID = max(t.ID, existing.ID)
	}
	t.ID++
	s.data.tables = append(s.data.tables, t)
	writeData(w, http.StatusCreated, t)
}

func (s *Server) updateTableHandler(w http.ResponseWriter, r *http.Request) {
	var in tableInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := pathID(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.tables {
		t := &s.data.tables[i]
		if t.ID != id {
			continue
		}
		utils.Assign(&t.Name, in.Name)
		utils.Assign(&t.Capacity, in.Capacity)
		utils.Assign(&t.Area, in.Area)
		utils.Assign(&t.Status, in.Status)
		writeData(w, http.StatusOK, *t)
		return
	}
	writeError(w, http.StatusNotFound, "Table not found")
}

func (s *Server) deleteTableHandler(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.data.tables {
		if t.ID == id {
			s.data.tables = append(s.data.tables[:i], s.data.tables[i+1:]...)
			writeMessage(w, "Table deleted")
			return
		}
	}
	writeError(w, http.StatusNotFound, "Table not found")
}

func (s *Server) hasTableLocked(id int) bool {
	for _, t := range s.data.tables {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := queryInt(r, "page", 1), queryInt(r, "limit", 20)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	s.mu.RLock()
	all := make([]notification, 0, len(s.data.notifications))
	for i := len(s.data.notifications) - 1; i >= 0; i-- {
		n := s.data.notifications[i]
		if unreadOnly && n.IsRead {
			continue
		}
		all = append(all, n)
	}
	s.mu.RUnlock()

	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	writeData(w, http.StatusOK, map[string]any{
		"items": all[start:end],
		"pagination": map[string]int{
			"page":       page,
			"limit":      limit,
			"total":      len(all),
			"totalPages": (len(all) + limit - 1) / limit,
		},
	})
}

func (s *Server) unreadCountHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.data.notifications {
		if !n.IsRead {
			count++
		}
	}
	writeData(w, http.StatusOK, map[string]int{"unreadCount": count})
}

func (s *Server) markReadHandler(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.notifications {
		if s.data.notifications[i].ID == id {
			s.data.notifications[i].IsRead = true
			writeData(w, http.StatusOK, s.data.notifications[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Notification not found")
}

func (s *Server) markAllReadHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.notifications {
		s.data.notifications[i].IsRead = true
	}
	writeMessage(w, "All notifications marked as read")
}

func (s *Server) deleteNotificationHandler(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.data.notifications {
		if n.ID == id {
			s.data.notifications = append(s.data.notifications[:i], s.data.notifications[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Notification not found")
}

func (s *Server) nextNotificationIDLocked() int {
	id := 0
	for _, n := range s.data.notifications {
		id = max(id, n.ID)
	}
	return id + 1
}

func (s *Server) listImagesHandler(w http.ResponseWriter, r *http.Request) {
	imageType := strings.ToUpper(r.URL.Query().Get("type"))
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]image, 0, len(s.data.images))
	for _, img := range s.data.images {
		if imageType == "" || img.Type == imageType {
			items = append(items, img)
		}
	}
	writeData(w, http.StatusOK, items)
}

// uploadImageHandler answers oversized uploads the way a fronting proxy does,
// with a 413 and an HTML page.
func (s *Server) uploadImageHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.maxUploadBytes
	if r.ContentLength > limit+(64<<10) {
		tooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+(64<<10))
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge(w)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, errorDetail{Field: "file", Message: "file is required"})
		return
	}
	defer file.Close()
	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read upload")
		return
	}
	if size > limit {
		tooLarge(w)
		return
	}

	imageType := strings.ToUpper(r.FormValue("type"))
	if imageType == "" {
		imageType = "GALLERY"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	img := image{Type: imageType, URL: "/uploads/" + header.Filename, Caption: r.FormValue("caption")}
	for _, existing := range s.data.images {
		img.ID = max(img.ID, existing.ID)
	}
	img.ID++
	s.data.images = append(s.data.images, img)
	writeData(w, http.StatusCreated, img)
}

func tooLarge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	_, _ = io.WriteString(w, "<html><head><title>413 Request Entity Too Large</title></head><body><h1>413 Request Entity Too Large</h1></body></html>")
}

func (s *Server) deleteImageHandler(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, img := range s.data.images {
		if img.ID == id {
			s.data.images = append(s.data.images[:i], s.data.images[i+1:]...)
			writeMessage(w, "Image deleted")
			return
		}
	}
	writeError(w, http.StatusNotFound, "Image not found")
}

func (s *Server) setPrimaryImageHandler(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, img := range s.data.images {
		found = found || img.ID == id
	}
	if !found {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	for i := range s.data.images {
		s.data.images[i].IsPrimary = s.data.images[i].ID == id
	}
	writeMessage(w, "Cover image updated")
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
