package mockapi

import (
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Account roles and statuses
const (
	RoleOwner = "OWNER"
	RoleStaff = "STAFF"

	accountActive  = "ACTIVE"
	accountPending = "PENDING"
)

type account struct {
	ID             int
	Name           string
	Email          string
	PasswordHash   string
	Role           string
	Status         string
	Avatar         string
	RestaurantID   int
	RestaurantName string
}

// profile is the user object returned by login and /auth/me
func (a *account) profile() map[string]any {
	return map[string]any{
		"id":             a.ID,
		"name":           a.Name,
		"email":          a.Email,
		"role":           a.Role,
		"avatar":         a.Avatar,
		"restaurantId":   a.RestaurantID,
		"restaurantName": a.RestaurantName,
	}
}

type accounts struct {
	cost   int
	lock   sync.RWMutex
	byID   map[int]*account
	emails map[string]int
	nextID int
}

func newAccounts(cost int) *accounts {
	return &accounts{
		cost:   cost,
		byID:   make(map[int]*account),
		emails: make(map[string]int),
		nextID: 1,
	}
}

func (as *accounts) add(a *account, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), as.cost)
	if err != nil {
		return err
	}

	as.lock.Lock()
	defer as.lock.Unlock()
	email := strings.ToLower(a.Email)
	if _, exists := as.emails[email]; exists {
		return errEmailTaken
	}
	a.ID = as.nextID
	as.nextID++
	a.PasswordHash = string(hash)
	as.byID[a.ID] = a
	as.emails[email] = a.ID
	return nil
}

func (as *accounts) get(id int) (*account, bool) {
	as.lock.RLock()
	defer as.lock.RUnlock()
	a, ok := as.byID[id]
	return a, ok
}

// authenticate returns the account when email and password match
func (as *accounts) authenticate(email, password string) (*account, bool) {
	as.lock.RLock()
	id, ok := as.emails[strings.ToLower(email)]
	a := as.byID[id]
	as.lock.RUnlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, false
	}
	return a, true
}
