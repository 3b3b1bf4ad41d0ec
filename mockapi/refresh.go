package mockapi

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const refreshTokenBytes = 32

var errRefreshTokenInvalid = errors.New("invalid or expired refresh token")

type storedRefreshToken struct {
	token  string
	userID int
	iat    time.Time
}

// refreshTokens issues opaque refresh tokens, one live token per user, and
// rotates them on every use.
type refreshTokens struct {
	ttl     time.Duration
	now     func() time.Time
	lock    sync.Mutex
	tokens  map[string]*storedRefreshToken
	userIDs map[int]string
}

func newRefreshTokens(ttl time.Duration) *refreshTokens {
	return &refreshTokens{
		ttl:     ttl,
		now:     time.Now,
		tokens:  make(map[string]*storedRefreshToken),
		userIDs: make(map[int]string),
	}
}

// create replaces any refresh token the user already holds
func (rt *refreshTokens) create(userID int) (string, error) {
	rt.lock.Lock()
	defer rt.lock.Unlock()
	return rt.createLocked(userID)
}

func (rt *refreshTokens) createLocked(userID int) (string, error) {
	if existing, ok := rt.userIDs[userID]; ok {
		delete(rt.tokens, existing)
	}

	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token := hex.EncodeToString(b)
	rt.tokens[token] = &storedRefreshToken{token: token, userID: userID, iat: rt.now()}
	rt.userIDs[userID] = token
	return token, nil
}

// rotate consumes token and returns the owning user with a replacement token
func (rt *refreshTokens) rotate(token string) (int, string, error) {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	stored, ok := rt.tokens[token]
	if !ok {
		return 0, "", errRefreshTokenInvalid
	}
	delete(rt.tokens, token)
	delete(rt.userIDs, stored.userID)
	if rt.ttl > 0 && rt.now().Sub(stored.iat) > rt.ttl {
		return 0, "", errRefreshTokenInvalid
	}

	next, err := rt.createLocked(stored.userID)
	if err != nil {
		return 0, "", err
	}
	return stored.userID, next, nil
}

func (rt *refreshTokens) revokeAll() {
	rt.lock.Lock()
	defer rt.lock.Unlock()
	rt.tokens = make(map[string]*storedRefreshToken)
	rt.userIDs = make(map[int]string)
}
