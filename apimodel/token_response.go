package apimodel

import (
	"encoding/json"
	"sort"
)

// RenewalRequest is the body sent to the refresh endpoint.
type RenewalRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is the token part of login and refresh responses. The backend has
// returned both camelCase and snake_case names, so both are accepted.
type TokenPair struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`

	AccessTokenSnake  string `json:"access_token,omitempty"`
	RefreshTokenSnake string `json:"refresh_token,omitempty"`
}

// Access returns whichever access token field was populated
func (p *TokenPair) Access() string {
	if p == nil {
		return ""
	}
	if p.AccessToken != "" {
		return p.AccessToken
	}
	return p.AccessTokenSnake
}

// Refresh returns whichever refresh token field was populated
func (p *TokenPair) Refresh() string {
	if p == nil {
		return ""
	}
	if p.RefreshToken != "" {
		return p.RefreshToken
	}
	return p.RefreshTokenSnake
}

// RenewalShape identifies which of the tolerated refresh response layouts matched.
type RenewalShape int

const (
	ShapeUnknown    RenewalShape = iota
	ShapeDataTokens              // { data: { tokens: { accessToken, refreshToken } } }
	ShapeData                    // { data: { accessToken, refreshToken } }
	ShapeRoot                    // { accessToken, refreshToken }
)

func (s RenewalShape) String() string {
	switch s {
	case ShapeDataTokens:
		return "data.tokens"
	case ShapeData:
		return "data"
	case ShapeRoot:
		return "root"
	default:
		return "unknown"
	}
}

type renewalData struct {
	Tokens *TokenPair `json:"tokens"`
	TokenPair
}

type renewalEnvelope struct {
	Data *renewalData `json:"data"`
	TokenPair
}

// ParseRenewalResponse extracts the token pair from a refresh response, trying the
// tolerated shapes in priority order. ShapeUnknown with a nil error means the body
// was JSON but carried no access token in any known place.
func ParseRenewalResponse(body []byte) (TokenPair, RenewalShape, error) {
	var env renewalEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return TokenPair{}, ShapeUnknown, err
	}
	if env.Data != nil {
		if env.Data.Tokens.Access() != "" {
			return *env.Data.Tokens, ShapeDataTokens, nil
		}
		if env.Data.Access() != "" {
			return env.Data.TokenPair, ShapeData, nil
		}
	}
	if env.Access() != "" {
		return env.TokenPair, ShapeRoot, nil
	}
	return TokenPair{}, ShapeUnknown, nil
}

// TopLevelKeys lists the keys of a JSON object body, for reporting unrecognised shapes.
func TopLevelKeys(body []byte) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by login and owner registration. Older backends
// return the access token as "token".
type LoginResponse struct {
	Token string          `json:"token,omitempty"`
	User  json.RawMessage `json:"user,omitempty"`
	TokenPair

	Data *LoginResponse `json:"data,omitempty"`
}

// Tokens returns access token, refresh token and user, looking inside "data" when
// the top level carries no access token.
func (r *LoginResponse) Tokens() (access, refresh string, user json.RawMessage) {
	if r == nil {
		return "", "", nil
	}
	access = r.Access()
	if access == "" {
		access = r.Token
	}
	if access == "" && r.Data != nil {
		return r.Data.Tokens()
	}
	return access, r.Refresh(), r.User
}
