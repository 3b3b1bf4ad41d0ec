package mockapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Phone          string `json:"phone"`
	RestaurantName string `json:"restaurantName"`
	RestaurantID   int    `json:"restaurantId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	a, ok := s.users.authenticate(req.Email, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if a.Status != accountActive {
		writeError(w, http.StatusForbidden, "Account is not active yet")
		return
	}
	s.logins.Add(1)
	s.writeTokens(w, http.StatusOK, a)
}

func (s *Server) registerOwnerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if details := validateRegistration(req, true); len(details) > 0 {
		writeValidation(w, details...)
		return
	}
	a := &account{Name: req.Name, Email: req.Email, Role: RoleOwner, Status: accountActive, RestaurantID: 1, RestaurantName: req.RestaurantName}
	if err := s.users.add(a, req.Password); err != nil {
		s.registrationFailed(w, err)
		return
	}
	s.writeTokens(w, http.StatusCreated, a)
}

func (s *Server) registerStaffHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if details := validateRegistration(req, false); len(details) > 0 {
		writeValidation(w, details...)
		return
	}
	a := &account{Name: req.Name, Email: req.Email, Role: RoleStaff, Status: accountPending, RestaurantID: req.RestaurantID}
	if err := s.users.add(a, req.Password); err != nil {
		s.registrationFailed(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":          true,
		"message":          "Request sent, waiting for manager approval",
		"requiresApproval": true,
	})
}

func (s *Server) registrationFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, errEmailTaken) {
		writeValidation(w, errorDetail{Field: "email", Message: "Email is already registered"})
		return
	}
	s.opts.logger.Err(err).Msg("registration failed")
	writeError(w, http.StatusInternalServerError, "Registration failed")
}

func validateRegistration(req registerRequest, owner bool) []errorDetail {
	var details []errorDetail
	if strings.TrimSpace(req.Name) == "" {
		details = append(details, errorDetail{Field: "name", Message: "Name is required"})
	}
	if !strings.Contains(req.Email, "@") {
		details = append(details, errorDetail{Field: "email", Message: "Email is invalid"})
	}
	if len(req.Password) < 8 {
		details = append(details, errorDetail{Field: "password", Message: "Password must be at least 8 characters"})
	}
	if owner && strings.TrimSpace(req.RestaurantName) == "" {
		details = append(details, errorDetail{Field: "restaurantName", Message: "Restaurant name is required"})
	}
	return details
}

// writeTokens answers login and owner registration. token mirrors accessToken
// for older clients.
func (s *Server) writeTokens(w http.ResponseWriter, status int, a *account) {
	access, refresh, err := s.issue(a)
	if err != nil {
		s.opts.logger.Err(err).Msg("failed to issue tokens")
		writeError(w, http.StatusInternalServerError, "Could not issue tokens")
		return
	}
	writeJSON(w, status, map[string]any{
		"success":      true,
		"accessToken":  access,
		"refreshToken": refresh,
		"token":        access,
		"user":         a.profile(),
	})
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	s.refreshes.Add(1)
	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	var req refreshRequest
	if err := decodeBody(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}
	userID, next, err := s.refresh.rotate(req.RefreshToken)
	if err != nil {
		if errors.Is(err, errRefreshTokenInvalid) {
			writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		s.opts.logger.Err(err).Msg("refresh token rotation failed")
		writeError(w, http.StatusInternalServerError, "Could not refresh token")
		return
	}
	a, ok := s.users.get(userID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unknown user")
		return
	}
	access, err := s.signer.sign(a.ID, a.Role, s.generation.Load(), s.opts.accessTTL)
	if err != nil {
		s.opts.logger.Err(err).Msg("failed to sign access token")
		writeError(w, http.StatusInternalServerError, "Could not refresh token")
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"tokens": map[string]string{"accessToken": access, "refreshToken": next},
	})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, currentAccount(r).profile())
}
