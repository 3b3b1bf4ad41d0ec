package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-dashboard-client/apimodel"
	"github.com/jrsteele09/go-dashboard-client/credentials"
	"github.com/rs/zerolog"
)

// renewer exchanges the stored refresh token for a new access token.
type renewer struct {
	client         *http.Client
	url            string
	store          *credentials.Store
	maxBytes       int64
	onSessionEnded func()
	epoch          *epoch
	metrics        *Metrics
	logger         zerolog.Logger
}

func (r *renewer) renew(ctx context.Context) (string, error) {
	token, err := r.refresh(ctx)
	r.metrics.renewal(err)
	return token, err
}

func (r *renewer) refresh(ctx context.Context) (string, error) {
	started := r.epoch.current()
	refreshToken, ok, err := r.store.RefreshToken(ctx)
	if err != nil {
		return "", &RenewalError{Err: storageError(err)}
	}
	if !ok {
		return "", r.terminate(ctx, &RenewalError{Terminal: true, Err: ErrNoRefreshToken})
	}

	payload, err := json.Marshal(apimodel.RenewalRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", &RenewalError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return "", &RenewalError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	r.logger.Debug().Str("url", r.url).Msg("refreshing access token")
	resp, err := r.client.Do(req)
	if err != nil {
		e := transportError(ctx, err)
		e.Method, e.Path = http.MethodPost, r.url
		r.logger.Warn().Err(err).Msg("token refresh unreachable, keeping session")
		return "", &RenewalError{Err: e}
	}
	defer resp.Body.Close()

	data, truncated, err := readLimited(resp.Body, r.maxBytes)
	if err != nil {
		e := transportError(ctx, err)
		e.Method, e.Path = http.MethodPost, r.url
		return "", &RenewalError{Err: e}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg := "refresh token is invalid or expired"
		if b, ok := apimodel.ParseErrorBody(data); ok && b.Text() != "" {
			msg = b.Text()
		}
		return "", r.terminate(ctx, &RenewalError{
			Terminal: true,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("%w: %s", ErrRefreshRejected, msg),
		})
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		e := httpError(resp.StatusCode, data, truncated)
		e.Method, e.Path = http.MethodPost, r.url
		r.logger.Warn().Int("status", resp.StatusCode).Str("error", e.Message).Msg("token refresh failed, keeping session")
		return "", &RenewalError{Status: resp.StatusCode, Err: e}
	}

	pair, shape, err := apimodel.ParseRenewalResponse(data)
	if err != nil || truncated {
		return "", &RenewalError{Status: resp.StatusCode, Err: &Error{
			Kind: KindDecode, Method: http.MethodPost, Path: r.url, Status: resp.StatusCode,
			Message: "refresh response is not valid JSON", Err: err,
		}}
	}
	if shape == apimodel.ShapeUnknown {
		r.logger.Warn().Strs("keys", apimodel.TopLevelKeys(data)).Msg("unrecognised token refresh response shape")
		return "", &RenewalError{Status: resp.StatusCode, Err: ErrRefreshMalformed}
	}
	if shape != apimodel.ShapeDataTokens {
		r.logger.Debug().Stringer("shape", shape).Msg("token refresh response used fallback shape")
	}

	saved, err := r.epoch.commit(started, func() error {
		return r.store.Save(ctx, pair.Access(), pair.Refresh())
	})
	if err != nil {
		return "", &RenewalError{Err: storageError(err)}
	}
	if !saved {
		r.logger.Info().Msg("session ended during token refresh, discarding new tokens")
		return "", &RenewalError{Terminal: true, Status: resp.StatusCode, Err: ErrSessionEnded}
	}
	r.logger.Info().Bool("rotated_refresh_token", pair.Refresh() != "").Msg("access token refreshed")
	return pair.Access(), nil
}

// terminate clears the stored session and hands control back to the login entry point.
func (r *renewer) terminate(ctx context.Context, rerr *RenewalError) error {
	r.logger.Warn().Err(rerr.Err).Int("status", rerr.Status).Msg("session ended by token refresh failure")
	if err := r.epoch.end(func() error { return r.store.Clear(ctx) }); err != nil {
		r.logger.Err(err).Msg("failed to clear credentials")
	}
	if r.onSessionEnded != nil {
		r.onSessionEnded()
	}
	return rerr
}
