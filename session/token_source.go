package session

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx context.Context
	s   *Session
}

// TokenSource exposes the session as an oauth2.TokenSource, e.g. for
// oauth2.NewClient. The stored token is returned while its JWT expiry has not
// passed; otherwise it is refreshed through the same single-flight path as Request.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, s: s}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	c, ok, err := ts.s.store.Get(ts.ctx)
	if err != nil {
		return nil, storageError(err)
	}
	if !ok {
		return nil, ErrNotAuthenticated
	}
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
	if tok.Valid() {
		return tok, nil
	}

	if _, err := ts.s.coordinator.Renew(ts.ctx); err != nil {
		return nil, err
	}
	c, ok, err = ts.s.store.Get(ts.ctx)
	if err != nil {
		return nil, storageError(err)
	}
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}, nil
}
