package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/torfstack/sideload/internal/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

var (
	ErrNotLoggedIn = errors.New("no drive token stored, run 'sideload login' first")
)

// TokenStore keeps the serialized OAuth token between runs.
type TokenStore interface {
	GetAuthToken(ctx context.Context) (string, error)
	UpdateAuthToken(ctx context.Context, token string) error
}

// DriveService builds a drive client from the OAuth client credentials file and
// the token in store. With interactive set, a missing token starts the browser
// login flow; otherwise ErrNotLoggedIn is returned.
func DriveService(ctx context.Context, credentialsFile string, store TokenStore, interactive bool) (*drive.Service, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("could not read google credentials: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("could not parse google config: %w", err)
	}

	ts, err := tokenSource(ctx, config, store, interactive)
	if err != nil {
		return nil, fmt.Errorf("could not get client for drive service: %w", err)
	}

	drv, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("could not create drive service: %w", err)
	}
	return drv, nil
}

func tokenSource(ctx context.Context, config *oauth2.Config, store TokenStore, interactive bool) (oauth2.TokenSource, error) {
	tokenString, err := store.GetAuthToken(ctx)
	switch {
	case err != nil:
		return nil, fmt.Errorf("could not read stored token: %w", err)
	case tokenString == "" && !interactive:
		return nil, ErrNotLoggedIn
	case tokenString == "":
		tok, err := getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("could not get token from web: %w", err)
		}
		tokenString, err = serializeToken(tok)
		if err != nil {
			return nil, err
		}
		err = store.UpdateAuthToken(ctx, tokenString)
		if err != nil {
			return nil, fmt.Errorf("could not save token: %w", err)
		}
	}

	tok, err := parseToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("could not parse token: %w", err)
	}
	return &persistingTokenSource{
		base:  config.TokenSource(context.WithoutCancel(ctx), tok),
		store: store,
		last:  tok.AccessToken,
	}, nil
}

// persistingTokenSource writes refreshed tokens back to the store.
type persistingTokenSource struct {
	base  oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	p.last = tok.AccessToken

	s, err := serializeToken(tok)
	if err != nil {
		logging.Error("Could not serialize refreshed token", err)
		return tok, nil
	}
	if err = p.store.UpdateAuthToken(context.Background(), s); err != nil {
		logging.Error("Could not persist refreshed token", err)
	}
	return tok, nil
}

func parseToken(tokenString string) (*oauth2.Token, error) {
	var tok oauth2.Token
	err := json.NewDecoder(strings.NewReader(tokenString)).Decode(&tok)
	if err != nil {
		return nil, fmt.Errorf("could not decode token: %w", err)
	}
	return &tok, nil
}

func serializeToken(token *oauth2.Token) (string, error) {
	t, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("could not serialize token: %w", err)
	}
	return string(t), nil
}
