// Package auth obtains and refreshes the Google OAuth credential used for
// the Sheets API. Tokens are kept in a Store; a full sign-in opens the
// browser and waits for the redirect on a loopback listener.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/qcdesk/qc/internal/debug"
)

const (
	// Scope grants read/write access to spreadsheets.
	Scope = "https://www.googleapis.com/auth/spreadsheets"
	// RedirectURL is where Google sends the authorization code.
	RedirectURL = "http://localhost:3000/oauth2callback"
	// TokenKey is the Store key of the persisted token.
	TokenKey = "google-oauth-token"
	// CallbackTimeout bounds the wait for the browser redirect.
	CallbackTimeout = 30 * time.Second
)

var (
	ErrConfigMissing = errors.New("credentials.json not found")
	ErrConfigInvalid = errors.New("credentials.json is invalid")
	ErrAuthTimeout   = errors.New("timed out waiting for Google sign-in")
	ErrAuthFailed    = errors.New("google sign-in failed")
)

// BrowserOpener shows a URL to the user.
type BrowserOpener interface {
	Open(url string) error
}

// BrowserFunc adapts a function to BrowserOpener.
type BrowserFunc func(url string) error

func (f BrowserFunc) Open(url string) error { return f(url) }

// SystemBrowser opens URLs in the platform's default browser.
type SystemBrowser struct{}

func (SystemBrowser) Open(url string) error { return browser.OpenURL(url) }

// Provider implements the credential lifecycle: stored token, single
// refresh attempt, then browser sign-in.
type Provider struct {
	paths      []string
	store      Store
	browser    BrowserOpener
	httpClient *http.Client

	// overridden by tests
	redirectURL     string
	callbackTimeout time.Duration
	now             func() time.Time

	// obtaining shares one token lookup or sign-in between concurrent
	// Authenticate calls; only one of them may own the callback port.
	obtaining singleflight.Group

	mu     sync.Mutex
	config *oauth2.Config
	token  *oauth2.Token
}

// Option configures a Provider.
type Option func(*Provider)

// WithBrowser replaces the default SystemBrowser.
func WithBrowser(b BrowserOpener) Option {
	return func(p *Provider) { p.browser = b }
}

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) { p.httpClient = hc }
}

// NewProvider creates a Provider reading credentials.json from the first
// existing path of credentialPaths.
func NewProvider(store Store, credentialPaths []string, opts ...Option) *Provider {
	p := &Provider{
		paths:           credentialPaths,
		store:           store,
		browser:         SystemBrowser{},
		redirectURL:     RedirectURL,
		callbackTimeout: CallbackTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authenticate returns a usable token and a TokenSource that refreshes it
// and persists every new token.
func (p *Provider) Authenticate(ctx context.Context) (*oauth2.Token, oauth2.TokenSource, error) {
	cfg, path, err := LoadConfig(p.paths)
	if err != nil {
		return nil, nil, err
	}
	cfg.RedirectURL = p.redirectURL
	debug.Logf("auth: using client config %s\n", path)

	ctx = p.oauthContext(ctx)
	v, err, shared := p.obtaining.Do(TokenKey, func() (interface{}, error) {
		return p.obtain(ctx, cfg)
	})
	if err != nil {
		return nil, nil, err
	}
	if shared {
		debug.Logf("auth: joined a sign-in already in progress\n")
	}
	tok := v.(*oauth2.Token)

	p.mu.Lock()
	p.config = cfg
	p.token = tok
	p.mu.Unlock()

	// The source outlives this call; later refreshes must not inherit its
	// cancellation.
	src := &persistingSource{
		base:  oauth2.ReuseTokenSource(tok, cfg.TokenSource(context.WithoutCancel(ctx), tok)),
		store: p.store,
		last:  tok.AccessToken,
	}
	return tok, src, nil
}

// HTTPClient authenticates and returns an *http.Client that injects the
// credential into every request.
func (p *Provider) HTTPClient(ctx context.Context) (*http.Client, error) {
	_, src, err := p.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(p.oauthContext(ctx), src), nil
}

// Token returns the in-memory token, or nil when signed out.
func (p *Provider) Token() *oauth2.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// Logout deletes the stored token and forgets in-memory state. Safe to call
// when already signed out.
func (p *Provider) Logout() error {
	p.mu.Lock()
	p.token = nil
	p.config = nil
	p.mu.Unlock()
	if err := p.store.Delete(TokenKey); err != nil {
		return fmt.Errorf("delete stored token: %w", err)
	}
	return nil
}

func (p *Provider) obtain(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	stored := p.loadToken()
	if stored != nil {
		if stored.AccessToken != "" && !stored.Expiry.IsZero() && stored.Expiry.After(p.now()) {
			debug.Logf("auth: stored token valid until %s\n", stored.Expiry.Format(time.RFC3339))
			return stored, nil
		}
		if stored.RefreshToken != "" {
			tok, err := p.refresh(ctx, cfg, stored.RefreshToken)
			if err == nil {
				return tok, nil
			}
			debug.Logf("auth: token refresh failed, signing in again: %v\n", err)
		}
	}
	return p.signIn(ctx, cfg)
}

// refresh performs exactly one token endpoint call.
func (p *Provider) refresh(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, err
	}
	if err := p.saveToken(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func (p *Provider) signIn(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	code, err := p.awaitCode(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %v", ErrAuthFailed, err)
	}
	if err := p.saveToken(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

type callbackResult struct {
	code string
	err  error
}

// awaitCode opens the consent page and serves the redirect on a loopback
// listener. The listener is shut down on every return path.
func (p *Provider) awaitCode(ctx context.Context, cfg *oauth2.Config) (string, error) {
	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad redirect URL: %v", ErrConfigInvalid, err)
	}
	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("%w: listen on %s: %v", ErrAuthFailed, redirect.Host, err)
	}
	if redirect.Port() == "0" {
		redirect.Host = ln.Addr().String()
		cfg.RedirectURL = redirect.String()
	}

	state := uuid.NewString()
	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("code") == "":
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			res.err = fmt.Errorf("%w: missing authorization code (%s)", ErrAuthFailed, q.Get("error"))
		case q.Get("state") != state:
			http.Error(w, "State mismatch", http.StatusBadRequest)
			res.err = fmt.Errorf("%w: state mismatch", ErrAuthFailed)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprint(w, successPage)
			res.code = q.Get("code")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		debug.Logf("auth: callback listener on %s closed\n", redirect.Host)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	debug.Logf("auth: opening browser for sign-in\n")
	if err := p.browser.Open(authURL); err != nil {
		debug.Logf("auth: could not open browser (%v); visit %s\n", err, authURL)
	}

	timer := time.NewTimer(p.callbackTimeout)
	defer timer.Stop()
	select {
	case res := <-results:
		return res.code, res.err
	case <-timer.C:
		return "", ErrAuthTimeout
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, ctx.Err())
	}
}

func (p *Provider) loadToken() *oauth2.Token {
	raw, ok, err := p.store.Get(TokenKey)
	if err != nil {
		debug.Logf("auth: read stored token: %v\n", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		debug.Logf("auth: stored token unreadable, ignoring: %v\n", err)
		return nil
	}
	return &tok
}

func (p *Provider) saveToken(tok *oauth2.Token) error {
	return storeToken(p.store, tok)
}

func storeToken(s Store, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := s.Set(TokenKey, string(data)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (p *Provider) oauthContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// persistingSource writes refreshed tokens back to the store.
type persistingSource struct {
	base  oauth2.TokenSource
	store Store

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := storeToken(s.store, tok); err != nil {
			debug.Logf("auth: persist refreshed token: %v\n", err)
		}
	}
	return tok, nil
}

const successPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>qc</title></head>
<body style="font-family:sans-serif;text-align:center;margin-top:20vh">
<h1>授權成功！</h1>
<p>You can close this page and return to your editor.</p>
</body></html>`
