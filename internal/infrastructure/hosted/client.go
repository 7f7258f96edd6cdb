// Package hosted talks to the backoffice API over HTTP and keeps the
// resulting session in memory. It backs the admin CLI.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/gateway"
)

// APIError is a non-2xx reply from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Tokens is the pair returned by sign-in and refresh.
type Tokens struct {
	AccessToken        string    `json:"access_token"`
	AccessTokenExpiry  time.Time `json:"access_expires_at"`
	RefreshToken       string    `json:"refresh_token"`
	RefreshTokenExpiry time.Time `json:"refresh_expires_at"`
	SessionID          string    `json:"session_id"`
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type signedIn struct {
	Principal *entity.Principal `json:"principal"`
	Tokens
}

type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *logrus.Logger

	mu        sync.Mutex
	principal *entity.Principal
	tokens    *Tokens
	stream    *websocket.Conn
	listeners map[int]gateway.SessionListener
	nextID    int
}

func New(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      cleanhttp.DefaultPooledClient(),
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:    logger,
		listeners: map[int]gateway.SessionListener{},
	}
}

// Tokens returns the pair held for the current session.
func (c *Client) Tokens() (Tokens, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil {
		return Tokens{}, false
	}
	return *c.tokens, true
}

// Restore installs a previously issued pair without contacting the API.
// Call GetCurrentSession afterwards to validate it.
func (c *Client) Restore(t Tokens) {
	c.mu.Lock()
	c.tokens = &t
	c.mu.Unlock()
}

// GetCurrentSession validates the held access token, refreshing it once when
// the API rejects it, and opens the event stream for a usable session. It
// returns nil, nil when there is no usable session.
func (c *Client) GetCurrentSession(ctx context.Context) (*entity.Principal, error) {
	t, ok := c.Tokens()
	if !ok {
		return nil, nil
	}
	p, err := call[*entity.Principal](ctx, c, http.MethodGet, "/api/auth/session", nil, t.AccessToken)
	if err == nil {
		c.setPrincipal(p)
		c.ensureStream(ctx, t.AccessToken)
		return p, nil
	}
	if !isStatus(err, http.StatusUnauthorized) {
		return nil, err
	}
	// The refresh publishes token_refreshed with the new sid, which an open
	// stream would read as a foreign session.
	c.closeStream()
	body, err := call[signedIn](ctx, c, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": t.RefreshToken}, "")
	if err != nil {
		if isStatus(err, http.StatusUnauthorized) {
			c.clear()
			return nil, nil
		}
		return nil, err
	}
	c.mu.Lock()
	c.tokens = &body.Tokens
	c.principal = body.Principal
	c.mu.Unlock()
	c.ensureStream(ctx, body.AccessToken)
	return copyPrincipal(body.Principal), nil
}

func (c *Client) OnSessionChange(fn gateway.SessionListener) gateway.Unsubscribe {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	c.closeStream()
	body, err := call[signedIn](ctx, c, http.MethodPost, "/api/auth/token", map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return err
	}
	c.begin(ctx, body)
	return nil
}

// SignOut ends the held session. Without a session it does nothing.
func (c *Client) SignOut(ctx context.Context) error {
	t, ok := c.Tokens()
	if !ok {
		return nil
	}
	c.closeStream()
	if _, err := call[json.RawMessage](ctx, c, http.MethodPost, "/api/auth/logout", nil, t.AccessToken); err != nil && !isStatus(err, http.StatusUnauthorized) {
		return err
	}
	c.clear()
	return nil
}

// SignUp creates the identity and then signs it in, so the follow-up profile
// insert runs as the new principal.
func (c *Client) SignUp(ctx context.Context, email, password string) (*entity.Principal, error) {
	p, err := call[*entity.Principal](ctx, c, http.MethodPost, "/api/auth/signup", map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return nil, err
	}
	if err := c.SignInWithPassword(ctx, email, password); err != nil && c.logger != nil {
		c.logger.WithError(err).WithField("principal_id", p.ID).Warn("sign in after sign up failed")
	}
	return p, nil
}

func (c *Client) QueryEmailByUsername(ctx context.Context, username string) (string, error) {
	out, err := call[struct {
		Email string `json:"email"`
	}](ctx, c, http.MethodGet, "/api/profiles/email?username="+url.QueryEscape(username), nil, "")
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", gateway.ErrNotFound
		}
		return "", err
	}
	return out.Email, nil
}

func (c *Client) InsertAccountProfile(ctx context.Context, p entity.AccountProfile) error {
	t, _ := c.Tokens()
	_, err := call[json.RawMessage](ctx, c, http.MethodPost, "/api/profiles", map[string]string{
		"id":        p.ID,
		"email":     p.Email,
		"username":  p.Username,
		"full_name": p.FullName,
		"role":      p.Role.String(),
	}, t.AccessToken)
	return err
}

// Me returns the account profile of the signed-in principal.
func (c *Client) Me(ctx context.Context) (*entity.AccountProfile, error) {
	t, ok := c.Tokens()
	if !ok {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "not signed in"}
	}
	return call[*entity.AccountProfile](ctx, c, http.MethodGet, "/api/profiles/me", nil, t.AccessToken)
}

// Close drops the event stream. The session itself stays open on the server.
func (c *Client) Close() {
	c.closeStream()
}

func (c *Client) begin(ctx context.Context, body signedIn) {
	c.closeStream()
	c.mu.Lock()
	c.tokens = &body.Tokens
	c.principal = body.Principal
	c.mu.Unlock()
	c.notify(body.Principal)
	c.ensureStream(ctx, body.AccessToken)
}

func (c *Client) ensureStream(ctx context.Context, access string) {
	c.mu.Lock()
	open := c.stream != nil
	c.mu.Unlock()
	if open {
		return
	}
	if err := c.openStream(ctx, access); err != nil && c.logger != nil {
		c.logger.WithError(err).Warn("session stream unavailable")
	}
}

func (c *Client) openStream(ctx context.Context, access string) error {
	u, err := url.Parse(c.baseURL + "/api/auth/session/stream")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+access)
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), h)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	// Lost a race with another open, or the session moved on while dialing.
	if c.stream != nil || c.tokens == nil || c.tokens.AccessToken != access {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.stream = conn
	c.mu.Unlock()
	go c.readStream(conn)
	return nil
}

// readStream applies remote session events until the connection closes.
// A sign-in or refresh under another sid replaces this client's session, so
// it ends the local one just like a sign-out.
func (c *Client) readStream(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()
	for {
		var ev entity.SessionEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		c.mu.Lock()
		current := c.stream == conn
		replaced := ev.Type != entity.SessionSignedOut && c.tokens != nil && supersedes(ev, c.tokens.SessionID)
		ended := ev.Type == entity.SessionSignedOut || replaced
		if current && ended {
			c.stream = nil
			c.tokens = nil
			c.principal = nil
		} else if current {
			c.principal = ev.Principal()
		}
		c.mu.Unlock()
		if !current {
			return
		}
		if ended {
			if replaced && c.logger != nil {
				c.logger.WithField("event", ev.Type).Info("session replaced by another sign-in")
			}
			c.notify(nil)
			return
		}
		c.notify(ev.Principal())
	}
}

// supersedes reports whether ev names a live session other than sid. Tokens
// saved without a sid cannot be compared and are left alone.
func supersedes(ev entity.SessionEvent, sid string) bool {
	return ev.SessionID != "" && sid != "" && ev.SessionID != sid
}

func (c *Client) closeStream() {
	c.mu.Lock()
	conn := c.stream
	c.stream = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

func (c *Client) clear() {
	c.closeStream()
	c.mu.Lock()
	had := c.tokens != nil || c.principal != nil
	c.tokens = nil
	c.principal = nil
	c.mu.Unlock()
	if had {
		c.notify(nil)
	}
}

func (c *Client) setPrincipal(p *entity.Principal) {
	c.mu.Lock()
	c.principal = copyPrincipal(p)
	c.mu.Unlock()
}

func (c *Client) notify(p *entity.Principal) {
	c.mu.Lock()
	ls := make([]gateway.SessionListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		ls = append(ls, fn)
	}
	c.mu.Unlock()
	for _, fn := range ls {
		fn(copyPrincipal(p))
	}
}

func copyPrincipal(p *entity.Principal) *entity.Principal {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func call[T any](ctx context.Context, c *Client, method, path string, in any, bearer string) (T, error) {
	var zero T
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return zero, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return zero, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return zero, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope[T]
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return zero, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return zero, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return zero, &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	return env.Data, nil
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

var (
	_ gateway.AuthService = (*Client)(nil)
	_ gateway.DataService = (*Client)(nil)
)
