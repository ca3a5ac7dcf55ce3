package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds every HTTP exchange.
const DefaultTimeout = 8 * time.Second

const (
	refreshCookieName = "refresh_token"
	maxBodyBytes      = 4 << 20
)

var (
	// ErrSessionExpired is returned when a request is still unauthorized after
	// a refresh; the manager has already signed out locally.
	ErrSessionExpired = errors.New("session expired")
	ErrNotSignedIn    = errors.New("not signed in")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int    `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Reason, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

type Options struct {
	BaseURL string
	// Durable keeps "remember me" sessions; nil means every session is ephemeral.
	Durable Store
	// Ephemeral defaults to a MemoryStore.
	Ephemeral Store
	// HTTPClient gets a cookie jar when it has none.
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *logrus.Logger
}

// Manager owns the session. All methods are safe for concurrent use.
type Manager struct {
	base      *url.URL
	client    *http.Client
	durable   Store
	ephemeral Store
	timeout   time.Duration
	logger    *logrus.Logger
	refreshes singleflight.Group

	mu     sync.RWMutex
	state  State
	snap   *Snapshot
	active Store

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

func New(opts Options) (*Manager, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("session: base url %q must be absolute", opts.BaseURL)
	}
	if base.Path == "" {
		base.Path = "/"
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c := *client
		c.Jar = jar
		client = &c
	}

	m := &Manager{
		base:      base,
		client:    client,
		durable:   opts.Durable,
		ephemeral: opts.Ephemeral,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		subs:      map[int]chan Event{},
	}
	if m.ephemeral == nil {
		m.ephemeral = NewMemoryStore()
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	if m.logger == nil {
		m.logger = logrus.New()
		m.logger.SetOutput(io.Discard)
	}
	return m, nil
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil
	}
	u := m.snap.User
	return &u
}

func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return ""
	}
	return m.snap.AccessToken
}

// Subscribe returns a channel receiving the current state and every change
// after it. A slow reader only loses intermediate events, never the latest.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.event()
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			close(ch)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) event() Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev := Event{State: m.state}
	if m.snap != nil {
		u := m.snap.User
		ev.User = &u
	}
	return ev
}

// publish reads the state under subMu so subscribers see changes in order.
func (m *Manager) publish() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	ev := m.event()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.publish()
}

// Boot restores a stored session and validates it against the API. Only an
// explicit 401 discards the stored session; transport failures keep it and
// are returned.
func (m *Manager) Boot(ctx context.Context) error {
	m.setState(StateInitializing)

	snap, store := m.loadSnapshot()
	if snap == nil {
		m.clearLocal()
		return nil
	}
	m.mu.Lock()
	m.snap, m.active = snap, store
	m.mu.Unlock()
	if snap.RefreshToken != "" && m.jarRefresh() == "" {
		m.seedJar(snap.RefreshToken)
	}

	if _, err := m.refresh(ctx); err != nil {
		if IsUnauthorized(err) {
			m.clearLocal()
			return nil
		}
		m.logger.WithError(err).Warn("session refresh failed; keeping cached session")
		m.setState(StateAuthenticated)
		return err
	}
	if _, err := m.RefreshProfile(ctx); err != nil {
		if errors.Is(err, ErrSessionExpired) || IsUnauthorized(err) {
			m.clearLocal()
			return nil
		}
		m.logger.WithError(err).Warn("profile fetch failed; keeping cached session")
		m.setState(StateAuthenticated)
		return err
	}
	return nil
}

// Restore loads a stored session without contacting the API and reports
// whether one was found. The session stays unverified until a request or Boot.
func (m *Manager) Restore() bool {
	snap, store := m.loadSnapshot()
	if snap == nil {
		return false
	}
	if snap.RefreshToken != "" && m.jarRefresh() == "" {
		m.seedJar(snap.RefreshToken)
	}
	m.mu.Lock()
	m.snap, m.active, m.state = snap, store, StateAuthenticated
	m.mu.Unlock()
	m.publish()
	return true
}

func (m *Manager) loadSnapshot() (*Snapshot, Store) {
	for _, s := range []Store{m.durable, m.ephemeral} {
		if s == nil {
			continue
		}
		snap, err := s.Load()
		if err != nil {
			m.logger.WithError(err).Warn("discarding unreadable session snapshot")
			_ = s.Clear()
			continue
		}
		if snap != nil {
			return snap, s
		}
	}
	return nil, nil
}

// SignInResult never carries an error; Message is meant for the user.
type SignInResult struct {
	OK      bool
	User    *User
	Reason  string
	Message string
}

type loginResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

// SignIn logs in and stores the session durably when remember is set.
func (m *Manager) SignIn(ctx context.Context, email, password string, remember bool) SignInResult {
	var res loginResponse
	err := m.call(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "", &res)
	if err != nil {
		var ae *APIError
		if errors.As(err, &ae) {
			msg := ae.Message
			if msg == "" {
				msg = http.StatusText(ae.Status)
			}
			return SignInResult{Reason: ae.Reason, Message: msg}
		}
		m.logger.WithError(err).Warn("login request failed")
		return SignInResult{Message: "could not reach the server, try again"}
	}

	snap := &Snapshot{User: res.User, AccessToken: res.AccessToken, RefreshToken: m.jarRefresh()}
	target, other := m.ephemeral, m.durable
	if remember && m.durable != nil {
		target, other = m.durable, m.ephemeral
	}
	if other != nil {
		_ = other.Clear()
	}
	if err := target.Save(snap); err != nil {
		m.logger.WithError(err).Warn("saving session failed")
	}

	m.mu.Lock()
	m.snap, m.active, m.state = snap, target, StateAuthenticated
	m.mu.Unlock()
	m.publish()
	u := res.User
	return SignInResult{OK: true, User: &u}
}

// SignOut asks the API to clear the refresh cookie and always clears local
// state. The returned error only reports the remote call.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.call(ctx, http.MethodPost, "/auth/logout", nil, "", nil)
	m.clearLocal()
	return err
}

type meResponse struct {
	User User `json:"user"`
}

func (m *Manager) RefreshProfile(ctx context.Context) (*User, error) {
	var res meResponse
	if err := m.Do(ctx, http.MethodGet, "/auth/me", nil, &res); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.snap == nil {
		m.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	m.snap.User = res.User
	m.persistLocked()
	m.state = StateAuthenticated
	m.mu.Unlock()
	m.publish()
	u := res.User
	return &u, nil
}

// Do sends an authenticated JSON request and decodes a 2xx body into out.
// A 401 triggers one shared refresh and one retry; a second 401 signs out.
func (m *Manager) Do(ctx context.Context, method, path string, body, out any) error {
	token := m.AccessToken()
	if token == "" {
		return ErrNotSignedIn
	}
	err := m.call(ctx, method, path, body, token, out)
	if !IsUnauthorized(err) {
		return err
	}
	fresh, err := m.refreshAfter(ctx, token)
	if err != nil {
		if IsUnauthorized(err) {
			m.expire()
			return ErrSessionExpired
		}
		return err
	}
	err = m.call(ctx, method, path, body, fresh, out)
	if IsUnauthorized(err) {
		m.expire()
		return ErrSessionExpired
	}
	return err
}

// Public sends a request without credentials.
func (m *Manager) Public(ctx context.Context, method, path string, body, out any) error {
	return m.call(ctx, method, path, body, "", out)
}

// refreshAfter skips the refresh when another caller already replaced stale.
func (m *Manager) refreshAfter(ctx context.Context, stale string) (string, error) {
	if cur := m.AccessToken(); cur != "" && cur != stale {
		return cur, nil
	}
	return m.refresh(ctx)
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// refresh rotates the tokens. Concurrent callers share one request.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	v, err, shared := m.refreshes.Do("refresh", func() (any, error) {
		var res refreshResponse
		if err := m.call(context.WithoutCancel(ctx), http.MethodPost, "/auth/refresh", nil, "", &res); err != nil {
			return "", err
		}
		if res.AccessToken == "" {
			return "", errors.New("session: refresh returned no access token")
		}
		m.mu.Lock()
		if m.snap != nil {
			m.snap.AccessToken = res.AccessToken
			if rt := m.jarRefresh(); rt != "" {
				m.snap.RefreshToken = rt
			}
			m.persistLocked()
		}
		m.mu.Unlock()
		return res.AccessToken, nil
	})
	if shared {
		m.logger.Debug("joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) expire() {
	m.logger.Info("session expired; signing out")
	m.clearLocal()
}

func (m *Manager) clearLocal() {
	for _, s := range []Store{m.durable, m.ephemeral} {
		if s == nil {
			continue
		}
		if err := s.Clear(); err != nil {
			m.logger.WithError(err).Warn("clearing session store failed")
		}
	}
	m.clearJar()
	m.mu.Lock()
	m.snap, m.active, m.state = nil, nil, StateAnonymous
	m.mu.Unlock()
	m.publish()
}

// persistLocked requires m.mu held.
func (m *Manager) persistLocked() {
	if m.active == nil || m.snap == nil {
		return
	}
	if err := m.active.Save(m.snap); err != nil {
		m.logger.WithError(err).Warn("saving session failed")
	}
}

func (m *Manager) endpoint(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	u := m.base.JoinPath(ref.Path)
	u.RawQuery = ref.RawQuery
	return u, nil
}

func (m *Manager) authURL() *url.URL {
	u, _ := m.endpoint("/auth/refresh")
	return u
}

func (m *Manager) jarRefresh() string {
	for _, c := range m.client.Jar.Cookies(m.authURL()) {
		if c.Name == refreshCookieName {
			return c.Value
		}
	}
	return ""
}

func (m *Manager) seedJar(token string) {
	m.client.Jar.SetCookies(m.authURL(), []*http.Cookie{{
		Name:     refreshCookieName,
		Value:    token,
		Path:     m.base.JoinPath("auth").Path,
		HttpOnly: true,
	}})
}

func (m *Manager) clearJar() {
	m.client.Jar.SetCookies(m.authURL(), []*http.Cookie{{
		Name:   refreshCookieName,
		Path:   m.base.JoinPath("auth").Path,
		MaxAge: -1,
	}})
}

// call performs one exchange bounded by the manager's timeout.
func (m *Manager) call(ctx context.Context, method, path string, body any, token string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	u, err := m.endpoint(path)
	if err != nil {
		return err
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ae := &APIError{}
		_ = json.Unmarshal(data, ae)
		ae.Status = resp.StatusCode
		return ae
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
