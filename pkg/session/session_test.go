package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI implements the auth endpoints with opaque counters as tokens.
type fakeAPI struct {
	mu       sync.Mutex
	seq      int
	access   string
	refresh  string
	refreshN atomic.Int32
	delay    time.Duration
	// rejectAll makes every bearer request 401, even with a fresh token.
	rejectAll bool
}

func (f *fakeAPI) issue(w http.ResponseWriter) string {
	f.seq++
	f.access = "access-" + strconv.Itoa(f.seq)
	f.refresh = "refresh-" + strconv.Itoa(f.seq)
	http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Value: f.refresh, Path: "/auth", HttpOnly: true})
	return f.access
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func unauthorized(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "reason": reason, "message": "unauthorized"})
}

var ana = User{ID: 1, Name: "Ana Silva", Email: "ana@ex.com"}

func (f *fakeAPI) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.rejectAll && f.access != "" && r.Header.Get("Authorization") == "Bearer "+f.access
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != ana.Email || body["password"] != "password1" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"reason": "INVALID_CREDENTIALS", "message": "invalid email or password"})
			return
		}
		f.mu.Lock()
		token := f.issue(w)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"user": ana, "accessToken": token})
	case "/auth/refresh":
		c, err := r.Cookie(refreshCookieName)
		f.mu.Lock()
		if err != nil || c.Value != f.refresh || f.refresh == "" {
			f.mu.Unlock()
			unauthorized(w, "INVALID_OR_EXPIRED")
			return
		}
		f.refreshN.Add(1)
		time.Sleep(f.delay)
		token := f.issue(w)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"accessToken": token})
	case "/auth/logout":
		http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Path: "/auth", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	case "/auth/me":
		if !f.authorized(r) {
			unauthorized(w, "INVALID_OR_EXPIRED")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": ana})
	case "/api/orders":
		if !f.authorized(r) {
			unauthorized(w, "INVALID_OR_EXPIRED")
			return
		}
		writeJSON(w, http.StatusOK, []any{})
	default:
		http.NotFound(w, r)
	}
}

// expireAccess invalidates the current access token but keeps the refresh token.
func (f *fakeAPI) expireAccess() {
	f.mu.Lock()
	f.access = ""
	f.mu.Unlock()
}

func (f *fakeAPI) revokeRefresh() {
	f.mu.Lock()
	f.refresh = ""
	f.mu.Unlock()
}

func newManager(t *testing.T, baseURL string, durable Store) *Manager {
	t.Helper()
	m, err := New(Options{BaseURL: baseURL, Durable: durable, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return m
}

func setup(t *testing.T) (*fakeAPI, *httptest.Server, *FileStore) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv, NewFileStore(filepath.Join(t.TempDir(), "session.json"))
}

func TestSignInRemember(t *testing.T) {
	_, srv, file := setup(t)
	m := newManager(t, srv.URL, file)

	res := m.SignIn(context.Background(), "ana@ex.com", "password1", true)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, StateAuthenticated, m.State())
	assert.Equal(t, "ana@ex.com", m.User().Email)

	snap, err := file.Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, m.AccessToken(), snap.AccessToken)
	assert.Equal(t, "refresh-1", snap.RefreshToken)

	info, err := os.Stat(file.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSignInEphemeral(t *testing.T) {
	_, srv, file := setup(t)
	mem := NewMemoryStore()
	m, err := New(Options{BaseURL: srv.URL, Durable: file, Ephemeral: mem})
	require.NoError(t, err)

	require.True(t, m.SignIn(context.Background(), "ana@ex.com", "password1", true).OK)
	require.True(t, m.SignIn(context.Background(), "ana@ex.com", "password1", false).OK)

	_, err = os.Stat(file.Path)
	assert.True(t, os.IsNotExist(err), "durable snapshot must be removed when not remembered")
	snap, err := mem.Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "access-2", snap.AccessToken)
}

func TestSignInFailureCarriesMessage(t *testing.T) {
	_, srv, file := setup(t)
	m := newManager(t, srv.URL, file)

	res := m.SignIn(context.Background(), "ana@ex.com", "wrong", true)
	assert.False(t, res.OK)
	assert.Equal(t, "INVALID_CREDENTIALS", res.Reason)
	assert.Equal(t, "invalid email or password", res.Message)
	assert.NotEqual(t, StateAuthenticated, m.State())
}

func TestSignInTransportFailure(t *testing.T) {
	_, srv, file := setup(t)
	m := newManager(t, srv.URL, file)
	srv.Close()

	res := m.SignIn(context.Background(), "ana@ex.com", "password1", true)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Message)
}

func TestDoRefreshesOnceAndRetries(t *testing.T) {
	api, srv, file := setup(t)
	m := newManager(t, srv.URL, file)
	require.True(t, m.SignIn(context.Background(), "ana@ex.com", "password1", true).OK)

	api.expireAccess()
	var orders []any
	require.NoError(t, m.Do(context.Background(), http.MethodGet, "/api/orders?userId=1", nil, &orders))
	assert.Equal(t, int32(1), api.refreshN.Load())
	assert.Equal(t, "access-2", m.AccessToken())

	snap, err := file.Load()
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", snap.RefreshToken, "rotated refresh token must be persisted")
}

func TestConcurrentUnauthorizedRequestsShareOneRefresh(t *testing.T) {
	api, srv, file := setup(t)
	api.delay = 50 * time.Millisecond
	m := newManager(t, srv.URL, file)
	require.True(t, m.SignIn(context.Background(), "ana@ex.com", "password1", false).OK)

	api.expireAccess()
	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Do(context.Background(), http.MethodGet, "/api/orders", nil, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), api.refreshN.Load())
	assert.Equal(t, StateAuthenticated, m.State())
}

func TestSecondUnauthorizedSignsOut(t *testing.T) {
	api, srv, file := setup(t)
	m := newManager(t, srv.URL, file)
	require.True(t, m.SignIn(context.Background(), "ana@ex.com", "password1", true).OK)

	api.mu.Lock()
	api.rejectAll = true
	api.mu.Unlock()

	err := m.Do(context.Background(), http.MethodGet, "/api/orders", nil, nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, StateAnonymous, m.State())
	assert.Nil(t, m.User())
	snap, err := file.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestDoWithoutSession(t *testing.T) {
	_, srv, file := setup(t)
	m := newManager(t, srv.URL, file)
	assert.ErrorIs(t, m.Do(context.Background(), http.MethodGet, "/api/orders", nil, nil), ErrNotSignedIn)
}

func TestBootRestoresDurableSession(t *testing.T) {
	api, srv, file := setup(t)
	first := newManager(t, srv.URL, file)
	require.True(t, first.SignIn(context.Background(), "ana@ex.com", "password1", true).OK)

	// a new process: fresh cookie jar, same file
	second := newManager(t, srv.URL, file)
	assert.Equal(t, StateUninitialized, second.State())
	require.NoError(t, second.Boot(context.Background()))
	assert.Equal(t, StateAuthenticated, second.State())
	assert.Equal(t, "ana@ex.com", second.User().Email)
	assert.Equal(t, int32(1), api.refreshN.Load())
}

func TestRestoreLoadsSnapshotWithoutNetwork(t *testing.T) {
	api, srv, file := setup(t)
	first := newManager(t, srv.URL, file)
	require.True(t, first.SignIn(context.Background(), "ana@ex.com", "password1", true).OK)

	second := newManager(t, srv.URL, file)
	require.True(t, second.Restore())
	assert.Equal(t, StateAuthenticated, second.State())
	assert.Equal(t, "ana@ex.com", second.User().Email)
	assert.Equal(t, "refresh-1", second.jarRefresh())
	assert.Zero(t, api.refreshN.Load())

	empty := newManager(t, srv.URL, NewFileStore(filepath.Join(t.TempDir(), "none.json")))
	assert.False(t, empty.Restore())
	assert.Equal(t, StateUninitialized, empty.State())
}

func TestBootWithoutSnapshotIsAnonymous(t *testing.T) {
	_, srv, file := setup(t)
	m := newManager(t, srv.URL, file)
	require.NoError(t, m.Boot(context.Background()))
	assert.Equal(t, StateAnonymous, m.State())
}

func TestBootUnauthorizedClears(t *testing.T) {
	api, srv, file := setup(t)
	require.True(t, newManager(t, srv.URL, file).SignIn(context.Background(), "ana@ex.com", "password1", true).OK)
	api.revokeRefresh()

	m := newManager(t, srv.URL, file)
	require.NoError(t, m.Boot(context.Background()))
	assert.Equal(t, StateAnonymous, m.State())
	snap, err := file.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestBootTransportErrorKeepsSnapshot(t *testing.T) {
	_, srv, file := setup(t)
	require.True(t, newManager(t, srv.URL, file).SignIn(context.Background(), "ana@ex.com", "password1", true).OK)
	srv.Close()

	m := newManager(t, srv.URL, file)
	err := m.Boot(context.Background())
	assert.Error(t, err)
	assert.False(t, IsUnauthorized(err))
	assert.Equal(t, StateAuthenticated, m.State())
	assert.Equal(t, "ana@ex.com", m.User().Email)
	snap, lerr := file.Load()
	require.NoError(t, lerr)
	assert.NotNil(t, snap)
}

func TestSignOutIsBestEffort(t *testing.T) {
	_, srv, file := setup(t)
	m := newManager(t, srv.URL, file)
	require.True(t, m.SignIn(context.Background(), "ana@ex.com", "password1", true).OK)
	srv.Close()

	err := m.SignOut(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateAnonymous, m.State())
	assert.Empty(t, m.jarRefresh())
	snap, lerr := file.Load()
	require.NoError(t, lerr)
	assert.Nil(t, snap)
}

func TestSubscribe(t *testing.T) {
	_, srv, file := setup(t)
	m := newManager(t, srv.URL, file)
	events, cancel := m.Subscribe()
	defer cancel()

	assert.Equal(t, StateUninitialized, (<-events).State)
	require.True(t, m.SignIn(context.Background(), "ana@ex.com", "password1", false).OK)
	ev := <-events
	assert.Equal(t, StateAuthenticated, ev.State)
	require.NotNil(t, ev.User)
	assert.Equal(t, "ana@ex.com", ev.User.Email)

	require.NoError(t, m.SignOut(context.Background()))
	assert.Equal(t, StateAnonymous, (<-events).State)

	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestSubscribeLatestEventMatchesState(t *testing.T) {
	m, err := New(Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	events, cancel := m.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.setState(StateAuthenticated)
			} else {
				m.setState(StateAnonymous)
			}
		}(i)
	}
	wg.Wait()

	var last Event
	for {
		select {
		case ev := <-events:
			last = ev
			continue
		default:
		}
		break
	}
	assert.Equal(t, m.State(), last.State)
}

func TestTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	m, err := New(Options{BaseURL: slow.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	start := time.Now()
	res := m.SignIn(context.Background(), "ana@ex.com", "password1", false)
	assert.False(t, res.OK)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New(Options{BaseURL: "localhost:4000"})
	assert.Error(t, err)
	_, err = New(Options{BaseURL: "/api"})
	assert.Error(t, err)
}

func TestFileStoreIgnoresEmptySnapshot(t *testing.T) {
	f := NewFileStore(filepath.Join(t.TempDir(), "nested", "s.json"))
	snap, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, f.Save(&Snapshot{User: ana}))
	snap, err = f.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, os.WriteFile(f.Path, []byte("{broken"), 0o600))
	_, err = f.Load()
	assert.Error(t, err)
	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
}
