package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCantina struct {
	mu       sync.Mutex
	n        int
	access   map[string]bool
	refresh  string
	orders   []placeOrderRequest
	lastMenu string

	logoutCookie string
}

func newFakeCantina(t *testing.T) (*fakeCantina, *httptest.Server) {
	t.Helper()
	f := &fakeCantina{access: map[string]bool{}}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ana@example.com" || body["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"reason": "INVALID_CREDENTIALS", "message": "Invalid email or password."})
			return
		}
		access, refresh := f.issue()
		setRefresh(w, refresh)
		writeJSON(w, http.StatusOK, map[string]any{"user": fakeUser(), "accessToken": access})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("refresh_token")
		f.mu.Lock()
		ok := err == nil && c.Value != "" && c.Value == f.refresh
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"reason": "INVALID_OR_EXPIRED"})
			return
		}
		access, refresh := f.issue()
		setRefresh(w, refresh)
		writeJSON(w, http.StatusOK, map[string]any{"accessToken": access})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		if c, err := r.Cookie("refresh_token"); err == nil {
			f.logoutCookie = c.Value
		}
		f.refresh = ""
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /auth/me", f.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": fakeUser()})
	}))
	mux.HandleFunc("GET /api/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []menuCategory{{ID: 2, Name: "Bebidas", Slug: "bebidas"}})
	})
	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastMenu = r.URL.RawQuery
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, []menuProduct{
			{ID: 5, Name: "Suco de Laranja", Price: "6.50", Stock: 12, Category: &menuCategory{Slug: "bebidas"}},
		})
	})
	mux.HandleFunc("POST /api/orders", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.orders = append(f.orders, req)
		id := int64(len(f.orders))
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, placeOrderResponse{OrderID: id, OrderNumber: id})
	}))
	mux.HandleFunc("GET /api/orders", f.authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") != "1" {
			writeJSON(w, http.StatusForbidden, map[string]any{"reason": "USER_MISMATCH"})
			return
		}
		writeJSON(w, http.StatusOK, []orderSummary{{
			ID: 3, Name: "Ana", Total: "13.00",
			Items: []orderLine{{Name: "Suco de Laranja", Quantity: 2, UnitPrice: "6.50", Subtotal: "13.00"}},
		}})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeCantina) issue() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	access := "access-" + strconv.Itoa(f.n)
	f.access[access] = true
	f.refresh = "refresh-" + strconv.Itoa(f.n)
	return access, f.refresh
}

func (f *fakeCantina) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		ok := f.access[token]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"reason": "INVALID_OR_EXPIRED"})
			return
		}
		next(w, r)
	}
}

func fakeUser() map[string]any {
	return map[string]any{"id": 1, "name": "Ana", "email": "ana@example.com", "createdAt": "2024-03-01T12:00:00Z"}
}

func setRefresh(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: token, Path: "/auth", HttpOnly: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type cliEnv struct {
	api     string
	session string
}

func newCLIEnv(t *testing.T, api string) cliEnv {
	return cliEnv{api: api, session: filepath.Join(t.TempDir(), "session.json")}
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--api", e.api, "--session", e.session}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cantinactl", cmd.Use)

	for _, name := range []string{"login", "logout", "whoami", "menu", "order", "orders"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	t.Setenv("CANTINA_API_URL", "https://cantina.example")
	cmd := NewRootCommand()

	api := cmd.PersistentFlags().Lookup("api")
	require.NotNil(t, api)
	assert.Equal(t, "https://cantina.example", api.DefValue)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("session"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("timeout"))
}

func TestParseItem(t *testing.T) {
	it, err := parseItem("5:2")
	require.NoError(t, err)
	assert.Equal(t, orderItem{ProductID: 5, Quantity: 2}, it)

	it, err = parseItem(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, orderItem{ProductID: 7, Quantity: 1}, it)

	for _, bad := range []string{"", "x", "0:1", "-3", "5:0", "5:-1", "5:two", "5:"} {
		_, err := parseItem(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseItemsMergesDuplicates(t *testing.T) {
	items, err := parseItems([]string{"5:2", "7", "5:1"})
	require.NoError(t, err)
	assert.Equal(t, []orderItem{{ProductID: 5, Quantity: 3}, {ProductID: 7, Quantity: 1}}, items)
}

func TestLoginWhoamiLogout(t *testing.T) {
	f, srv := newFakeCantina(t)
	env := newCLIEnv(t, srv.URL)

	out, err := env.run(t, "login", "--email", "ana@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ana <ana@example.com>")
	assert.FileExists(t, env.session)

	out, err = env.run(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Ana <ana@example.com> (id 1)\n", out)

	f.mu.Lock()
	issued := f.n
	f.mu.Unlock()

	out, err = env.run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")
	f.mu.Lock()
	assert.Empty(t, f.refresh, "server-side logout should have been called")
	assert.Equal(t, issued, f.n, "logout must not rotate tokens")
	assert.Equal(t, "refresh-"+strconv.Itoa(issued), f.logoutCookie)
	f.mu.Unlock()
	assert.NoFileExists(t, env.session)

	_, err = env.run(t, "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	_, srv := newFakeCantina(t)
	env := newCLIEnv(t, srv.URL)

	_, err := env.run(t, "login", "--email", "ana@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid email or password.")
	assert.NoFileExists(t, env.session)
}

func TestLoginWithoutRememberDoesNotPersist(t *testing.T) {
	_, srv := newFakeCantina(t)
	env := newCLIEnv(t, srv.URL)

	_, err := env.run(t, "login", "--email", "ana@example.com", "--password", "secret", "--remember=false")
	require.NoError(t, err)
	assert.NoFileExists(t, env.session)
}

func TestLoginRequiresFlags(t *testing.T) {
	_, srv := newFakeCantina(t)
	env := newCLIEnv(t, srv.URL)

	_, err := env.run(t, "login", "--email", "ana@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestMenu(t *testing.T) {
	f, srv := newFakeCantina(t)
	env := newCLIEnv(t, srv.URL)

	out, err := env.run(t, "menu", "--category", "bebidas", "--q", "suco")
	require.NoError(t, err)
	assert.Contains(t, out, "Suco de Laranja")
	assert.Contains(t, out, "6.50")
	f.mu.Lock()
	assert.Equal(t, "category=bebidas&q=suco", f.lastMenu)
	f.mu.Unlock()

	out, err = env.run(t, "menu", "--categories")
	require.NoError(t, err)
	assert.Contains(t, out, "bebidas")
	assert.Contains(t, out, "Bebidas")
}

func TestOrderRequiresSession(t *testing.T) {
	_, srv := newFakeCantina(t)
	env := newCLIEnv(t, srv.URL)

	_, err := env.run(t, "order", "--item", "5:1")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestOrderAndOrders(t *testing.T) {
	f, srv := newFakeCantina(t)
	env := newCLIEnv(t, srv.URL)

	_, err := env.run(t, "login", "--email", "ana@example.com", "--password", "secret")
	require.NoError(t, err)

	out, err := env.run(t, "order", "--item", "5:2", "--item", "7", "--item", "5", "--note", "sem gelo")
	require.NoError(t, err)
	assert.Equal(t, "Order placed, ticket #1\n", out)

	f.mu.Lock()
	require.Len(t, f.orders, 1)
	got := f.orders[0]
	f.mu.Unlock()
	assert.Equal(t, "Ana", got.Name, "name defaults to the account name")
	assert.Equal(t, "sem gelo", got.Note)
	assert.Equal(t, []orderItem{{ProductID: 5, Quantity: 3}, {ProductID: 7, Quantity: 1}}, got.Items)

	out, err = env.run(t, "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "#3")
	assert.Contains(t, out, "2x Suco de Laranja")
	assert.Contains(t, out, "13.00")
}

func TestOrderRejectsBadItemBeforeCallingAPI(t *testing.T) {
	f, srv := newFakeCantina(t)
	env := newCLIEnv(t, srv.URL)

	_, err := env.run(t, "order", "--item", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid item")
	f.mu.Lock()
	assert.Zero(t, f.n)
	f.mu.Unlock()
}
