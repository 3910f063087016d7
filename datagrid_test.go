package datagrid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nlstn/go-datagrid"
	"github.com/nlstn/go-datagrid/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t       *testing.T
	service *datagrid.Service
	cookie  *http.Cookie
}

func newService(t *testing.T, cfg datagrid.ServiceConfig) *datagrid.Service {
	t.Helper()
	if cfg.RefreshLatency == 0 {
		cfg.RefreshLatency = -1
	}
	s, err := datagrid.NewServiceWithConfig(cfg)
	require.NoError(t, err)
	return s
}

func (c *client) do(method, target, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		r.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.service.ServeHTTP(w, r)
	return w
}

func login(t *testing.T, s *datagrid.Service) *client {
	t.Helper()
	c := &client{t: t, service: s}
	w := c.do(http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"admin123"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "datagrid_session" {
			c.cookie = cookie
		}
	}
	require.NotNil(t, c.cookie, "login must set the session cookie")
	return c
}

type page struct {
	Rows       []datagrid.Product `json:"rows"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
	Selected   []string           `json:"selected"`
	Refreshing bool               `json:"refreshing"`
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) page {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestServiceRequiresSession(t *testing.T) {
	s := newService(t, datagrid.ServiceConfig{})
	c := &client{t: t, service: s}

	for _, path := range []string{"/products", "/events", "/dashboard", "/notifications", "/auth/me"} {
		w := c.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	assert.Zero(t, s.ActiveGrids())
}

func TestServiceLoginRejected(t *testing.T) {
	s := newService(t, datagrid.ServiceConfig{})
	c := &client{t: t, service: s}

	w := c.do(http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"InvalidCredentials"`)

	events, _, err := s.Notifications().Since("")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Invalid email or password", events[0].Message)
}

func TestServiceGridLifecycle(t *testing.T) {
	s := newService(t, datagrid.ServiceConfig{SampleSize: 25, PageSize: 10})
	c := login(t, s)

	p := decodePage(t, c.do(http.MethodGet, "/products", ""))
	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 3, p.TotalPages)
	assert.Len(t, p.Rows, 10)
	assert.Equal(t, 1, s.ActiveGrids())

	w := c.do(http.MethodPost, "/products",
		`{"name":"Standing Desk","category":"Home & Kitchen","price":"199.00","stock":3,"status":"active"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created datagrid.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = c.do(http.MethodGet, "/products/"+created.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	p = decodePage(t, c.do(http.MethodPost, "/products/$select", `{"id":"`+created.ID+`","checked":true}`))
	assert.Equal(t, []string{created.ID}, p.Selected)

	w = c.do(http.MethodDelete, "/products", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p = decodePage(t, c.do(http.MethodGet, "/products", ""))
	assert.Equal(t, 25, p.Total)
	assert.Empty(t, p.Selected)

	w = c.do(http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, s.ActiveGrids(), "logout releases the session grid")

	w = c.do(http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "revoked sessions are rejected")
}

func TestServiceGridsArePerSession(t *testing.T) {
	s := newService(t, datagrid.ServiceConfig{SampleSize: 5})
	alice := login(t, s)
	bob := login(t, s)

	w := alice.do(http.MethodDelete, "/products/"+record.FormatID(1000), "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	assert.Equal(t, 4, decodePage(t, alice.do(http.MethodGet, "/products", "")).Total)
	assert.Equal(t, 5, decodePage(t, bob.do(http.MethodGet, "/products", "")).Total)
	assert.Equal(t, 2, s.ActiveGrids())
}

func TestServiceRefreshUsesLoader(t *testing.T) {
	loader := datagrid.LoaderFunc(func(ctx context.Context) ([]datagrid.Product, error) {
		return record.GenerateSample(nil, 7), ctx.Err()
	})
	s := newService(t, datagrid.ServiceConfig{SampleSize: 3, Loader: loader})
	c := login(t, s)

	p := decodePage(t, c.do(http.MethodPost, "/products/$refresh", ""))
	assert.Equal(t, 7, p.Total)
	assert.False(t, p.Refreshing)
}

func TestServiceRefreshLoaderError(t *testing.T) {
	loader := datagrid.LoaderFunc(func(context.Context) ([]datagrid.Product, error) {
		return nil, &datagrid.Error{StatusCode: http.StatusServiceUnavailable, Code: "Upstream", Message: "Inventory source unavailable"}
	})
	s := newService(t, datagrid.ServiceConfig{SampleSize: 3, Loader: loader})
	c := login(t, s)

	w := c.do(http.MethodPost, "/products/$refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Inventory source unavailable")
	assert.Equal(t, 3, decodePage(t, c.do(http.MethodGet, "/products", "")).Total, "failed refresh keeps the records")
}

func TestServiceEventsAndDashboard(t *testing.T) {
	s := newService(t, datagrid.ServiceConfig{})
	c := login(t, s)

	w := c.do(http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var overview struct {
		Inventory struct {
			TotalProducts int `json:"totalProducts"`
		} `json:"inventory"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Equal(t, datagrid.DefaultSampleSize, overview.Inventory.TotalProducts)
}

func TestServiceNotificationFeed(t *testing.T) {
	s := newService(t, datagrid.ServiceConfig{})
	c := login(t, s)

	w := c.do(http.MethodGet, "/notifications", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var feed struct {
		Notifications []struct {
			Message string `json:"message"`
		} `json:"notifications"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	require.NotEmpty(t, feed.Notifications)
	assert.Equal(t, "Login successful!", feed.Notifications[len(feed.Notifications)-1].Message)
	assert.Equal(t, feed.Token, w.Header().Get("X-Notification-Token"))

	w = c.do(http.MethodGet, "/notifications?token="+feed.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"notifications":[]`)
}

func TestServiceDocument(t *testing.T) {
	s := newService(t, datagrid.ServiceConfig{})
	c := login(t, s)

	w := c.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	for _, name := range []string{"auth", "products", "events", "dashboard", "notifications"} {
		assert.Contains(t, w.Body.String(), `"`+name+`"`)
	}
}

func TestNewServiceWithConfigRejectsNegativeSizes(t *testing.T) {
	_, err := datagrid.NewServiceWithConfig(datagrid.ServiceConfig{PageSize: -1})
	assert.Error(t, err)
	_, err = datagrid.NewServiceWithConfig(datagrid.ServiceConfig{SampleSize: -1})
	assert.Error(t, err)
}

func TestServiceLoginWithoutHTTP(t *testing.T) {
	s := newService(t, datagrid.ServiceConfig{AdminEmail: "ops@example.com", AdminPassword: "s3cret"})
	_, err := s.Login(context.Background(), "ops@example.com", "s3cret")
	require.NoError(t, err)
	_, err = s.Login(context.Background(), "admin@example.com", "admin123")
	assert.True(t, errors.Is(err, datagrid.ErrInvalidCredentials))
}

func TestServiceReleasesExpiredSessions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newService(t, datagrid.ServiceConfig{
		SampleSize: 3,
		SessionTTL: time.Minute,
		Now:        func() time.Time { return now },
	})

	var first *client
	for i := 0; i < 50; i++ {
		c := login(t, s)
		if first == nil {
			first = c
		}
		decodePage(t, c.do(http.MethodGet, "/products", ""))
		now = now.Add(2 * time.Minute)
	}
	assert.Zero(t, s.ActiveGrids())

	w := first.do(http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c := login(t, s)
	decodePage(t, c.do(http.MethodGet, "/products", ""))
	assert.Equal(t, 1, s.ActiveGrids())
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.SweepSessions(context.Background()))
}
