// Package datagrid provides an authenticated admin-panel backend built around
// an in-memory product grid. Each session gets its own grid with search,
// sorting, pagination, page-scoped selection and validated editing, plus a
// shared event calendar, dashboard metrics and a notification feed.
package datagrid

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/nlstn/go-datagrid/internal/auth"
	"github.com/nlstn/go-datagrid/internal/calendar"
	"github.com/nlstn/go-datagrid/internal/handlers"
	"github.com/nlstn/go-datagrid/internal/kvstore"
	"github.com/nlstn/go-datagrid/internal/notify"
	"github.com/nlstn/go-datagrid/internal/observability"
	"github.com/nlstn/go-datagrid/internal/record"
	servrouter "github.com/nlstn/go-datagrid/internal/service/router"
	servruntime "github.com/nlstn/go-datagrid/internal/service/runtime"
	"github.com/nlstn/go-datagrid/internal/service/sessions"
	"github.com/nlstn/go-datagrid/internal/table"
)

// Product is a row of the product grid.
type Product = record.Product

// Loader produces the replacement record set for a grid refresh.
type Loader = table.Loader

// LoaderFunc adapts a function to Loader.
type LoaderFunc = table.LoaderFunc

// Resource names served by the service.
const (
	ResourceAuth          = "auth"
	ResourceProducts      = "products"
	ResourceEvents        = "events"
	ResourceDashboard     = "dashboard"
	ResourceNotifications = "notifications"
)

// Defaults applied to a zero ServiceConfig.
const (
	DefaultPageSize             = 10
	DefaultSampleSize           = table.DefaultSampleSize
	DefaultRefreshLatency       = time.Second
	DefaultNotificationCapacity = 100
	DefaultAdminEmail           = "admin@example.com"
	DefaultAdminPassword        = "admin123"
)

// ServiceConfig controls optional service behaviours. The zero value serves
// the demo account admin@example.com / admin123 from an in-memory session
// store with a random signing secret.
type ServiceConfig struct {
	// AdminEmail and AdminPassword are the only accepted credentials.
	AdminEmail    string
	AdminPassword string
	// Secret signs session tokens. A random secret is generated when empty,
	// which invalidates sessions on restart.
	Secret     []byte
	SessionTTL time.Duration
	// SessionStore persists sessions. Defaults to an in-memory store.
	SessionStore kvstore.Store

	// SampleSize is the number of products a new session starts with.
	SampleSize int
	PageSize   int
	// RefreshLatency simulates the network delay of the default loader.
	// A negative value disables the delay.
	RefreshLatency time.Duration
	// Loader replaces the sample generator used by refresh.
	Loader Loader

	// NotificationCapacity bounds the notification history.
	NotificationCapacity int
	// Events seeds the calendar instead of the demo events.
	Events []calendar.Event

	// Now is the clock used for sessions and the calendar.
	Now func() time.Time

	Observability *observability.Config
}

// Service is the datagrid HTTP service.
type Service struct {
	// cfg holds the normalized configuration
	cfg ServiceConfig
	// authenticator issues and verifies sessions
	authenticator *auth.Authenticator
	// notifications is the feed shared by every component
	notifications *notify.Log
	// calendar holds the shared events
	calendar *calendar.Manager
	// grids maps sessions to their product grids
	grids *sessions.Registry

	authHandler         *handlers.AuthHandler
	productHandler      *handlers.ProductHandler
	eventHandler        *handlers.EventHandler
	dashboardHandler    *handlers.DashboardHandler
	notificationHandler *handlers.NotificationHandler

	// router dispatches requests to the resource handlers
	router *servrouter.Router
	// runtime wraps the router with the middleware chain
	runtime *servruntime.Runtime
	// logger is used for structured logging throughout the service
	logger        *slog.Logger
	observability *observability.Config
}

// NewService creates a service with the default configuration.
func NewService() *Service {
	service, err := NewServiceWithConfig(ServiceConfig{})
	if err != nil {
		panic(err)
	}
	return service
}

// NewServiceWithConfig creates a service with the given configuration.
func NewServiceWithConfig(cfg ServiceConfig) (*Service, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	authenticator, err := auth.New(auth.Config{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Secret:   cfg.Secret,
		TTL:      cfg.SessionTTL,
		Now:      cfg.Now,
	}, cfg.SessionStore)
	if err != nil {
		return nil, fmt.Errorf("datagrid: %w", err)
	}

	notifications := notify.NewLog(cfg.NotificationCapacity)
	calOpts := []calendar.Option{
		calendar.WithClock(cfg.Now),
		calendar.WithNotifier(notifications),
		calendar.WithLogger(logger),
	}
	if cfg.Events != nil {
		calOpts = append(calOpts, calendar.WithEvents(cfg.Events))
	}

	s := &Service{
		cfg:           cfg,
		authenticator: authenticator,
		notifications: notifications,
		calendar:      calendar.NewManager(calOpts...),
		logger:        logger,
	}
	s.grids = sessions.New(s.newGrid, logger,
		sessions.WithClock(cfg.Now),
		sessions.WithExpireFunc(s.expireSession),
	)

	s.authHandler = handlers.NewAuthHandler(authenticator, notifications, s.endSession)
	s.productHandler = handlers.NewProductHandler(s.grids)
	s.eventHandler = handlers.NewEventHandler(s.calendar)
	s.dashboardHandler = handlers.NewDashboardHandler(s.grids)
	s.notificationHandler = handlers.NewNotificationHandler(notifications)

	s.router = servrouter.NewRouter(logger)
	s.router.Handle(ResourceAuth, s.authHandler)
	s.router.Handle(ResourceProducts, s.productHandler)
	s.router.Handle(ResourceEvents, s.eventHandler)
	s.router.Handle(ResourceDashboard, s.dashboardHandler)
	s.router.Handle(ResourceNotifications, s.notificationHandler)

	s.runtime = servruntime.New(s.router, logger)
	s.runtime.SetAuthenticator(authenticator, handlers.IsPublic)

	if cfg.Observability != nil {
		s.SetObservability(cfg.Observability)
	}
	return s, nil
}

func normalize(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.AdminEmail == "" && cfg.AdminPassword == "" {
		cfg.AdminEmail = DefaultAdminEmail
		cfg.AdminPassword = DefaultAdminPassword
	}
	if len(cfg.Secret) == 0 {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return cfg, fmt.Errorf("datagrid: generate signing secret: %w", err)
		}
		cfg.Secret = secret
	}
	if cfg.SessionStore == nil {
		cfg.SessionStore = kvstore.NewMemory()
	}
	if cfg.SampleSize < 0 {
		return cfg, fmt.Errorf("datagrid: sample size cannot be negative")
	}
	if cfg.SampleSize == 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.PageSize < 0 {
		return cfg, fmt.Errorf("datagrid: page size cannot be negative")
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	switch {
	case cfg.RefreshLatency == 0:
		cfg.RefreshLatency = DefaultRefreshLatency
	case cfg.RefreshLatency < 0:
		cfg.RefreshLatency = 0
	}
	if cfg.NotificationCapacity <= 0 {
		cfg.NotificationCapacity = DefaultNotificationCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Loader == nil {
		cfg.Loader = table.SampleLoader{Count: cfg.SampleSize, Latency: cfg.RefreshLatency}
	}
	return cfg, nil
}

// newGrid builds the product grid for a session that has none yet.
func (s *Service) newGrid(_ context.Context, sess auth.Session) (*table.Table, error) {
	tbl, err := table.New(record.GenerateSample(nil, s.cfg.SampleSize),
		table.WithLoader(s.cfg.Loader),
		table.WithNotifier(s.notifications),
		table.WithLogger(s.logger.With(observability.LogFieldSessionID, sess.ID)),
		table.WithPageSize(s.cfg.PageSize),
	)
	if err != nil {
		return nil, err
	}
	return tbl, nil
}

// endSession releases the grid of a session that logged out.
func (s *Service) endSession(ctx context.Context, sess auth.Session) {
	if s.grids.Drop(sess.ID) {
		s.logger.DebugContext(ctx, "released session grid", observability.LogFieldSessionID, sess.ID)
	}
}

// expireSession revokes the stored session whose grid was evicted on expiry.
func (s *Service) expireSession(ctx context.Context, sess auth.Session) {
	if err := s.authenticator.Revoke(ctx, sess.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to revoke expired session", observability.LogFieldSessionID, sess.ID, "error", err)
	}
}

// SweepSessions releases the grids of expired sessions and returns how many
// were released. Expired grids are also released lazily on later requests.
func (s *Service) SweepSessions(ctx context.Context) int {
	return s.grids.Sweep(ctx)
}

// SetLogger sets the logger for the service and every component.
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
	s.router.SetLogger(logger)
	if s.runtime != nil {
		s.runtime.SetLogger(logger)
	}
	for _, h := range s.components() {
		h.SetLogger(logger)
	}
}

// SetObservability enables tracing, metrics and Server-Timing for every
// request the service handles.
func (s *Service) SetObservability(cfg *observability.Config) {
	s.observability = cfg
	s.runtime.SetObservability(cfg)
	for _, h := range s.components() {
		h.SetObservability(cfg)
	}
}

type component interface {
	SetLogger(*slog.Logger)
	SetObservability(*observability.Config)
}

func (s *Service) components() []component {
	return []component{
		s.authHandler,
		s.productHandler,
		s.eventHandler,
		s.dashboardHandler,
		s.notificationHandler,
	}
}

// Login opens a session for the given credentials without going through HTTP.
func (s *Service) Login(ctx context.Context, email, password string) (auth.Session, error) {
	return s.authenticator.Login(ctx, email, password)
}

// Notifications returns the notification feed.
func (s *Service) Notifications() *notify.Log {
	return s.notifications
}

// Calendar returns the shared event calendar.
func (s *Service) Calendar() *calendar.Manager {
	return s.calendar
}

// ActiveGrids reports how many sessions currently hold a grid.
func (s *Service) ActiveGrids() int {
	return s.grids.Len()
}
