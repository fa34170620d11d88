package server

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/mockupwarp/internal/config"
	"github.com/ivlev/mockupwarp/internal/middleware"
	"github.com/ivlev/mockupwarp/internal/panel"
	"github.com/ivlev/mockupwarp/internal/system"
	"github.com/ivlev/mockupwarp/internal/template"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	cfg        config.ServerConfig
	catalog    *template.Catalog
	detector   panel.Detector
	store      *Store
	handlers   []handler

	// ctx lives until Shutdown and stops background work started by Run.
	ctx    context.Context
	cancel context.CancelFunc
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.catalog == nil {
		return nil, fmt.Errorf("template catalog is required")
	}
	if server.validator == nil {
		server.validator = config.NewValidator()
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, rateConfig(server.cfg))
	}
	if server.store == nil {
		server.store = NewStore(server.cfg.SessionTTL)
	}
	if server.detector == nil {
		server.detector = panel.NewNativeDetector(panel.DefaultParams())
	}
	server.ctx, server.cancel = context.WithCancel(context.Background())

	return server, nil
}

func WithConfig(cfg config.ServerConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithMiddleware needs WithLogger and WithConfig applied first.
func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, rateConfig(s.cfg))
		return nil
	}
}

func rateConfig(cfg config.ServerConfig) middleware.RateConfig {
	return middleware.RateConfig{
		Rate:      cfg.RateLimit,
		Burst:     cfg.RateBurst,
		HeavyCost: cfg.RateHeavy,
		IdleTTL:   cfg.RateIdleTTL,
	}
}

func WithCatalog(catalog *template.Catalog) ServerOption {
	return func(s *Server) error {
		s.catalog = catalog
		return nil
	}
}

// WithCatalogFile loads the catalog from the configured path.
func WithCatalogFile() ServerOption {
	return func(s *Server) error {
		catalog, err := template.LoadCatalog(s.cfg.CatalogPath)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to load template catalog: %v", err)
			}
			return fmt.Errorf("failed to load catalog %s: %w", s.cfg.CatalogPath, err)
		}
		s.catalog = catalog
		return nil
	}
}

func WithDetector(d panel.Detector) ServerOption {
	return func(s *Server) error {
		s.detector = d
		return nil
	}
}

// WithConfiguredDetector builds the detector from DETECTOR, DETECT_PRESET
// and DETECT_PARAMS.
func WithConfiguredDetector() ServerOption {
	return func(s *Server) error {
		params, err := config.DetectParams(s.cfg.DetectPreset, s.cfg.DetectParams)
		if err != nil {
			return fmt.Errorf("detector params: %w", err)
		}
		d, err := panel.NewDetector(s.cfg.Detector, params)
		if err != nil {
			return fmt.Errorf("failed to create detector: %w", err)
		}
		if nd, ok := d.(*panel.NativeDetector); ok && s.log != nil {
			nd.Log = s.log
		}
		s.detector = d
		return nil
	}
}

func WithStore(store *Store) ServerOption {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

func (s *Server) App() *fiber.App {
	return s.engine
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) RegisterHandler() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.engine.Use(s.middleware.RateLimit)

	mockupHandlers := NewMockupHandler(s.log, s.validator, s.middleware, s.catalog, s.store, s.detector, s.cfg)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, mockupHandlers)

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	go s.store.Run(s.ctx, time.Minute, func(n int) {
		s.log.WithField("expired", n).Info("Sessions evicted")
	})

	port := s.cfg.Port
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancel()
	return s.engine.ShutdownWithTimeout(timeout)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":  "Server is Healthy!",
			"sessions": s.store.Len(),
			"usage":    system.SampleUsage().String(),
		})
	})
}
