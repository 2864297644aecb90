package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/user-guard/internal/config"
	"github.com/spec-kit/user-guard/internal/domain"
	"github.com/spec-kit/user-guard/internal/repository"
)

var (
	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("store closed")
	// ErrStoreNotConfigured is returned by every call on a store built
	// without a driver.
	ErrStoreNotConfigured = errors.New("DATABASE_URL is not configured")
)

type backend struct {
	users repository.UserRepository
	ping  func(ctx context.Context) error
	close func()
}

type opener func(ctx context.Context) (*backend, error)

// Store is the process-wide credential store handle. The connection is
// established on first use and shared afterwards; a failed attempt is not
// cached, so the next request tries again.
type Store struct {
	open   opener
	logger *zap.Logger

	mu      sync.Mutex
	current *backend
	closed  bool
}

// NewStore selects a backend from cfg.Driver. Nothing is dialed until the
// first Connect or repository call.
func NewStore(cfg config.StoreConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger}

	switch cfg.Driver {
	case config.DriverPostgres:
		s.open = postgresOpener(cfg, logger)
	case config.DriverMySQL, config.DriverSQLite:
		s.open = gormOpener(cfg, logger)
	case config.DriverMemory:
		logger.Warn("STORE_DRIVER=memory; users live only as long as this process")
		mem := repository.NewMemoryUserRepository()
		s.open = func(context.Context) (*backend, error) {
			return &backend{users: mem}, nil
		}
	default:
		err := ErrStoreNotConfigured
		if cfg.Driver != "" {
			err = fmt.Errorf("%w: unsupported driver %q", ErrStoreNotConfigured, cfg.Driver)
		}
		s.open = func(context.Context) (*backend, error) {
			return nil, err
		}
	}
	return s
}

func newStoreWithOpener(open opener, logger *zap.Logger) *Store {
	return &Store{open: open, logger: logger}
}

// Connect establishes the backend if it is not connected yet. Concurrent
// callers wait for the same attempt.
func (s *Store) Connect(ctx context.Context) error {
	_, err := s.backend(ctx)
	return err
}

func (s *Store) backend(ctx context.Context) (*backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.current != nil {
		return s.current, nil
	}

	b, err := s.open(ctx)
	if err != nil {
		s.logger.Error("store connection failed", zap.Error(err))
		return nil, fmt.Errorf("connect store: %w", err)
	}
	s.current = b
	return b, nil
}

// Connected reports whether a backend is currently established.
func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Users returns a repository that connects on demand.
func (s *Store) Users() repository.UserRepository {
	return &lazyUserRepository{store: s}
}

// Ping connects if needed and checks the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	b, err := s.backend(ctx)
	if err != nil {
		return err
	}
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the backend. Further calls fail with ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.close != nil {
		s.current.close()
	}
	s.current = nil
	s.closed = true
}

type lazyUserRepository struct {
	store *Store
}

func (r *lazyUserRepository) Create(ctx context.Context, user *domain.User) error {
	b, err := r.store.backend(ctx)
	if err != nil {
		return err
	}
	return b.users.Create(ctx, user)
}

func (r *lazyUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	b, err := r.store.backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.users.GetByID(ctx, id)
}

func (r *lazyUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	b, err := r.store.backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.users.GetByEmail(ctx, email)
}

func postgresOpener(cfg config.StoreConfig, logger *zap.Logger) opener {
	return func(ctx context.Context) (*backend, error) {
		pg, err := NewPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			if err := RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return &backend{
			users: pg.Users(),
			ping:  pg.Ping,
			close: pg.Close,
		}, nil
	}
}

func gormOpener(cfg config.StoreConfig, logger *zap.Logger) opener {
	return func(ctx context.Context) (*backend, error) {
		db, err := OpenGorm(cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		if cfg.RunMigrations {
			if err := repository.AutoMigrateUsers(db.WithContext(ctx)); err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		logger.Info("connected to store", zap.String("driver", cfg.Driver))
		return &backend{
			users: repository.NewGormUserRepository(db),
			ping:  sqlDB.PingContext,
			close: func() { _ = sqlDB.Close() },
		}, nil
	}
}
