package pgx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolManager holds named *pgxpool.Pool's. The first pool added becomes
// the active one serving schema and query traffic.
type PoolManager struct {
	pools  map[string]*pgxpool.Pool
	active string
	mu     sync.RWMutex
}

// Pool is a named connection configuration.
type Pool struct {
	Config     *pgxpool.Config // Takes precedence over ConnString
	Name       string
	ConnString string // Used if Config is nil
}

var (
	ErrPoolNotFound      = errors.New("connection pool not found")
	ErrPoolAlreadyExists = errors.New("connection pool already exists")
)

func NewPoolManager() *PoolManager {
	return &PoolManager{pools: make(map[string]*pgxpool.Pool)}
}

// Add creates a pool from the configuration and verifies connectivity.
func (m *PoolManager) Add(ctx context.Context, cfg Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pools[cfg.Name]; ok {
		return ErrPoolAlreadyExists
	}

	pool, err := createPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("pgx: %w", err)
	}

	m.pools[cfg.Name] = pool
	if m.active == "" {
		m.active = cfg.Name
	}
	return nil
}

// Get returns a pool by name.
func (m *PoolManager) Get(name string) (*pgxpool.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool, ok := m.pools[name]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

// Active returns the active pool.
func (m *PoolManager) Active() (*pgxpool.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active == "" {
		return nil, fmt.Errorf("pgx: no active connection")
	}
	return m.pools[m.active], nil
}

// Close closes every pool.
func (m *PoolManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pools {
		p.Close()
	}
	m.pools = nil
	m.active = ""
}

func createPool(ctx context.Context, cfg Pool) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	switch {
	case cfg.Config != nil:
		pool, err = pgxpool.NewWithConfig(ctx, cfg.Config)
	case cfg.ConnString != "":
		pool, err = pgxpool.New(ctx, cfg.ConnString)
	default:
		return nil, errors.New("either Config or ConnString must be provided")
	}

	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping connection: %w", err)
	}

	return pool, nil
}
