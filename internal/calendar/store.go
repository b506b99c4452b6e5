package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/oauth2"
)

// Querier is satisfied by *pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresTokenStore reads calendar_connections rows.
type PostgresTokenStore struct {
	db Querier
}

func NewPostgresTokenStore(db Querier) *PostgresTokenStore {
	if db == nil {
		panic("calendar: pgx pool required")
	}
	return &PostgresTokenStore{db: db}
}

func (s *PostgresTokenStore) Connection(ctx context.Context, providerID string) (*Connection, error) {
	var (
		conn    = Connection{ProviderID: providerID}
		access  string
		refresh string
		expiry  *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT calendar_id, access_token, COALESCE(refresh_token, ''), token_expiry
		FROM calendar_connections
		WHERE provider_id = $1 AND revoked_at IS NULL`, providerID,
	).Scan(&conn.CalendarID, &access, &refresh, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("calendar: load connection: %w", err)
	}
	conn.Token = &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	if expiry != nil {
		conn.Token.Expiry = *expiry
	}
	return &conn, nil
}

// MemoryTokenStore holds connections in process.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

func NewMemoryTokenStore(conns ...Connection) *MemoryTokenStore {
	s := &MemoryTokenStore{conns: make(map[string]Connection)}
	for _, c := range conns {
		s.conns[c.ProviderID] = c
	}
	return s
}

func (s *MemoryTokenStore) Connection(_ context.Context, providerID string) (*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[providerID]
	if !ok {
		return nil, ErrNotConnected
	}
	return &c, nil
}
