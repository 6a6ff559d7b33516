package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/timour/edgedispatch/internal/cache"
	"github.com/timour/edgedispatch/internal/domain"
)

// Postgres is the shared connection + cache invalidator every Postgres-backed
// store implementation in this package is built from.
type Postgres struct {
	db         *sql.DB
	invalidator cache.Invalidator
}

// Open connects to connectionString and verifies the connection, mirroring
// stock/store_postgres.go's NewPostgresStore.
func Open(connectionString string, invalidator cache.Invalidator) (*Postgres, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{db: db, invalidator: invalidator}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// NewGateway builds a Gateway backed entirely by this Postgres connection.
func (p *Postgres) NewGateway() *Gateway {
	return &Gateway{
		Relations: &relationStore{pg: p},
		Requests:  &requestStore{pg: p},
		Products:  &productStore{pg: p},
		Bots:      &botStore{pg: p},
		Servers:   &serverStore{pg: p},
		Tasks:     &taskStore{pg: p},
	}
}

// relationTable maps a RequestKind to the table the parametric repository
// dispatches to.
func relationTable(kind domain.RequestKind) (string, error) {
	switch kind {
	case domain.UserRequestKind:
		return "userrequest_relation", nil
	case domain.PaidRequestKind:
		return "paidrequest_relation", nil
	default:
		return "", fmt.Errorf("unknown request kind %q", kind)
	}
}

func requestTable(kind domain.RequestKind) (string, error) {
	switch kind {
	case domain.UserRequestKind:
		return "userrequest", nil
	case domain.PaidRequestKind:
		return "paidrequest", nil
	default:
		return "", fmt.Errorf("unknown request kind %q", kind)
	}
}

func cacheKeyPrefix(kind domain.RequestKind) (string, error) {
	switch kind {
	case domain.UserRequestKind:
		return "userrequest/relation", nil
	case domain.PaidRequestKind:
		return "paidrequest/relation", nil
	default:
		return "", fmt.Errorf("unknown request kind %q", kind)
	}
}
