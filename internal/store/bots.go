package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/timour/edgedispatch/internal/domain"
)

type botStore struct {
	pg *Postgres
}

// GetStandingByForCurrency mirrors
// original_source/controllers/edge.py's get_edge_bot_for_currency.
func (s *botStore) GetStandingByForCurrency(ctx context.Context, currency string, botType domain.EdgeBotType) (domain.EdgeBot, error) {
	query := `
		SELECT id, network_id, currency_code, bot_type, status
		FROM edge_bot
		WHERE currency_code = $1 AND bot_type = $2 AND status = $3
		LIMIT 1
	`

	var bot domain.EdgeBot
	err := s.pg.db.QueryRowContext(ctx, query, currency, int(botType), int(domain.StandingBy)).Scan(
		&bot.ID, &bot.NetworkID, &bot.CurrencyCode, &bot.BotType, &bot.Status,
	)
	if err == sql.ErrNoRows {
		return domain.EdgeBot{}, ErrNotFound
	}
	if err != nil {
		return domain.EdgeBot{}, fmt.Errorf("get standing-by bot for %s: %w", currency, err)
	}

	return bot, nil
}

func (s *botStore) GetByNetworkID(ctx context.Context, networkID string) (domain.EdgeBot, error) {
	query := `SELECT id, network_id, currency_code, bot_type, status FROM edge_bot WHERE network_id = $1`

	var bot domain.EdgeBot
	err := s.pg.db.QueryRowContext(ctx, query, networkID).Scan(
		&bot.ID, &bot.NetworkID, &bot.CurrencyCode, &bot.BotType, &bot.Status,
	)
	if err == sql.ErrNoRows {
		return domain.EdgeBot{}, ErrNotFound
	}
	if err != nil {
		return domain.EdgeBot{}, fmt.Errorf("get bot %s: %w", networkID, err)
	}

	return bot, nil
}

func (s *botStore) SetStatus(ctx context.Context, networkID string, status domain.EdgeBotStatus) error {
	query := `UPDATE edge_bot SET status = $1 WHERE network_id = $2`
	if _, err := s.pg.db.ExecContext(ctx, query, int(status), networkID); err != nil {
		return fmt.Errorf("set bot %s status: %w", networkID, err)
	}
	return nil
}

type serverStore struct {
	pg *Postgres
}

func (s *serverStore) GetEnabledForCurrency(ctx context.Context, currency string) (domain.EdgeServer, error) {
	query := `
		SELECT id, ip_address, currency_code, status, last_health_check
		FROM edge_server
		WHERE currency_code = $1 AND status = $2
		LIMIT 1
	`

	var (
		server     domain.EdgeServer
		lastHealth sql.NullTime
	)

	err := s.pg.db.QueryRowContext(ctx, query, currency, int(domain.EdgeServerEnabled)).Scan(
		&server.ID, &server.IPAddress, &server.CurrencyCode, &server.Status, &lastHealth,
	)
	if err == sql.ErrNoRows {
		return domain.EdgeServer{}, ErrNotFound
	}
	if err != nil {
		return domain.EdgeServer{}, fmt.Errorf("get enabled server for %s: %w", currency, err)
	}

	if lastHealth.Valid {
		server.LastHealthCheck = &lastHealth.Time
	}

	return server, nil
}

func (s *serverStore) UpdateHealthCheck(ctx context.Context, serverID int64) error {
	query := `UPDATE edge_server SET last_health_check = $1 WHERE id = $2`
	if _, err := s.pg.db.ExecContext(ctx, query, time.Now().UTC(), serverID); err != nil {
		return fmt.Errorf("update health check for server %d: %w", serverID, err)
	}
	return nil
}
