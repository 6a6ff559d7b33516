package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/timour/edgedispatch/internal/domain"
)

type requestStore struct {
	pg *Postgres
}

func (s *requestStore) Get(ctx context.Context, kind domain.RequestKind, id int64) (domain.Request, error) {
	table, err := requestTable(kind)
	if err != nil {
		return domain.Request{}, err
	}

	query := fmt.Sprintf(`
		SELECT paid, authed, informed, visible, accepted, assigned_user_id,
			promotion, paid_before_promotion_end_date, expiration_date,
			user_id, user_external_account_id
		FROM %s WHERE id = $1
	`, table)

	var (
		req          domain.Request
		assignedUser sql.NullInt64
		expiration   sql.NullTime
	)

	err = s.pg.db.QueryRowContext(ctx, query, id).Scan(
		&req.Paid, &req.Authed, &req.Informed, &req.Visible, &req.Accepted, &assignedUser,
		&req.Promotion, &req.PaidBeforePromotionEnd, &expiration,
		&req.UserID, &req.UserExternalAccountID,
	)
	if err == sql.ErrNoRows {
		return domain.Request{}, ErrNotFound
	}
	if err != nil {
		return domain.Request{}, fmt.Errorf("get %s %d: %w", table, id, err)
	}

	req.ID = id
	req.Kind = kind
	if assignedUser.Valid {
		req.AssignedUserID = &assignedUser.Int64
	}
	if expiration.Valid {
		req.ExpirationDate = &expiration.Time
	}

	return req, nil
}

// Assign is a conditional single-statement UPDATE: it only takes effect
// while the request is unassigned, matching original_source's
// userrequest.UserRequest().assign / paidrequest.PaidRequest().assign being
// called unconditionally but meaning "first owner wins" in practice.
func (s *requestStore) Assign(ctx context.Context, kind domain.RequestKind, id int64, ownerID int64) error {
	table, err := requestTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET assigned_user_id = $1 WHERE id = $2 AND assigned_user_id IS NULL`, table)
	if _, err := s.pg.db.ExecContext(ctx, query, ownerID, id); err != nil {
		return fmt.Errorf("assign %s %d: %w", table, id, err)
	}

	return nil
}

func (s *requestStore) Accept(ctx context.Context, kind domain.RequestKind, id int64) error {
	table, err := requestTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET accepted = true WHERE id = $1`, table)
	if _, err := s.pg.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("accept %s %d: %w", table, id, err)
	}

	return nil
}
