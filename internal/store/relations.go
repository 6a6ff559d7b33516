package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/timour/edgedispatch/internal/domain"
)

type relationStore struct {
	pg *Postgres
}

// ListCandidates joins relation/request/product for one kind at one
// commitment level, grounded on
// original_source/controllers/edge.py's get_uncommited_userrequest_relations
// / get_uncommited_paidrequest_relations queries (generalized across both
// levels and both kinds instead of hardcoding UNCOMMITTED).
func (s *relationStore) ListCandidates(ctx context.Context, kind domain.RequestKind, level domain.CommitmentLevel) ([]RelationCandidate, error) {
	relTable, err := relationTable(kind)
	if err != nil {
		return nil, err
	}
	reqTable, err := requestTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT
			r.id, r.request_id, r.product_id, r.commitment_level, r.sent,
			r.task_id, r.commited_on_bot, r.shopping_cart_gid,
			q.paid, q.authed, q.informed, q.visible, q.accepted, q.assigned_user_id,
			q.promotion, q.paid_before_promotion_end_date, q.expiration_date,
			q.user_id, q.user_external_account_id,
			p.sub_id, p.store_sub_id, p.price_currency, p.has_anticheat
		FROM %s r
		JOIN %s q ON q.id = r.request_id
		JOIN product p ON p.id = r.product_id
		WHERE r.commitment_level = $1 AND r.sent = false
	`, relTable, reqTable)

	rows, err := s.pg.db.QueryContext(ctx, query, int(level))
	if err != nil {
		return nil, fmt.Errorf("list %s candidates: %w", relTable, err)
	}
	defer rows.Close()

	var out []RelationCandidate
	for rows.Next() {
		var (
			c              RelationCandidate
			taskID         sql.NullString
			committedOnBot sql.NullString
			shoppingCart   sql.NullString
			assignedUser   sql.NullInt64
			expiration     sql.NullTime
		)

		if err := rows.Scan(
			&c.Relation.ID, &c.Relation.RequestID, &c.Relation.ProductID, &c.Relation.CommitmentLevel, &c.Relation.Sent,
			&taskID, &committedOnBot, &shoppingCart,
			&c.Request.Paid, &c.Request.Authed, &c.Request.Informed, &c.Request.Visible, &c.Request.Accepted, &assignedUser,
			&c.Request.Promotion, &c.Request.PaidBeforePromotionEnd, &expiration,
			&c.Request.UserID, &c.Request.UserExternalAccountID,
			&c.Product.SubID, &c.Product.StoreSubID, &c.Product.PriceCurrency, &c.Product.HasAnticheat,
		); err != nil {
			return nil, fmt.Errorf("scan %s candidate: %w", relTable, err)
		}

		c.Relation.Kind = kind
		c.Request.Kind = kind
		c.Request.ID = c.Relation.RequestID
		if taskID.Valid {
			c.Relation.TaskID = &taskID.String
		}
		if committedOnBot.Valid {
			c.Relation.CommittedOnBot = &committedOnBot.String
		}
		if shoppingCart.Valid {
			c.Relation.ShoppingCartGID = &shoppingCart.String
		}
		if assignedUser.Valid {
			c.Request.AssignedUserID = &assignedUser.Int64
		}
		if expiration.Valid {
			c.Request.ExpirationDate = &expiration.Time
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

func (s *relationStore) Get(ctx context.Context, kind domain.RequestKind, id int64) (domain.Relation, error) {
	table, err := relationTable(kind)
	if err != nil {
		return domain.Relation{}, err
	}

	query := fmt.Sprintf(`
		SELECT id, request_id, product_id, commitment_level, sent, task_id, commited_on_bot, shopping_cart_gid
		FROM %s WHERE id = $1
	`, table)

	var (
		rel            domain.Relation
		taskID         sql.NullString
		committedOnBot sql.NullString
		shoppingCart   sql.NullString
	)

	err = s.pg.db.QueryRowContext(ctx, query, id).Scan(
		&rel.ID, &rel.RequestID, &rel.ProductID, &rel.CommitmentLevel, &rel.Sent,
		&taskID, &committedOnBot, &shoppingCart,
	)
	if err == sql.ErrNoRows {
		return domain.Relation{}, ErrNotFound
	}
	if err != nil {
		return domain.Relation{}, fmt.Errorf("get %s %d: %w", table, id, err)
	}

	rel.Kind = kind
	if taskID.Valid {
		rel.TaskID = &taskID.String
	}
	if committedOnBot.Valid {
		rel.CommittedOnBot = &committedOnBot.String
	}
	if shoppingCart.Valid {
		rel.ShoppingCartGID = &shoppingCart.String
	}

	return rel, nil
}

// SetCommitment is the Go counterpart of
// original_source/controllers/edge.py's set_relation_commitment: a single
// conditional UPDATE — no multi-row transaction is required because the
// commitment field changes are idempotent under retry — followed by a
// cache purge of the relation's own key.
func (s *relationStore) SetCommitment(ctx context.Context, kind domain.RequestKind, id int64, level domain.CommitmentLevel, taskID, committedOnBot, shoppingCartGID *string) error {
	table, err := relationTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			commitment_level = $1,
			task_id = COALESCE($2, task_id),
			commited_on_bot = COALESCE($3, commited_on_bot),
			shopping_cart_gid = COALESCE($4, shopping_cart_gid)
		WHERE id = $5
	`, table)

	if _, err := s.pg.db.ExecContext(ctx, query, int(level), taskID, committedOnBot, shoppingCartGID, id); err != nil {
		return fmt.Errorf("set commitment on %s %d: %w", table, id, err)
	}

	return s.purgeCacheKey(ctx, kind, id)
}

func (s *relationStore) purgeCacheKey(ctx context.Context, kind domain.RequestKind, id int64) error {
	prefix, err := cacheKeyPrefix(kind)
	if err != nil {
		return err
	}
	return s.pg.invalidator.Purge(ctx, []string{fmt.Sprintf("%s/%d", prefix, id)})
}

// RollbackPushedRelations mirrors rollback_pushed_relations: it touches only
// commitment_level, across both relation tables, and purges the wildcard
// cache families.
func (s *relationStore) RollbackPushedRelations(ctx context.Context, taskID string) error {
	for _, table := range []string{"userrequest_relation", "paidrequest_relation"} {
		query := fmt.Sprintf(`UPDATE %s SET commitment_level = $1 WHERE task_id = $2`, table)
		if _, err := s.pg.db.ExecContext(ctx, query, int(domain.Uncommitted), taskID); err != nil {
			return fmt.Errorf("rollback pushed relations on %s: %w", table, err)
		}
	}

	return s.pg.invalidator.Purge(ctx, []string{"paidrequest/relation/*", "userrequest/relation/*"})
}

// RollbackFailedRelations mirrors rollback_failed_relations: it clears
// task_id, committed_on_bot, and shopping_cart_gid in addition to resetting
// commitment_level — a stronger clear than RollbackPushedRelations because
// these relations' cart association is now known-dead.
func (s *relationStore) RollbackFailedRelations(ctx context.Context, shoppingCartGID string) error {
	for _, table := range []string{"userrequest_relation", "paidrequest_relation"} {
		query := fmt.Sprintf(`
			UPDATE %s SET
				task_id = NULL,
				commited_on_bot = NULL,
				shopping_cart_gid = NULL,
				commitment_level = $1
			WHERE shopping_cart_gid = $2
		`, table)
		if _, err := s.pg.db.ExecContext(ctx, query, int(domain.Uncommitted), shoppingCartGID); err != nil {
			return fmt.Errorf("rollback failed relations on %s: %w", table, err)
		}
	}

	return s.pg.invalidator.Purge(ctx, []string{"paidrequest/relation/*", "userrequest/relation/*"})
}

// MarkPurchasedByShoppingCartGID implements the relation-side half of
// commit_purchased_relations.
func (s *relationStore) MarkPurchasedByShoppingCartGID(ctx context.Context, gid string) ([]domain.Relation, error) {
	var affected []domain.Relation

	for kind, table := range map[domain.RequestKind]string{
		domain.UserRequestKind: "userrequest_relation",
		domain.PaidRequestKind: "paidrequest_relation",
	} {
		query := fmt.Sprintf(`
			UPDATE %s SET commitment_level = $1, sent = true
			WHERE shopping_cart_gid = $2
			RETURNING id, request_id, product_id
		`, table)

		rows, err := s.pg.db.QueryContext(ctx, query, int(domain.Purchased), gid)
		if err != nil {
			return nil, fmt.Errorf("mark purchased on %s: %w", table, err)
		}

		for rows.Next() {
			var rel domain.Relation
			if err := rows.Scan(&rel.ID, &rel.RequestID, &rel.ProductID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan purchased %s: %w", table, err)
			}
			rel.Kind = kind
			rel.CommitmentLevel = domain.Purchased
			rel.Sent = true
			gidCopy := gid
			rel.ShoppingCartGID = &gidCopy
			affected = append(affected, rel)
		}
		closeErr := rows.Err()
		rows.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("iterate purchased %s: %w", table, closeErr)
		}
	}

	if err := s.pg.invalidator.Purge(ctx, []string{"paidrequest/relation/*", "userrequest/relation/*"}); err != nil {
		return nil, err
	}

	return affected, nil
}

func (s *relationStore) CountUnsent(ctx context.Context, kind domain.RequestKind, requestID int64) (int, error) {
	table, err := relationTable(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE request_id = $1 AND sent = false`, table)

	var count int
	if err := s.pg.db.QueryRowContext(ctx, query, requestID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unsent on %s: %w", table, err)
	}

	return count, nil
}
