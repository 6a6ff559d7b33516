package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/timour/edgedispatch/internal/domain"
)

type productStore struct {
	pg *Postgres
}

func (s *productStore) Get(ctx context.Context, id int64) (domain.Product, error) {
	query := `SELECT id, sub_id, store_sub_id, price_currency, has_anticheat FROM product WHERE id = $1`

	var (
		p        domain.Product
		subID    sql.NullString
		storeSub sql.NullString
		currency sql.NullString
	)

	err := s.pg.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &subID, &storeSub, &currency, &p.HasAnticheat)
	if err == sql.ErrNoRows {
		return domain.Product{}, ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}

	p.SubID = subID.String
	p.StoreSubID = storeSub.String
	p.PriceCurrency = currency.String

	return p, nil
}
