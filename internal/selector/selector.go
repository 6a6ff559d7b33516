// Package selector implements the relation selector: the batch of relations
// ready for a pipeline stage, grouped by user then currency and
// deduplicated by effective sub-id, grounded on
// original_source/controllers/edge.py's get_uncommited_relations but
// restructured to a { user_id -> { currency -> [...] } } output shape
// instead of the original's flatter { currency -> [...] }.
package selector

import (
	"context"
	"time"

	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/store"
)

// Batch is the selector's output: per user, per currency, the deduplicated
// items ready for dispatch.
type Batch map[int64]map[string][]domain.SelectedItem

// Selector produces selection batches against a persistence gateway.
type Selector struct {
	gateway *store.Gateway
}

func New(gateway *store.Gateway) *Selector {
	return &Selector{gateway: gateway}
}

// kindIterationOrder iterates PAID_REQUEST before USER_REQUEST so that when
// the same user has the same effective sub-id pending under both kinds, the
// paid-kind relation wins the dedup.
var kindIterationOrder = []domain.RequestKind{domain.PaidRequestKind, domain.UserRequestKind}

// Select returns the batch of relations at level eligible for dispatch by
// ownerID, honoring anticheatPolicy's bot-pool segregation and the legacy
// useInformed toggle.
func (s *Selector) Select(ctx context.Context, ownerID int64, level domain.CommitmentLevel, anticheatPolicy bool, useInformed bool) (Batch, error) {
	batch := Batch{}
	seen := map[int64]map[string]bool{}
	now := time.Now()

	for _, kind := range kindIterationOrder {
		candidates, err := s.gateway.Relations.ListCandidates(ctx, kind, level)
		if err != nil {
			return nil, err
		}

		for _, c := range candidates {
			if !c.Request.EligibleForSelection(ownerID, useInformed) {
				continue
			}

			if kind == domain.UserRequestKind && c.Request.PromotionExpiredUninformed(now) {
				continue
			}

			subID := c.Product.EffectiveSubID()
			if subID == "" || c.Product.PriceCurrency == "" {
				continue
			}

			if c.Product.HasAnticheat != anticheatPolicy {
				continue
			}

			userID := c.Request.UserID
			if seen[userID] == nil {
				seen[userID] = map[string]bool{}
			}
			if seen[userID][subID] {
				continue
			}
			seen[userID][subID] = true

			if batch[userID] == nil {
				batch[userID] = map[string][]domain.SelectedItem{}
			}

			batch[userID][c.Product.PriceCurrency] = append(batch[userID][c.Product.PriceCurrency], domain.SelectedItem{
				Kind:                  kind,
				RelationID:            c.Relation.ID,
				RequestID:             c.Relation.RequestID,
				SubID:                 subID,
				UserID:                userID,
				UserExternalAccountID: c.Request.UserExternalAccountID,
			})
		}
	}

	return batch, nil
}
