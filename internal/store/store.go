// Package store is the persistence gateway: typed queries and updates over
// relations, requests, products, edge servers/bots, and tasks, with every
// write invalidating the relevant cache keys. Grounded on
// stock/store_postgres.go's database/sql + lib/pq conventions.
package store

import (
	"context"
	"errors"

	"github.com/timour/edgedispatch/internal/domain"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("store: not found")

// RelationCandidate is one relation joined with its owning request and
// product, the shape the selector needs to apply its eligibility predicate
// without issuing N+1 queries.
type RelationCandidate struct {
	Relation domain.Relation
	Request  domain.Request
	Product  domain.Product
}

// RelationStore is the parametric repository over RequestKind: one
// interface, dispatched internally to the userrequest_relation or
// paidrequest_relation table by Kind, instead of two near-duplicate types.
type RelationStore interface {
	// ListCandidates returns every relation of kind at level, joined with its
	// request and product, for the selector to filter and group.
	ListCandidates(ctx context.Context, kind domain.RequestKind, level domain.CommitmentLevel) ([]RelationCandidate, error)

	Get(ctx context.Context, kind domain.RequestKind, id int64) (domain.Relation, error)

	// SetCommitment writes a relation's commitment level and optionally its
	// task_id/committed_on_bot/shopping_cart_gid, then purges its cache key.
	// Nil pointers leave the corresponding column untouched.
	SetCommitment(ctx context.Context, kind domain.RequestKind, id int64, level domain.CommitmentLevel, taskID, committedOnBot, shoppingCartGID *string) error

	// RollbackPushedRelations resets every relation bound to taskID (either
	// kind) back to UNCOMMITTED without touching task_id/committed_on_bot,
	// matching original_source's rollback_pushed_relations semantics.
	RollbackPushedRelations(ctx context.Context, taskID string) error

	// RollbackFailedRelations resets every relation bound to
	// shoppingCartGID (either kind) to UNCOMMITTED and clears task_id,
	// committed_on_bot, and shopping_cart_gid, matching
	// original_source's rollback_failed_relations semantics — a stronger
	// clear than RollbackPushedRelations.
	RollbackFailedRelations(ctx context.Context, shoppingCartGID string) error

	// MarkPurchasedByShoppingCartGID flips every relation bound to gid to
	// PURCHASED and sets relation.Sent, returning the affected rows so the
	// caller can cascade request-level assignment/accept.
	MarkPurchasedByShoppingCartGID(ctx context.Context, gid string) ([]domain.Relation, error)

	// CountUnsent returns how many relations of kind on requestID still have
	// sent==false, used to decide whether a request can be accepted.
	CountUnsent(ctx context.Context, kind domain.RequestKind, requestID int64) (int, error)
}

// RequestStore is read/mutate access to the request-intake system's
// requests, narrowed to what the orchestrator needs: it mutates requests
// only by assign(owner) and accept.
type RequestStore interface {
	Get(ctx context.Context, kind domain.RequestKind, id int64) (domain.Request, error)

	// Assign sets assigned_user_id to ownerID only if currently unassigned.
	Assign(ctx context.Context, kind domain.RequestKind, id int64, ownerID int64) error

	Accept(ctx context.Context, kind domain.RequestKind, id int64) error
}

// ProductStore is read-only access to the catalog, an external collaborator
// exposed here through a narrow query interface.
type ProductStore interface {
	Get(ctx context.Context, id int64) (domain.Product, error)
}

// BotStore is access to edge-bot rows.
type BotStore interface {
	// GetStandingByForCurrency returns a STANDING_BY bot of the given
	// currency/type, or ErrNotFound if none is available. The selector
	// only ever picks STANDING_BY bots.
	GetStandingByForCurrency(ctx context.Context, currency string, botType domain.EdgeBotType) (domain.EdgeBot, error)

	GetByNetworkID(ctx context.Context, networkID string) (domain.EdgeBot, error)

	SetStatus(ctx context.Context, networkID string, status domain.EdgeBotStatus) error
}

// ServerStore is access to edge-server rows.
type ServerStore interface {
	// GetEnabledForCurrency returns the ENABLED server for currency, or
	// ErrNotFound.
	GetEnabledForCurrency(ctx context.Context, currency string) (domain.EdgeServer, error)

	UpdateHealthCheck(ctx context.Context, serverID int64) error
}

// PendingTask is an EdgeTask joined with the data process_pending_tasks
// needs to poll it and react to its bot/server.
type PendingTask struct {
	Task             domain.EdgeTask
	ServerIPAddress  string
	BotNetworkID     string
}

// TaskStore is access to the task registry.
type TaskStore interface {
	// Create registers a new outstanding task. shoppingCartGID is non-nil
	// only for checkout_cart and get_external_link_from_transid tasks, so
	// the bitcoin settlement handler can recover which cart a
	// transaction/link task is settling.
	Create(ctx context.Context, serverID, botID int64, taskID string, taskName domain.TaskName, shoppingCartGID *string) error
	UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus) error
	ListPending(ctx context.Context) ([]PendingTask, error)
}

// Gateway bundles every store interface the orchestrator depends on, passed
// through as an explicit struct field instead of a global singleton
// controller.
type Gateway struct {
	Relations RelationStore
	Requests  RequestStore
	Products  ProductStore
	Bots      BotStore
	Servers   ServerStore
	Tasks     TaskStore
}
