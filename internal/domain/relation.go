// Package domain holds the core types of the purchase-dispatch orchestrator:
// relations, requests, products, edge servers/bots/tasks, and the enums that
// drive both state machines.
package domain

// CommitmentLevel is the relation-commitment state. Stored as the integer
// values below for on-disk stability — never renumber these.
type CommitmentLevel int

const (
	Uncommitted       CommitmentLevel = 0
	AddedToCart       CommitmentLevel = 1
	Purchased         CommitmentLevel = 2
	FailedToAddToCart CommitmentLevel = 3
	PushedToCart      CommitmentLevel = 4
	WaitingForInvite  CommitmentLevel = 5
)

func (c CommitmentLevel) String() string {
	switch c {
	case Uncommitted:
		return "UNCOMMITTED"
	case WaitingForInvite:
		return "WAITING_FOR_INVITE"
	case PushedToCart:
		return "PUSHED_TO_CART"
	case AddedToCart:
		return "ADDED_TO_CART"
	case Purchased:
		return "PURCHASED"
	case FailedToAddToCart:
		return "FAILED_TO_ADD_CART"
	default:
		return "UNKNOWN"
	}
}

// RequestKind discriminates the two relation/request tables this system
// reconciles against. A single parametric repository dispatches on this
// discriminator instead of duplicating code per kind.
type RequestKind string

const (
	UserRequestKind  RequestKind = "A" // matches the wire relation_type value
	PaidRequestKind  RequestKind = "C"
)

// Relation is one product on one user request — the unit the commitment
// state machine tracks.
type Relation struct {
	ID               int64
	Kind             RequestKind
	RequestID        int64
	ProductID        int64
	CommitmentLevel  CommitmentLevel
	Sent             bool
	TaskID           *string
	CommittedOnBot   *string
	ShoppingCartGID  *string
}

// SelectedItem is one relation surfaced by the selector for a dispatch
// cycle, already paired with its effective sub-id and owning user.
type SelectedItem struct {
	Kind                  RequestKind
	RelationID            int64
	RequestID             int64
	SubID                 string
	UserID                int64
	UserExternalAccountID string
}
