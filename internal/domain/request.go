package domain

import "time"

// Request is the user-facing order a relation belongs to. The request-intake
// subsystem (users, paid/free requests) is an external collaborator; this
// is the narrow read/mutate surface the orchestrator needs against it.
type Request struct {
	ID                        int64
	Kind                      RequestKind
	Paid                      bool
	Authed                    bool
	Informed                  bool
	Visible                   bool
	Accepted                  bool
	AssignedUserID            *int64
	Promotion                 bool
	PaidBeforePromotionEnd    bool
	ExpirationDate            *time.Time
	UserID                    int64
	UserExternalAccountID     string
}

// IsAssignableTo reports whether the request can be assigned to owner —
// either unassigned, or already assigned to the same owner.
func (r *Request) IsAssignableTo(ownerID int64) bool {
	return r.AssignedUserID == nil || *r.AssignedUserID == ownerID
}

// EligibleForSelection implements the request-side half of selection:
// visible, not yet accepted, owned-or-unowned, and paid/authed depending on
// kind. useInformed is the legacy USE_INFORMED toggle: when set, a
// USER_REQUEST that is merely informed (but neither paid nor authed) is
// also eligible.
func (r *Request) EligibleForSelection(ownerID int64, useInformed bool) bool {
	if !r.Visible || r.Accepted || !r.IsAssignableTo(ownerID) {
		return false
	}

	switch r.Kind {
	case UserRequestKind:
		return r.Paid || r.Authed || (useInformed && r.Informed)
	case PaidRequestKind:
		return r.Authed
	default:
		return false
	}
}

// PromotionExpiredUninformed reports whether this request's promotion has
// lapsed without the user having been informed, given the current time.
// A user-request kind with an active promotion past its expiration and not
// yet informed is skipped by selection.
func (r *Request) PromotionExpiredUninformed(now time.Time) bool {
	return r.Promotion && r.ExpirationDate != nil && now.After(*r.ExpirationDate) && !r.Informed
}
