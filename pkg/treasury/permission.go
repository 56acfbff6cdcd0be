package treasury

import "intranet-portal/pkg/identity"

// Action is a mutation a user may attempt on a transaction.
type Action string

const (
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// CanMutate decides whether actor may perform action on tx.
//
// Moderators may do anything. Members may create, and may edit or delete
// their own transactions while those are still pending. Anonymous actors
// may do nothing. tx may be nil for ActionCreate.
func CanMutate(actor identity.Identity, tx *Transaction, action Action) bool {
	if !actor.Authenticated() {
		return false
	}
	if actor.Role.IsModerator() {
		return true
	}

	switch action {
	case ActionCreate:
		return true
	case ActionEdit, ActionDelete:
		return tx != nil && tx.OwnedBy(actor.UserID) && tx.Status == StatusPending
	default:
		return false
	}
}

// Entry is a transaction annotated with what the current actor may do to it.
type Entry struct {
	Transaction
	CanEdit          bool `json:"can_edit"`
	CanDelete        bool `json:"can_delete"`
	CanApproveReject bool `json:"can_approve_reject"`
}

// Annotate computes the per-row permission flags for actor.
func Annotate(actor identity.Identity, tx Transaction) Entry {
	return Entry{
		Transaction: tx,
		CanEdit:     CanMutate(actor, &tx, ActionEdit),
		CanDelete:   CanMutate(actor, &tx, ActionDelete),
		CanApproveReject: tx.Status == StatusPending &&
			CanMutate(actor, &tx, ActionApprove),
	}
}
