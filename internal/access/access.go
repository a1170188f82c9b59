// Package access decides whether an actor may perform a mutating action on
// claims, notes and documents. Evaluate is pure: it looks only at the
// actor, the action and the optional subject state it is given.
package access

import (
	"claimdesk/internal/identity/models"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/requestcontext"
)

// Action names a gated operation.
type Action string

const (
	ActionRead              Action = "read"
	ActionCreateClaim       Action = "create_claim"
	ActionEditClaim         Action = "edit_claim"
	ActionDeleteClaim       Action = "delete_claim"
	ActionAssignClaim       Action = "assign_claim"
	ActionUpdateClaimStatus Action = "update_claim_status"
	ActionCreateNote        Action = "create_note"
	ActionEditNote          Action = "edit_note"
	ActionDeleteNote        Action = "delete_note"
	ActionCreateDocument    Action = "create_document"
	ActionEditDocument      Action = "edit_document"
	ActionDeleteDocument    Action = "delete_document"
	ActionManageUsers       Action = "manage_users"
	ActionManagePolicy      Action = "manage_policy"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID id.UserID
	Role   models.Role
}

// Subject carries the object state some rules depend on. The zero value
// means no object is involved.
type Subject struct {
	// ClaimReported is true when the claim is in the reported status.
	ClaimReported bool
	// OwnerID is the author of a note or the uploader of a document.
	OwnerID id.UserID
}

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed bool
	Reason  string
}

type roleSet map[models.Role]bool

func roles(rs ...models.Role) roleSet {
	set := make(roleSet, len(rs))
	for _, r := range rs {
		set[r] = true
	}
	return set
}

var (
	claimHandlers   = roles(models.RoleAdmin, models.RoleManager, models.RoleSeniorAdjuster, models.RoleAdjuster)
	reportedEditors = roles(models.RoleCallCenter, models.RoleAdmin, models.RoleManager)
	supervisors     = roles(models.RoleAdmin, models.RoleManager)
	ownerEditors    = roles(models.RoleAdjuster, models.RoleSeniorAdjuster)
)

// roleRules gate actions that depend on the role alone.
var roleRules = map[Action]roleSet{
	ActionCreateClaim:       roles(models.RoleCallCenter, models.RoleManager, models.RoleAdmin),
	ActionAssignClaim:       roles(models.RoleAdmin, models.RoleManager, models.RoleCallCenter),
	ActionUpdateClaimStatus: claimHandlers,
	ActionCreateNote:        claimHandlers,
	ActionCreateDocument:    claimHandlers,
	ActionManageUsers:       roles(models.RoleAdmin),
	ActionManagePolicy:      supervisors,
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Evaluate returns the decision for actor performing action on subject.
func Evaluate(actor Actor, action Action, subject Subject) Decision {
	if action == ActionRead {
		return allow()
	}
	if !actor.Role.IsValid() {
		return deny("unknown role")
	}

	if set, ok := roleRules[action]; ok {
		if set[actor.Role] {
			return allow()
		}
		return deny("role not permitted")
	}

	switch action {
	case ActionEditClaim, ActionDeleteClaim:
		set := claimHandlers
		if subject.ClaimReported {
			set = reportedEditors
		}
		if set[actor.Role] {
			return allow()
		}
		return deny("role not permitted for claim status")

	case ActionEditNote, ActionDeleteNote, ActionEditDocument, ActionDeleteDocument:
		if supervisors[actor.Role] {
			return allow()
		}
		if ownerEditors[actor.Role] && !actor.UserID.IsNil() && actor.UserID == subject.OwnerID {
			return allow()
		}
		return deny("only the owner or a supervisor may change this")
	}
	return deny("unknown action")
}

// Authorize is Evaluate returning a Forbidden error on deny.
func Authorize(actor Actor, action Action, subject Subject) error {
	if d := Evaluate(actor, action, subject); !d.Allowed {
		return dErrors.Newf(dErrors.CodeForbidden, "not allowed to %s: %s", action, d.Reason)
	}
	return nil
}

// ActorFrom builds an Actor from the request principal. An unknown role
// string yields an actor every mutating rule denies.
func ActorFrom(p requestcontext.AuthPrincipal) Actor {
	return Actor{UserID: p.UserID, Role: models.Role(p.Role)}
}
