// Package authz decides whether an identity may perform an action. Decisions
// depend only on the identity and the target; nothing here touches storage.
package authz

import (
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
)

type Action uint8

const (
	ActionCreateListing Action = iota + 1
	ActionViewListings
	ActionViewListing
	ActionCreateRequest
	ActionCompleteListing
	ActionViewStats
)

func (a Action) String() string {
	switch a {
	case ActionCreateListing:
		return "create_listing"
	case ActionViewListings:
		return "view_listings"
	case ActionViewListing:
		return "view_listing"
	case ActionCreateRequest:
		return "create_request"
	case ActionCompleteListing:
		return "complete_listing"
	case ActionViewStats:
		return "view_stats"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Target describes the resource an action is aimed at. Zero fields mean the
// action has no specific target.
type Target struct {
	OwnerID   string
	ClaimedBy string
	// Status is the effective status at decision time.
	Status  domain.ListingStatus
	Subject string
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Err returns nil for an allowed decision. Denials always surface as
// ErrForbidden; the reason is kept for logs.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrForbidden, d.Reason)
}

func Authorize(id domain.Identity, action Action, target Target) Decision {
	if id.UserID == "" || !id.Role.Valid() {
		return deny("anonymous or unknown role")
	}

	switch action {
	case ActionCreateListing:
		return requireRole(id, domain.RoleDonor)
	case ActionViewListings:
		return allow()
	case ActionViewListing:
		return viewListing(id, target)
	case ActionCreateRequest:
		// availability is checked by the engine at claim time
		return requireRole(id, domain.RoleNGO)
	case ActionCompleteListing:
		if d := requireRole(id, domain.RoleDonor); !d.Allowed {
			return d
		}
		if target.OwnerID != id.UserID {
			return deny("user %s does not own the listing", id.UserID)
		}
		return allow()
	case ActionViewStats:
		if target.Subject != "" && target.Subject != id.UserID {
			return deny("stats of %s requested by %s", target.Subject, id.UserID)
		}
		return allow()
	default:
		return deny("unknown action %s", action)
	}
}

func requireRole(id domain.Identity, want domain.Role) Decision {
	if id.Role != want {
		return deny("role %s required, caller is %s", want, id.Role)
	}
	return allow()
}

func viewListing(id domain.Identity, target Target) Decision {
	switch id.Role {
	case domain.RoleDonor:
		if target.OwnerID != id.UserID {
			return deny("donor %s does not own the listing", id.UserID)
		}
		return allow()
	case domain.RoleNGO:
		if target.Status == domain.ListingAvailable || (target.ClaimedBy != "" && target.ClaimedBy == id.UserID) {
			return allow()
		}
		return deny("listing is %s and not claimed by %s", target.Status, id.UserID)
	default:
		return deny("unknown role")
	}
}

// Visible reports whether a listing belongs in the caller's listing feed:
// donors see their own listings in any state, ngos see what can be claimed.
func Visible(id domain.Identity, target Target) bool {
	switch id.Role {
	case domain.RoleDonor:
		return target.OwnerID == id.UserID
	case domain.RoleNGO:
		return target.Status == domain.ListingAvailable
	default:
		return false
	}
}
