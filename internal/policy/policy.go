// Package policy maps user types to the capabilities they hold.
package policy

import "github.com/noah-isme/room-reservation-api/internal/models"

// Capability is a permission checked by services and RBAC middleware.
type Capability string

const (
	Read          Capability = "read"
	Create        Capability = "create"
	UpdateOwn     Capability = "update-own"
	UpdateAny     Capability = "update-any"
	DeleteOwn     Capability = "delete-own"
	DeleteAny     Capability = "delete-any"
	ManageRooms   Capability = "manage-rooms"
	ManageUsers   Capability = "manage-users"
	ManageNotices Capability = "manage-notices"
	BlockRooms    Capability = "block-rooms"
	Export        Capability = "export"
)

var member = []Capability{Read, Create, UpdateOwn, DeleteOwn}

var table = map[models.UserType]map[Capability]struct{}{
	models.UserTypeAdmin: set(Read, Create, UpdateOwn, UpdateAny, DeleteOwn, DeleteAny,
		ManageRooms, ManageUsers, ManageNotices, BlockRooms, Export),
	models.UserTypeFaculty:       set(member...),
	models.UserTypePostgraduate:  set(member...),
	models.UserTypeUndergraduate: set(member...),
}

func set(caps ...Capability) map[Capability]struct{} {
	out := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		out[c] = struct{}{}
	}
	return out
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID       string
	UserType models.UserType
}

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool {
	return a.UserType == models.UserTypeAdmin
}

// Has reports whether userType holds capability c. Unknown types hold nothing.
func Has(userType models.UserType, c Capability) bool {
	_, ok := table[userType][c]
	return ok
}

// Can is Has for an actor.
func (a Actor) Can(c Capability) bool {
	return Has(a.UserType, c)
}

// CanModify allows the owner or anyone holding update-any.
func CanModify(actor Actor, ownerID string) bool {
	if actor.ID != "" && actor.ID == ownerID && actor.Can(UpdateOwn) {
		return true
	}
	return actor.Can(UpdateAny)
}

// CanDelete allows the owner or anyone holding delete-any.
func CanDelete(actor Actor, ownerID string) bool {
	if actor.ID != "" && actor.ID == ownerID && actor.Can(DeleteOwn) {
		return true
	}
	return actor.Can(DeleteAny)
}
