package accessgrants

import "time"

type Scope string

const (
	ScopeChildRead        Scope = "child:read"
	ScopeChildEditProfile Scope = "child:edit_profile"
	ScopeMedsRead         Scope = "meds:read"
	ScopeMedsManage       Scope = "meds:manage"
	ScopeRecordsRead      Scope = "records:read"
	ScopeRecordsCreate    Scope = "records:create"
	ScopeRecordsStatus    Scope = "records:update_status"
)

type Status string

const (
	StatusInvited Status = "invited"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

type Grant struct {
	ID string

	ChildID string

	OwnerUserID   string // cuidador principal, quien comparte
	GranteeUserID string // cuidador delegado

	Scopes []Scope
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
