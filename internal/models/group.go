// internal/models/group.go
package models

// Group member role and status values used by the fan-out endpoint.
const (
	GroupRoleAdmin    = "admin"
	GroupRoleMember   = "member"
	GroupMemberActive = "active"
)

// StudyGroup is a study group; only identity and ownership are read here.
type StudyGroup struct {
	ID        int64  `json:"group_id" db:"group_id"`
	Name      string `json:"name" db:"name"`
	CreatorID string `json:"creator_id" db:"creator_id"`
}

// GroupMember links a user to a group.
type GroupMember struct {
	GroupID int64  `json:"group_id" db:"group_id"`
	UserID  string `json:"user_id" db:"user_id"`
	Role    string `json:"role" db:"role"`
	Status  string `json:"status" db:"status"`
}
