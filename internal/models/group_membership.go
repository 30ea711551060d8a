package models

// MemberKind tags the principal type on a membership edge or grant.
type MemberKind string

const (
	MemberKindUser  MemberKind = "user"
	MemberKindGroup MemberKind = "group"
)

// GroupMembership is a directed edge: member (user or group) belongs to group.
// The member side is a tagged id rather than dual foreign keys so traversal
// branches on kind explicitly.
type GroupMembership struct {
	BaseModel

	MemberID   string     `gorm:"type:uuid;not null;index:idx_membership_member,priority:1" json:"member_id"`
	MemberKind MemberKind `gorm:"size:50;not null" json:"member_kind"`
	GroupID    string     `gorm:"type:uuid;not null;index:idx_membership_member,priority:2;index" json:"group_id"`

	Group *Group `gorm:"foreignKey:GroupID" json:"-"`
}
