package models

// GrantKind is the permission type carried by a grant.
type GrantKind string

const (
	GrantView GrantKind = "view"
	GrantEdit GrantKind = "edit"
)

// Grant ties a principal (user or group) to a post and a permission type.
// Several grants may exist for the same (post, kind); any matching grant
// authorizes. The full set for one kind is replaced atomically on update.
type Grant struct {
	BaseModel

	PermittedID   string     `gorm:"type:uuid;not null;index:idx_grant_lookup,priority:1" json:"permitted_id"`
	PermittedKind MemberKind `gorm:"size:50;not null" json:"permitted_kind"`

	PostID string `gorm:"type:uuid;not null;index:idx_grant_lookup,priority:3;index" json:"post_id"`
	Post   *Post  `gorm:"foreignKey:PostID" json:"-"`

	Kind GrantKind `gorm:"size:20;not null;index:idx_grant_lookup,priority:2" json:"kind"`
}
