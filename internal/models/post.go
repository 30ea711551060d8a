package models

import "gorm.io/datatypes"

// PostCategory classifies a post. Optional.
type PostCategory string

const (
	CategoryTech     PostCategory = "tech"
	CategoryNews     PostCategory = "news"
	CategorySport    PostCategory = "sport"
	CategoryFinance  PostCategory = "finance"
	CategoryPersonal PostCategory = "personal"
)

// Post is a content item. Posts form a forest through ParentPostID: the
// parent is assigned at creation and never changes, so ancestor chains are
// finite and acyclic (unlike the group graph).
//
// When InheritView/InheritEdit is set the post defers the corresponding
// permission decision to its parent; a root post that still inherits is
// accessible to its author only.
type Post struct {
	BaseModel

	AuthorID string `gorm:"type:uuid;not null;index" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Content  string                       `gorm:"type:text;not null" json:"content"`
	Hashtags datatypes.JSONSlice[string]  `json:"hashtags,omitempty"`
	Category PostCategory                 `gorm:"size:50" json:"category,omitempty"`
	Location string                       `gorm:"size:255" json:"location,omitempty"`

	ParentPostID *string `gorm:"type:uuid;index" json:"parent_post_id,omitempty"`
	ParentPost   *Post   `gorm:"foreignKey:ParentPostID" json:"-"`

	InheritView bool `gorm:"default:true" json:"inherit_view"`
	InheritEdit bool `gorm:"default:true" json:"inherit_edit"`

	Grants []Grant `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}
