package models

// Group is a principal that can contain users and other groups. The
// group-in-group graph may be cyclic; traversal code carries visited sets.
type Group struct {
	BaseModel

	Name string `gorm:"uniqueIndex;size:200;not null" json:"name"`

	Members []GroupMembership `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
}
