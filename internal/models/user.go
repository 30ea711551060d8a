package models

// User is an individual principal. Users are immutable once created and
// hold grants and group memberships by id reference only.
type User struct {
	BaseModel

	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `json:"display_name"`
}
