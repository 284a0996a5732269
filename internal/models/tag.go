package models

// Tag labels articles and questions.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
}

// TagCount is one entry of a popular-tags listing.
type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
