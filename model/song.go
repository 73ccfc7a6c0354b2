package model

import "time"

// Song is an uploaded audio file attached to an album.
type Song struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	AlbumID     int64     `json:"albumId" gorm:"index;not null"`
	Album       *Album    `json:"-" gorm:"foreignKey:AlbumID;constraint:OnDelete:RESTRICT"`
	Artist      string    `json:"artist" gorm:"size:255;not null"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	AudioKey    string    `json:"-" gorm:"size:64;uniqueIndex;not null"` // Stored object name, not exposed in API directly
	ContentType string    `json:"contentType" gorm:"size:100"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Song) TableName() string {
	return "songs"
}
