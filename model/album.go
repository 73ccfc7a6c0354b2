package model

import "time"

// Album 表示用户的一张专辑
//
// Internal 为 true 时专辑为私有，只有所有者可见；false 时出现在公开列表中。
type Album struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      int64     `json:"userId" gorm:"index;not null"`
	Owner       *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Internal    bool      `json:"internal" gorm:"not null;index"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Album) TableName() string {
	return "albums"
}

// AlbumWithSongs 包含专辑信息和其包含的歌曲
type AlbumWithSongs struct {
	Album Album   `json:"album"`
	Songs []*Song `json:"songs"`
}
