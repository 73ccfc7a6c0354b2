package repository

import (
	"context"
	"errors"
	"fmt"

	"albumvault/model"

	"gorm.io/gorm"
)

// SongRepository defines the persistence operations for songs.
type SongRepository interface {
	Create(ctx context.Context, song *model.Song) error
	FindByID(ctx context.Context, id int64) (*model.Song, error)
	ListByAlbum(ctx context.Context, albumID int64) ([]*model.Song, error)
	AudioKeysByAlbums(ctx context.Context, albumIDs []int64) ([]string, error)
	AllAudioKeys(ctx context.Context) ([]string, error)
	DeleteByAlbums(ctx context.Context, albumIDs []int64) error
	Delete(ctx context.Context, id int64) error
}

type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository creates a gorm-backed SongRepository.
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

func (r *gormSongRepository) Create(ctx context.Context, song *model.Song) error {
	return r.db.WithContext(ctx).Omit("Album").Create(song).Error
}

func (r *gormSongRepository) FindByID(ctx context.Context, id int64) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).First(&song, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get song %d: %w", id, err)
	}
	return &song, nil
}

func (r *gormSongRepository) ListByAlbum(ctx context.Context, albumID int64) ([]*model.Song, error) {
	var songs []*model.Song
	err := r.db.WithContext(ctx).
		Where("album_id = ?", albumID).
		Order("id ASC").
		Find(&songs).Error
	return songs, err
}

func (r *gormSongRepository) AudioKeysByAlbums(ctx context.Context, albumIDs []int64) ([]string, error) {
	if len(albumIDs) == 0 {
		return nil, nil
	}
	var keys []string
	err := r.db.WithContext(ctx).Model(&model.Song{}).
		Where("album_id IN ?", albumIDs).
		Pluck("audio_key", &keys).Error
	return keys, err
}

func (r *gormSongRepository) AllAudioKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Model(&model.Song{}).Pluck("audio_key", &keys).Error
	return keys, err
}

func (r *gormSongRepository) DeleteByAlbums(ctx context.Context, albumIDs []int64) error {
	if len(albumIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("album_id IN ?", albumIDs).Delete(&model.Song{}).Error
}

func (r *gormSongRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Song{}, id).Error
}
