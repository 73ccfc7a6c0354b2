package library

import (
	"context"
	"fmt"
	"strings"

	"albumvault/model"
	"albumvault/repository"
	"albumvault/storage"

	"go.uber.org/zap"
)

// AlbumInput 创建或更新专辑的参数
//
// Internal 为 nil 时：创建默认私有，更新保持原值。
type AlbumInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Internal    *bool  `json:"internal"`
}

type AlbumService struct {
	repos repository.Repos
	tx    repository.Transactor
	store storage.AudioStore
	log   *zap.Logger
}

func NewAlbumService(repos repository.Repos, tx repository.Transactor, store storage.AudioStore, log *zap.Logger) *AlbumService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AlbumService{repos: repos, tx: tx, store: store, log: log}
}

func (s *AlbumService) Create(ctx context.Context, caller Principal, in AlbumInput) (*model.Album, error) {
	user, err := resolveUser(ctx, s.repos.Users, caller)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAlbum)
	}
	album := &model.Album{
		UserID:      user.ID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Internal:    true,
	}
	if in.Internal != nil {
		album.Internal = *in.Internal
	}
	if err := s.repos.Albums.Create(ctx, album); err != nil {
		return nil, fmt.Errorf("failed to create album: %w", err)
	}
	s.log.Info("album created", zap.Int64("albumId", album.ID), zap.String("username", user.Username))
	return album, nil
}

// Get returns the album with its songs when it is visible to caller.
func (s *AlbumService) Get(ctx context.Context, albumID int64, caller Principal) (*model.AlbumWithSongs, error) {
	album, err := visibleAlbum(ctx, s.repos.Users, s.repos.Albums, albumID, caller)
	if err != nil {
		return nil, err
	}
	songs, err := s.repos.Songs.ListByAlbum(ctx, album.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	if songs == nil {
		songs = []*model.Song{}
	}
	return &model.AlbumWithSongs{Album: *album, Songs: songs}, nil
}

func (s *AlbumService) Update(ctx context.Context, albumID int64, caller Principal, in AlbumInput) (*model.Album, error) {
	user, err := resolveUser(ctx, s.repos.Users, caller)
	if err != nil {
		return nil, err
	}
	album, err := ownedAlbum(ctx, s.repos.Albums, albumID, user.ID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAlbum)
	}
	album.Name = name
	album.Description = strings.TrimSpace(in.Description)
	if in.Internal != nil {
		album.Internal = *in.Internal
	}
	if err := s.repos.Albums.Update(ctx, album); err != nil {
		return nil, fmt.Errorf("failed to update album: %w", err)
	}
	return album, nil
}

// Delete removes the album and its songs in one transaction, then the
// stored audio files.
func (s *AlbumService) Delete(ctx context.Context, albumID int64, caller Principal) error {
	user, err := resolveUser(ctx, s.repos.Users, caller)
	if err != nil {
		return err
	}
	album, err := ownedAlbum(ctx, s.repos.Albums, albumID, user.ID)
	if err != nil {
		return err
	}

	var keys []string
	err = s.tx.WithinTx(ctx, func(r repository.Repos) error {
		ids := []int64{album.ID}
		var err error
		if keys, err = r.Songs.AudioKeysByAlbums(ctx, ids); err != nil {
			return err
		}
		if err := r.Songs.DeleteByAlbums(ctx, ids); err != nil {
			return err
		}
		return r.Albums.Delete(ctx, album.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete album %d: %w", album.ID, err)
	}
	removeObjects(ctx, s.store, s.log, keys)
	s.log.Info("album deleted",
		zap.Int64("albumId", album.ID),
		zap.Int("songs", len(keys)),
		zap.String("username", user.Username))
	return nil
}

func (s *AlbumService) ListMine(ctx context.Context, caller Principal, page, size int) (*model.Page[model.Album], error) {
	user, err := resolveUser(ctx, s.repos.Users, caller)
	if err != nil {
		return nil, err
	}
	return s.repos.Albums.ListByOwner(ctx, user.ID, page, size)
}

func (s *AlbumService) ListPublic(ctx context.Context, page, size int) (*model.Page[model.Album], error) {
	return s.repos.Albums.ListPublic(ctx, page, size)
}
