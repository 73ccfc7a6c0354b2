// Package library holds the album, song and account workflows on top of the
// repositories and the audio store.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"albumvault/core/audio"
	"albumvault/model"
	"albumvault/repository"
	"albumvault/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadRequest is one song upload into an album the caller must own.
type UploadRequest struct {
	AlbumID     int64
	Caller      Principal
	Artist      string
	Title       string
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// AudioStream is an opened stored audio file.
type AudioStream struct {
	Song *model.Song
	Body io.ReadCloser
}

type SongService struct {
	users   repository.UserRepository
	albums  repository.AlbumRepository
	songs   repository.SongRepository
	store   storage.AudioStore
	formats *audio.Detector
	newKey  func() string
	log     *zap.Logger
}

func NewSongService(repos repository.Repos, store storage.AudioStore, formats *audio.Detector, log *zap.Logger) *SongService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SongService{
		users:   repos.Users,
		albums:  repos.Albums,
		songs:   repos.Songs,
		store:   store,
		formats: formats,
		newKey:  uuid.NewString,
		log:     log,
	}
}

// Upload stores the audio file and creates the Song row referencing it.
// Nothing is written until the caller, the album and the payload have all
// been checked.
func (s *SongService) Upload(ctx context.Context, req UploadRequest) (*model.Song, error) {
	user, err := resolveUser(ctx, s.users, req.Caller)
	if err != nil {
		return nil, err
	}
	album, err := ownedAlbum(ctx, s.albums, req.AlbumID, user.ID)
	if err != nil {
		return nil, err
	}

	artist := strings.TrimSpace(req.Artist)
	title := strings.TrimSpace(req.Title)
	switch {
	case req.Body == nil || req.Size <= 0:
		return nil, fmt.Errorf("%w: audio file is empty", ErrInvalidUpload)
	case artist == "":
		return nil, fmt.Errorf("%w: artist is required", ErrInvalidUpload)
	case title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidUpload)
	}
	format, err := s.formats.Detect(req.Body, req.Filename, req.ContentType)
	if err != nil {
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	txn := &uploadTxn{
		store: s.store,
		songs: s.songs,
		log:   s.log,
		key:   s.newKey() + format.Ext,
	}
	if err := txn.stage(ctx, req.Body, req.Size, format.ContentType); err != nil {
		return nil, err
	}
	song := &model.Song{
		AlbumID:     album.ID,
		Artist:      artist,
		Title:       title,
		ContentType: format.ContentType,
	}
	if err := txn.commit(ctx, song); err != nil {
		return nil, err
	}

	s.log.Info("song uploaded",
		zap.Int64("songId", song.ID),
		zap.Int64("albumId", album.ID),
		zap.String("username", user.Username),
		zap.Int64("size", song.Size))
	return song, nil
}

// ListByAlbum returns the songs of a visible album in upload order.
func (s *SongService) ListByAlbum(ctx context.Context, albumID int64, caller Principal) ([]*model.Song, error) {
	album, err := visibleAlbum(ctx, s.users, s.albums, albumID, caller)
	if err != nil {
		return nil, err
	}
	songs, err := s.songs.ListByAlbum(ctx, album.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	if songs == nil {
		songs = []*model.Song{}
	}
	return songs, nil
}

// Open returns the stored audio of a song whose album is visible to caller.
// The caller closes Body.
func (s *SongService) Open(ctx context.Context, songID int64, caller Principal) (*AudioStream, error) {
	song, err := s.songs.FindByID(ctx, songID)
	if err != nil {
		return nil, fmt.Errorf("failed to load song: %w", err)
	}
	if song == nil {
		return nil, ErrSongNotFound
	}
	if _, err := visibleAlbum(ctx, s.users, s.albums, song.AlbumID, caller); err != nil {
		if errors.Is(err, ErrAlbumNotFound) {
			return nil, ErrSongNotFound
		}
		return nil, err
	}
	body, err := s.store.Open(ctx, song.AudioKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.log.Error("song row without audio file", zap.Int64("songId", song.ID), zap.String("key", song.AudioKey))
			return nil, ErrSongNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return &AudioStream{Song: song, Body: body}, nil
}

// Delete removes a song of an album owned by caller.
func (s *SongService) Delete(ctx context.Context, songID int64, caller Principal) error {
	user, err := resolveUser(ctx, s.users, caller)
	if err != nil {
		return err
	}
	song, err := s.songs.FindByID(ctx, songID)
	if err != nil {
		return fmt.Errorf("failed to load song: %w", err)
	}
	if song == nil {
		return ErrSongNotFound
	}
	if _, err := ownedAlbum(ctx, s.albums, song.AlbumID, user.ID); err != nil {
		if errors.Is(err, ErrAlbumNotFound) {
			return ErrSongNotFound
		}
		return err
	}
	if err := s.songs.Delete(ctx, song.ID); err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	removeObjects(ctx, s.store, s.log, []string{song.AudioKey})
	return nil
}
