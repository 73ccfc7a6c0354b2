package library

import (
	"context"
	"errors"
	"fmt"

	"albumvault/model"
	"albumvault/repository"
	"albumvault/storage"

	"go.uber.org/zap"
)

// Principal is the authenticated caller, as carried by its access token.
// The zero value is an anonymous caller.
type Principal struct {
	UserID   int64
	Username string
}

func (p Principal) Anonymous() bool {
	return p.UserID == 0
}

// resolveUser re-reads the principal by id. A token issued to a deleted
// account must not act for a later account registered under the same name,
// so the stored username has to match too.
func resolveUser(ctx context.Context, users repository.UserRepository, p Principal) (*model.User, error) {
	if p.Anonymous() {
		return nil, ErrUserNotFound
	}
	user, err := users.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user == nil || user.Username != p.Username {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ownedAlbum is the authorization gate for album mutations. A foreign album
// and a missing one both yield ErrAlbumNotFound.
func ownedAlbum(ctx context.Context, albums repository.AlbumRepository, albumID, userID int64) (*model.Album, error) {
	album, err := albums.FindByIDAndOwner(ctx, albumID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load album: %w", err)
	}
	if album == nil {
		return nil, ErrAlbumNotFound
	}
	return album, nil
}

// visibleAlbum returns the album when it is public or the caller owns it.
func visibleAlbum(ctx context.Context, users repository.UserRepository, albums repository.AlbumRepository, albumID int64, p Principal) (*model.Album, error) {
	album, err := albums.FindByID(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to load album: %w", err)
	}
	if album == nil {
		return nil, ErrAlbumNotFound
	}
	if !album.Internal {
		return album, nil
	}
	user, err := resolveUser(ctx, users, p)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrAlbumNotFound
		}
		return nil, err
	}
	if user.ID != album.UserID {
		return nil, ErrAlbumNotFound
	}
	return album, nil
}

// removeObjects deletes stored audio after the owning rows are gone. Failures
// leave orphans that `albumvault storage --prune` can collect; they are logged,
// not returned.
func removeObjects(ctx context.Context, store storage.AudioStore, log *zap.Logger, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := store.Remove(ctx, key); err != nil {
			log.Warn("failed to remove audio file", zap.String("key", key), zap.Error(err))
		}
	}
}
