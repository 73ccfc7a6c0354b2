package library

import (
	"context"
	"errors"
	"fmt"
	"io"

	"albumvault/model"
	"albumvault/repository"
	"albumvault/storage"

	"go.uber.org/zap"
)

// uploadTxn pairs the file write with the row insert. The file store and the
// database share no transaction, so a failed insert is undone by removing the
// staged file.
type uploadTxn struct {
	store storage.AudioStore
	songs repository.SongRepository
	log   *zap.Logger
	key   string

	written int64
	staged  bool
}

// stage writes the audio bytes. On failure nothing remains in the store.
func (t *uploadTxn) stage(ctx context.Context, body io.Reader, size int64, contentType string) error {
	n, err := t.store.Save(ctx, t.key, body, size, contentType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	t.written = n
	t.staged = true
	if n == 0 {
		t.compensate(ctx)
		return fmt.Errorf("%w: audio file is empty", ErrInvalidUpload)
	}
	return nil
}

// commit inserts the row for the staged file, compensating on failure.
func (t *uploadTxn) commit(ctx context.Context, song *model.Song) error {
	if !t.staged {
		return errors.New("upload not staged")
	}
	song.AudioKey = t.key
	song.Size = t.written
	if err := t.songs.Create(ctx, song); err != nil {
		t.compensate(ctx)
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return nil
}

// compensate removes the staged file. It runs even when ctx is already
// cancelled.
func (t *uploadTxn) compensate(ctx context.Context) {
	if !t.staged {
		return
	}
	if err := t.store.Remove(context.WithoutCancel(ctx), t.key); err != nil {
		t.log.Error("failed to remove staged audio file",
			zap.String("key", t.key), zap.Error(err))
		return
	}
	t.staged = false
	t.log.Warn("staged audio file removed", zap.String("key", t.key))
}
