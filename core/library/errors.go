package library

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrAlbumNotFound = errors.New("album not found")
	ErrSongNotFound  = errors.New("song not found")

	ErrInvalidUpload = errors.New("invalid upload")
	ErrInvalidAlbum  = errors.New("invalid album")
	ErrInvalidUser   = errors.New("invalid registration")

	// ErrStorageFailure means the audio file could not be written; nothing was persisted.
	ErrStorageFailure = errors.New("audio storage failure")
	// ErrPersistenceFailure means the row insert failed after the file write;
	// the file has been removed again.
	ErrPersistenceFailure = errors.New("song persistence failure")

	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)
