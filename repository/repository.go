package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrDuplicateUser is returned when a username is already taken.
var ErrDuplicateUser = errors.New("user already exists")

// Repos groups the repositories bound to one database handle, either the
// pool or an open transaction.
type Repos struct {
	Users  UserRepository
	Albums AlbumRepository
	Songs  SongRepository
}

// Transactor runs a group of repository calls atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Repos) error) error
}

// Store owns the gorm handle and hands out repositories.
type Store struct {
	Repos
	db *gorm.DB
}

// NewStore 创建基于 GORM 的仓库集合
func NewStore(db *gorm.DB) *Store {
	return &Store{Repos: newRepos(db), db: db}
}

func newRepos(db *gorm.DB) Repos {
	return Repos{
		Users:  NewGormUserRepository(db),
		Albums: NewGormAlbumRepository(db),
		Songs:  NewGormSongRepository(db),
	}
}

// WithinTx runs fn inside a gorm transaction; any error from fn rolls it back.
func (s *Store) WithinTx(ctx context.Context, fn func(Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepos(tx))
	})
}

// normalizePage clamps offset-pagination arguments.
func normalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
