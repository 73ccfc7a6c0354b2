// Package testdb opens throwaway migrated databases for tests.
package testdb

import (
	"fmt"
	"testing"

	"albumvault/db"
	"albumvault/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New returns a migrated in-memory sqlite database private to the test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.OpenDialector(sqlite.Open(dsn), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// SeedUser inserts a user with a placeholder password hash.
func SeedUser(t testing.TB, gdb *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Password: "x", Name: "Rus", Lastname: "Tum"}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// SeedAlbum inserts an album owned by owner.
func SeedAlbum(t testing.TB, gdb *gorm.DB, owner *model.User, name string, internal bool) *model.Album {
	t.Helper()
	a := &model.Album{UserID: owner.ID, Name: name, Description: name, Internal: internal}
	require.NoError(t, gdb.Create(a).Error)
	return a
}

// SeedSong inserts a song row without touching any audio store.
func SeedSong(t testing.TB, gdb *gorm.DB, album *model.Album, title, key string) *model.Song {
	t.Helper()
	s := &model.Song{AlbumID: album.ID, Artist: "art", Title: title, AudioKey: key, ContentType: "audio/mpeg", Size: 1}
	require.NoError(t, gdb.Create(s).Error)
	return s
}
