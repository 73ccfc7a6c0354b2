package library

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"albumvault/config"
	"albumvault/core/audio"
	"albumvault/core/auth"
	"albumvault/internal/testdb"
	"albumvault/model"
	"albumvault/repository"
	"albumvault/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	repo  *repository.Store
	disk  *storage.DiskStore
	songs *SongService
	alb   *AlbumService
	users *UserService

	rtu1, rtu2 *model.User

	rtu1Album1, rtu1Album2 *model.Album
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testdb.New(t)
	disk, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{db: gdb, repo: repository.NewStore(gdb), disk: disk}
	f.songs = NewSongService(f.repo.Repos, disk, audio.NewDetector(config.DefaultSupportedFormats), zap.NewNop())
	f.alb = NewAlbumService(f.repo.Repos, f.repo, disk, zap.NewNop())
	f.users, err = NewUserService(f.repo.Repos, f.repo, disk, auth.NewTokenManager("secret", time.Hour), nil, zap.NewNop())
	require.NoError(t, err)

	f.rtu1 = testdb.SeedUser(t, gdb, "rtu1")
	f.rtu2 = testdb.SeedUser(t, gdb, "rtu2")
	f.rtu1Album1 = testdb.SeedAlbum(t, gdb, f.rtu1, "rtu1Album1", false)
	f.rtu1Album2 = testdb.SeedAlbum(t, gdb, f.rtu1, "rtu1Album2", true)
	return f
}

// id3Audio fakes an MP3 that starts with an ID3v2.3 header.
func id3Audio(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0, 0})
	return b
}

// ghost carries a well-formed token identity with no account behind it.
var ghost = Principal{UserID: 9999, Username: "ghost"}

func (f *fixture) as(u *model.User) Principal {
	return Principal{UserID: u.ID, Username: u.Username}
}

func uploadReq(albumID int64, caller Principal, payload []byte) UploadRequest {
	return UploadRequest{
		AlbumID:     albumID,
		Caller:      caller,
		Artist:      "art2",
		Title:       "song2",
		Filename:    "mp3.mp3",
		ContentType: "audio/mp3",
		Size:        int64(len(payload)),
		Body:        bytes.NewReader(payload),
	}
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func countSongs(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&model.Song{}).Count(&n).Error)
	return n
}

// failingSongs fails every insert.
type failingSongs struct {
	repository.SongRepository
}

func (failingSongs) Create(context.Context, *model.Song) error {
	return errors.New("insert failed")
}

// failingStore fails every write.
type failingStore struct {
	storage.AudioStore
}

func (failingStore) Save(context.Context, string, io.Reader, int64, string) (int64, error) {
	return 0, errors.New("disk full")
}

func TestUpload_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := id3Audio(700 * 1024)

	song, err := f.songs.Upload(ctx, uploadReq(f.rtu1Album2.ID, f.as(f.rtu1), payload))
	require.NoError(t, err)
	assert.NotZero(t, song.ID)
	assert.Equal(t, f.rtu1Album2.ID, song.AlbumID)
	assert.Equal(t, "art2", song.Artist)
	assert.Equal(t, "song2", song.Title)
	assert.Equal(t, "audio/mpeg", song.ContentType)
	assert.EqualValues(t, len(payload), song.Size)

	files := storedFiles(t, f.disk.Dir())
	require.Len(t, files, 1)
	assert.Equal(t, song.AudioKey, files[0])
	assert.Equal(t, int64(1), countSongs(t, f.db))

	stored, err := os.ReadFile(f.disk.Dir() + "/" + files[0])
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestUpload_TrimsArtistAndTitle(t *testing.T) {
	f := newFixture(t)
	req := uploadReq(f.rtu1Album1.ID, f.as(f.rtu1), id3Audio(1024))
	req.Artist = "  art  "
	req.Title = "\tsong\n"

	song, err := f.songs.Upload(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "art", song.Artist)
	assert.Equal(t, "song", song.Title)
}

func TestUpload_ForeignAlbumLooksMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, foreignErr := f.songs.Upload(ctx, uploadReq(f.rtu1Album1.ID, f.as(f.rtu2), id3Audio(1024)))
	_, missingErr := f.songs.Upload(ctx, uploadReq(9999, f.as(f.rtu2), id3Audio(1024)))

	assert.ErrorIs(t, foreignErr, ErrAlbumNotFound)
	assert.ErrorIs(t, missingErr, ErrAlbumNotFound)
	assert.Equal(t, foreignErr.Error(), missingErr.Error())
	assert.Empty(t, storedFiles(t, f.disk.Dir()))
	assert.Zero(t, countSongs(t, f.db))
}

func TestUpload_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.songs.Upload(context.Background(), uploadReq(f.rtu1Album1.ID, ghost, id3Audio(1024)))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpload_InvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*UploadRequest)
	}{
		{name: "empty audio", mutate: func(r *UploadRequest) { r.Body = bytes.NewReader(nil); r.Size = 0 }},
		{name: "absent audio", mutate: func(r *UploadRequest) { r.Body = nil }},
		{name: "blank artist", mutate: func(r *UploadRequest) { r.Artist = "   " }},
		{name: "blank title", mutate: func(r *UploadRequest) { r.Title = "" }},
		{name: "not audio", mutate: func(r *UploadRequest) {
			body := []byte("plain text pretending to be a song")
			r.Body = bytes.NewReader(body)
			r.Size = int64(len(body))
		}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := uploadReq(f.rtu1Album1.ID, f.as(f.rtu1), id3Audio(1024))
			tc.mutate(&req)
			_, err := f.songs.Upload(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidUpload)
		})
	}
	assert.Empty(t, storedFiles(t, f.disk.Dir()))
	assert.Zero(t, countSongs(t, f.db))
}

func TestUpload_InsertFailureRemovesFile(t *testing.T) {
	f := newFixture(t)
	repos := f.repo.Repos
	repos.Songs = failingSongs{repos.Songs}
	svc := NewSongService(repos, f.disk, audio.NewDetector(config.DefaultSupportedFormats), zap.NewNop())
	svc.newKey = func() string { return "fixed-key" }

	_, err := svc.Upload(context.Background(), uploadReq(f.rtu1Album1.ID, f.as(f.rtu1), id3Audio(4096)))
	require.ErrorIs(t, err, ErrPersistenceFailure)

	_, statErr := os.Stat(f.disk.Dir() + "/fixed-key.mp3")
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, storedFiles(t, f.disk.Dir()))
	assert.Zero(t, countSongs(t, f.db))
}

// stuckStore writes normally but cannot remove anything.
type stuckStore struct {
	storage.AudioStore
}

func (stuckStore) Remove(context.Context, string) error {
	return errors.New("permission denied")
}

func TestUpload_InsertFailureWithFailedCleanup(t *testing.T) {
	f := newFixture(t)
	repos := f.repo.Repos
	repos.Songs = failingSongs{repos.Songs}
	svc := NewSongService(repos, stuckStore{f.disk}, audio.NewDetector(config.DefaultSupportedFormats), zap.NewNop())
	svc.newKey = func() string { return "stuck-key" }

	_, err := svc.Upload(context.Background(), uploadReq(f.rtu1Album1.ID, f.as(f.rtu1), id3Audio(4096)))
	require.ErrorIs(t, err, ErrPersistenceFailure)
	assert.NotErrorIs(t, err, ErrStorageFailure)

	// the file stays behind for `storage --prune`; no row references it
	assert.Equal(t, []string{"stuck-key.mp3"}, storedFiles(t, f.disk.Dir()))
	assert.Zero(t, countSongs(t, f.db))
}

func TestUpload_StorageFailureCreatesNoRow(t *testing.T) {
	f := newFixture(t)
	svc := NewSongService(f.repo.Repos, failingStore{f.disk}, audio.NewDetector(config.DefaultSupportedFormats), zap.NewNop())

	_, err := svc.Upload(context.Background(), uploadReq(f.rtu1Album1.ID, f.as(f.rtu1), id3Audio(4096)))
	require.ErrorIs(t, err, ErrStorageFailure)
	assert.Zero(t, countSongs(t, f.db))
}

func TestUpload_ConcurrentUploadsGetDistinctFiles(t *testing.T) {
	f := newFixture(t)
	const n = 8

	var wg sync.WaitGroup
	keys := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			song, err := f.songs.Upload(context.Background(), uploadReq(f.rtu1Album1.ID, f.as(f.rtu1), id3Audio(2048)))
			errs[i] = err
			if err == nil {
				keys[i] = song.AudioKey
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[keys[i]], "duplicate key %s", keys[i])
		seen[keys[i]] = true
	}
	assert.Len(t, storedFiles(t, f.disk.Dir()), n)
	assert.Equal(t, int64(n), countSongs(t, f.db))
}

func TestSongVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	private, err := f.songs.Upload(ctx, uploadReq(f.rtu1Album2.ID, f.as(f.rtu1), id3Audio(1024)))
	require.NoError(t, err)
	public, err := f.songs.Upload(ctx, uploadReq(f.rtu1Album1.ID, f.as(f.rtu1), id3Audio(1024)))
	require.NoError(t, err)

	t.Run("owner lists private album", func(t *testing.T) {
		songs, err := f.songs.ListByAlbum(ctx, f.rtu1Album2.ID, f.as(f.rtu1))
		require.NoError(t, err)
		require.Len(t, songs, 1)
		assert.Equal(t, private.ID, songs[0].ID)
	})

	t.Run("others cannot list private album", func(t *testing.T) {
		_, err := f.songs.ListByAlbum(ctx, f.rtu1Album2.ID, f.as(f.rtu2))
		assert.ErrorIs(t, err, ErrAlbumNotFound)
		_, err = f.songs.ListByAlbum(ctx, f.rtu1Album2.ID, Principal{})
		assert.ErrorIs(t, err, ErrAlbumNotFound)
	})

	t.Run("anonymous streams public song", func(t *testing.T) {
		stream, err := f.songs.Open(ctx, public.ID, Principal{})
		require.NoError(t, err)
		defer stream.Body.Close()
		data, err := io.ReadAll(stream.Body)
		require.NoError(t, err)
		assert.Len(t, data, 1024)
		assert.Equal(t, "audio/mpeg", stream.Song.ContentType)
	})

	t.Run("private song hidden from others", func(t *testing.T) {
		_, err := f.songs.Open(ctx, private.ID, f.as(f.rtu2))
		assert.ErrorIs(t, err, ErrSongNotFound)
	})
}

func TestSongDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song, err := f.songs.Upload(ctx, uploadReq(f.rtu1Album1.ID, f.as(f.rtu1), id3Audio(1024)))
	require.NoError(t, err)

	assert.ErrorIs(t, f.songs.Delete(ctx, song.ID, f.as(f.rtu2)), ErrSongNotFound)
	assert.Len(t, storedFiles(t, f.disk.Dir()), 1)

	require.NoError(t, f.songs.Delete(ctx, song.ID, f.as(f.rtu1)))
	assert.Empty(t, storedFiles(t, f.disk.Dir()))
	assert.Zero(t, countSongs(t, f.db))
	assert.ErrorIs(t, f.songs.Delete(ctx, song.ID, f.as(f.rtu1)), ErrSongNotFound)
}
