package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"albumvault/config"
	"albumvault/core/audio"
	"albumvault/core/auth"
	"albumvault/core/library"
	"albumvault/db"
	"albumvault/internal/testdb"
	"albumvault/model"
	"albumvault/repository"
	"albumvault/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db     *gorm.DB
	disk   *storage.DiskStore
	router http.Handler
	tokens *auth.TokenManager

	rtu1, rtu2             *model.User
	rtu1Album1, rtu1Album2 *model.Album
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := testdb.New(t)
	disk, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{MaxUploadSizeMB: 2, SupportedFormats: config.DefaultSupportedFormats}
	repo := repository.NewStore(gdb)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	log := zap.NewNop()
	users, err := library.NewUserService(repo.Repos, repo, disk, tokens, nil, log)
	require.NoError(t, err)

	h := NewAPIHandler(Services{
		Albums: library.NewAlbumService(repo.Repos, repo, disk, log),
		Songs:  library.NewSongService(repo.Repos, disk, audio.NewDetector(cfg.SupportedFormats), log),
		Users:  users,
		Tokens: tokens,
		Ping:   func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	}, cfg, log)

	env := &testEnv{db: gdb, disk: disk, router: NewRouter(h), tokens: tokens}
	env.rtu1 = testdb.SeedUser(t, gdb, "rtu1")
	env.rtu2 = testdb.SeedUser(t, gdb, "rtu2")
	env.rtu1Album1 = testdb.SeedAlbum(t, gdb, env.rtu1, "rtu1 album - public", false)
	env.rtu1Album2 = testdb.SeedAlbum(t, gdb, env.rtu1, "rtu1 album - private", true)
	return env
}

func (e *testEnv) token(t *testing.T, u *model.User) string {
	t.Helper()
	tok, _, err := e.tokens.Issue(u.ID, u.Username)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// fakeMP3 is an ID3-tagged payload of the given size.
func fakeMP3(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0, 0})
	return b
}

func uploadRequest(t *testing.T, albumID string, audioData []byte, artist, title string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if audioData != nil {
		part, err := mw.CreateFormFile("audio", "mp3.mp3")
		require.NoError(t, err)
		_, err = part.Write(audioData)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("artist", artist))
	require.NoError(t, mw.WriteField("title", title))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/album/"+albumID+"/song", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func id(v int64) string { return fmt.Sprint(v) }

func TestUploadSong(t *testing.T) {
	env := newTestEnv(t)
	tok1 := env.token(t, env.rtu1)
	tok2 := env.token(t, env.rtu2)
	mp3 := fakeMP3(700 * 1024)

	t.Run("owner uploads to private album", func(t *testing.T) {
		rec := env.do(uploadRequest(t, id(env.rtu1Album2.ID), mp3, "art2", "song2"), tok1)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var song model.Song
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &song))
		assert.NotZero(t, song.ID)
		assert.NotContains(t, rec.Body.String(), "audioKey")

		var stored model.Song
		require.NoError(t, env.db.First(&stored, song.ID).Error)
		assert.Equal(t, "art2", stored.Artist)
		assert.Equal(t, "song2", stored.Title)
		assert.Equal(t, env.rtu1Album2.ID, stored.AlbumID)

		_, err := os.Stat(env.disk.Dir() + "/" + stored.AudioKey)
		assert.NoError(t, err)
	})

	t.Run("foreign album is not found", func(t *testing.T) {
		rec := env.do(uploadRequest(t, id(env.rtu1Album1.ID), mp3, "art2", "song2"), tok2)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing album is not found", func(t *testing.T) {
		rec := env.do(uploadRequest(t, "987654", mp3, "art2", "song2"), tok1)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non numeric album id is not found", func(t *testing.T) {
		rec := env.do(uploadRequest(t, "abc", mp3, "art2", "song2"), tok1)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing audio part is a bad request", func(t *testing.T) {
		rec := env.do(uploadRequest(t, id(env.rtu1Album1.ID), nil, "art2", "song2"), tok2)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty audio is a bad request", func(t *testing.T) {
		rec := env.do(uploadRequest(t, id(env.rtu1Album1.ID), []byte{}, "art2", "song2"), tok1)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("blank title is a bad request", func(t *testing.T) {
		rec := env.do(uploadRequest(t, id(env.rtu1Album1.ID), mp3, "art2", " "), tok1)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no token is unauthorized", func(t *testing.T) {
		rec := env.do(uploadRequest(t, id(env.rtu1Album1.ID), mp3, "art2", "song2"), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token is unauthorized", func(t *testing.T) {
		rec := env.do(uploadRequest(t, id(env.rtu1Album1.ID), mp3, "art2", "song2"), "garbage")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		rec := env.do(uploadRequest(t, id(env.rtu1Album1.ID), fakeMP3(3<<20), "art2", "song2"), tok1)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	var count int64
	require.NoError(t, env.db.Model(&model.Song{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	entries, err := os.ReadDir(env.disk.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAlbumEndpoints(t *testing.T) {
	env := newTestEnv(t)
	tok1 := env.token(t, env.rtu1)
	tok2 := env.token(t, env.rtu2)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/albums",
		bytes.NewBufferString(`{"name":"new","description":"d","internal":false}`)), tok2)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.Album
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, env.rtu2.ID, created.UserID)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/albums?page=0&size=1", nil), tok1)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine model.Page[model.Album]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.EqualValues(t, 2, mine.Total)
	assert.Len(t, mine.Items, 1)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/albums/public", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var public model.Page[model.Album]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &public))
	assert.EqualValues(t, 2, public.Total)

	// private album: owner only
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/album/"+id(env.rtu1Album2.ID), nil), tok1)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/album/"+id(env.rtu1Album2.ID), nil), tok2)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/album/"+id(env.rtu1Album2.ID), nil), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/album/"+id(env.rtu1Album1.ID)+"/songs", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodPut, "/api/album/"+id(env.rtu1Album1.ID),
		bytes.NewBufferString(`{"name":"mine now"}`)), tok2)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodPut, "/api/album/"+id(env.rtu1Album1.ID),
		bytes.NewBufferString(`{"name":"renamed","internal":true}`)), tok1)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.Album
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "renamed", updated.Name)
	assert.True(t, updated.Internal)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/albums", bytes.NewBufferString(`{"name":""}`)), tok1)
	var errBody errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errBody.Error)

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/album/"+id(env.rtu1Album1.ID), nil), tok1)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/album/"+id(env.rtu1Album1.ID), nil), tok1)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSongStreamAndDelete(t *testing.T) {
	env := newTestEnv(t)
	tok1 := env.token(t, env.rtu1)
	tok2 := env.token(t, env.rtu2)
	mp3 := fakeMP3(4096)

	rec := env.do(uploadRequest(t, id(env.rtu1Album1.ID), mp3, "art1", "song1"), tok1)
	require.Equal(t, http.StatusOK, rec.Code)
	var song model.Song
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &song))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/song/"+id(song.ID)+"/audio", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, mp3, data)

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/song/"+id(song.ID), nil), tok2)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/song/"+id(song.ID), nil), tok1)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/song/"+id(song.ID)+"/audio", nil), tok1)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"username":"dave","password":"pw","name":"Dave"}`)), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"username":"dave","password":"pw"}`)), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"username":"dave","password":"wrong"}`)), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"username":"dave","password":"pw"}`)), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var login library.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/albums", nil), login.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/user", nil), login.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// 账号删除后 token 仍然有效，但用户已不存在
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/albums", nil), login.Token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodOptions, "/api/album/1/song", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOldTokenAfterReRegistration(t *testing.T) {
	env := newTestEnv(t)
	stale := env.token(t, env.rtu1)

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/api/user", nil), stale)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"username":"rtu1","password":"pw"}`)), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var fresh model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fresh))
	require.NotEqual(t, env.rtu1.ID, fresh.ID)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/albums",
		bytes.NewBufferString(`{"name":"hijack"}`)), stale)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	var albums int64
	require.NoError(t, env.db.Model(&model.Album{}).Where("user_id = ?", fresh.ID).Count(&albums).Error)
	assert.Zero(t, albums)
}

func TestRegisterOverlongPassword(t *testing.T) {
	env := newTestEnv(t)
	body := fmt.Sprintf(`{"username":"long","password":%q}`, strings.Repeat("p", 100))

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body)), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "invalid_request", errBody.Error)
}
