package server

import (
	"errors"
	"net/http"
	"strings"

	"albumvault/core/library"

	"go.uber.org/zap"
)

// multipart 内存阈值，超过部分落到临时文件
const multipartMemory = 32 << 20

// UploadSongHandler handles POST /api/album/{albumId}/song.
//
// Form fields: audio (file), artist, title.
func (h *APIHandler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(w, r, "albumId")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_upload", "multipart form expected")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "audio file part is required")
		return
	}
	defer file.Close()

	song, err := h.songs.Upload(r.Context(), library.UploadRequest{
		AlbumID:     albumID,
		Caller:      callerFromContext(r.Context()),
		Artist:      r.FormValue("artist"),
		Title:       r.FormValue("title"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		if errors.Is(err, library.ErrInvalidUpload) {
			h.log.Warn("[Upload] 上传被拒绝", zap.Int64("albumId", albumID), zap.Error(err))
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// GetAlbumSongsHandler 获取专辑内歌曲
func (h *APIHandler) GetAlbumSongsHandler(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(w, r, "albumId")
	if !ok {
		return
	}
	songs, err := h.songs.ListByAlbum(r.Context(), albumID, callerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// DeleteSongHandler 删除歌曲
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	songID, ok := pathID(w, r, "songId")
	if !ok {
		return
	}
	if err := h.songs.Delete(r.Context(), songID, callerFromContext(r.Context())); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
