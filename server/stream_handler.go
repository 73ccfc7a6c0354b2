package server

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// StreamSongHandler 输出歌曲原始音频
func (h *APIHandler) StreamSongHandler(w http.ResponseWriter, r *http.Request) {
	songID, ok := pathID(w, r, "songId")
	if !ok {
		return
	}
	stream, err := h.songs.Open(r.Context(), songID, callerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer stream.Body.Close()

	w.Header().Set("Content-Type", stream.Song.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(stream.Song.Size, 10))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, stream.Body); err != nil {
		// 客户端中断时常见，只记录
		h.log.Warn("[Stream] 音频输出中断", zap.Int64("songId", songID), zap.Error(err))
	}
}
