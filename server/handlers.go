package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"albumvault/config"
	"albumvault/core/auth"
	"albumvault/core/library"
	"albumvault/logger"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	albums  *library.AlbumService
	songs   *library.SongService
	users   *library.UserService
	tokens  *auth.TokenManager
	revoker auth.Revoker
	ping    func(context.Context) error
	cfg     *config.Config
	log     *zap.Logger
}

// Services 是 APIHandler 依赖的服务集合
type Services struct {
	Albums  *library.AlbumService
	Songs   *library.SongService
	Users   *library.UserService
	Tokens  *auth.TokenManager
	Revoker auth.Revoker
	// Ping 检查数据库连接，用于 /health
	Ping func(context.Context) error
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(svc Services, cfg *config.Config, log *zap.Logger) *APIHandler {
	if log == nil {
		log = logger.Named("http")
	}
	if svc.Revoker == nil {
		svc.Revoker = auth.NopRevoker{}
	}
	return &APIHandler{
		albums:  svc.Albums,
		songs:   svc.Songs,
		users:   svc.Users,
		tokens:  svc.Tokens,
		revoker: svc.Revoker,
		ping:    svc.Ping,
		cfg:     cfg,
		log:     log,
	}
}

// errorResponse 统一错误响应
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps library errors to HTTP statuses.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, library.ErrAlbumNotFound):
		writeError(w, http.StatusNotFound, "album_not_found", "album not found")
	case errors.Is(err, library.ErrSongNotFound):
		writeError(w, http.StatusNotFound, "song_not_found", "song not found")
	case errors.Is(err, library.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", "user not found")
	case errors.Is(err, library.ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, "invalid_upload", err.Error())
	case errors.Is(err, library.ErrInvalidAlbum), errors.Is(err, library.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, library.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken", "username already taken")
	case errors.Is(err, library.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// pathID 解析路径中的数字ID；无法解析的ID不可能存在，按 404 处理
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "not_found", name+" not found")
		return 0, false
	}
	return id, true
}

// pageParams 读取 page/size 查询参数，非法值回退到默认值
func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 0
	}
	size, err := strconv.Atoi(q.Get("size"))
	if err != nil {
		size = 0
	}
	return page, size
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}
