package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"albumvault/config"
	"albumvault/core/audio"
	"albumvault/core/auth"
	"albumvault/core/library"
	"albumvault/db"
	"albumvault/logger"
	"albumvault/repository"
	"albumvault/storage"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter 注册所有路由
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(accessLogMiddleware(h.log))

	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// 用户认证相关的API端点
	api.HandleFunc("/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.AuthMiddleware(h.LogoutHandler)).Methods(http.MethodPost)
	api.HandleFunc("/user", h.AuthMiddleware(h.DeleteUserHandler)).Methods(http.MethodDelete)

	// 专辑相关的API端点
	api.HandleFunc("/albums", h.AuthMiddleware(h.GetUserAlbumsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/albums", h.AuthMiddleware(h.CreateAlbumHandler)).Methods(http.MethodPost)
	api.HandleFunc("/albums/public", h.GetPublicAlbumsHandler).Methods(http.MethodGet)
	api.HandleFunc("/album/{albumId}", h.OptionalAuthMiddleware(h.GetAlbumHandler)).Methods(http.MethodGet)
	api.HandleFunc("/album/{albumId}", h.AuthMiddleware(h.UpdateAlbumHandler)).Methods(http.MethodPut)
	api.HandleFunc("/album/{albumId}", h.AuthMiddleware(h.DeleteAlbumHandler)).Methods(http.MethodDelete)

	// 歌曲相关的API端点
	api.HandleFunc("/album/{albumId}/song", h.AuthMiddleware(h.UploadSongHandler)).Methods(http.MethodPost)
	api.HandleFunc("/album/{albumId}/songs", h.OptionalAuthMiddleware(h.GetAlbumSongsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/song/{songId}/audio", h.OptionalAuthMiddleware(h.StreamSongHandler)).Methods(http.MethodGet)
	api.HandleFunc("/song/{songId}", h.AuthMiddleware(h.DeleteSongHandler)).Methods(http.MethodDelete)

	// 预检请求由 corsMiddleware 直接应答
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return router
}

// HealthHandler 检查数据库连接
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start 初始化依赖并启动 HTTP 服务，收到 SIGINT/SIGTERM 后优雅关闭
func Start(cfg *config.Config) error {
	ctx := context.Background()

	if err := cfg.CheckJWTSecret(); err != nil {
		return err
	}

	gdb, err := db.Open(cfg, logger.Named("gorm"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	store, err := storage.New(ctx, cfg, logger.Named("storage"))
	if err != nil {
		return fmt.Errorf("failed to initialize audio store: %w", err)
	}

	var revoker auth.Revoker = auth.NopRevoker{}
	if cfg.RedisEnabled {
		rdb, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer rdb.Close()
		revoker = auth.NewRedisRevoker(rdb)
		logger.Info("Successfully connected to Redis")
	}

	repo := repository.NewStore(gdb)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	svcLog := logger.Named("library")
	users, err := library.NewUserService(repo.Repos, repo, store, tokens, revoker, svcLog)
	if err != nil {
		return err
	}

	handler := NewAPIHandler(Services{
		Albums:  library.NewAlbumService(repo.Repos, repo, store, svcLog),
		Songs:   library.NewSongService(repo.Repos, store, audio.NewDetector(cfg.SupportedFormats), svcLog),
		Users:   users,
		Tokens:  tokens,
		Revoker: revoker,
		Ping:    func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	}, cfg, logger.Named("http"))

	// 设置服务器超时，上传需要较长的读取时间
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(handler),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stop:
	}
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
