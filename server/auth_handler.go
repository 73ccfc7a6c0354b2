package server

import (
	"context"
	"net/http"
	"strings"

	"albumvault/core/auth"
	"albumvault/core/library"

	"go.uber.org/zap"
)

type ctxKey int

const claimsKey ctxKey = iota

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginHandler handles user login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	res, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.log.Warn("[Login] 登录失败", zap.String("username", req.Username), zap.Error(err))
		h.writeServiceError(w, r, err)
		return
	}
	h.log.Info("[Login] 登录成功", zap.String("username", res.User.Username))
	writeJSON(w, http.StatusOK, res)
}

// RegisterHandler handles user registration requests
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req library.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// LogoutHandler revokes the bearer token of the request.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if err := h.users.Logout(r.Context(), claims); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware rejects requests without a valid, unrevoked bearer token.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authorization header is required")
			return
		}
		claims, ok := h.authenticate(w, r, authHeader)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// OptionalAuthMiddleware lets anonymous requests through; a header that is
// present must still be valid.
func (h *APIHandler) OptionalAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, ok := h.authenticate(w, r, authHeader)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

func (h *APIHandler) authenticate(w http.ResponseWriter, r *http.Request, header string) (*auth.Claims, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
		return nil, false
	}
	claims, err := h.tokens.Parse(parts[1])
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return nil, false
	}
	revoked, err := h.revoker.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		h.log.Error("failed to check token revocation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return nil, false
	}
	if revoked {
		writeError(w, http.StatusUnauthorized, "unauthorized", "token revoked")
		return nil, false
	}
	return claims, true
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

// callerFromContext returns the principal of the token, or the anonymous
// principal when the request carried none.
func callerFromContext(ctx context.Context) library.Principal {
	if claims, ok := claimsFromContext(ctx); ok {
		return library.Principal{UserID: claims.UserID, Username: claims.Username()}
	}
	return library.Principal{}
}
