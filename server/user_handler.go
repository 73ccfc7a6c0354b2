package server

import (
	"net/http"

	"go.uber.org/zap"
)

// DeleteUserHandler deletes the caller's account with all its albums and songs.
func (h *APIHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if err := h.users.Delete(r.Context(), caller); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.log.Info("[User] 账号已删除", zap.Int64("userId", caller.UserID), zap.String("username", caller.Username))
	w.WriteHeader(http.StatusNoContent)
}
