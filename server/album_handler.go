package server

import (
	"net/http"

	"albumvault/core/library"
)

// GetUserAlbumsHandler 获取当前用户的专辑（分页）
func (h *APIHandler) GetUserAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	albums, err := h.albums.ListMine(r.Context(), callerFromContext(r.Context()), page, size)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// GetPublicAlbumsHandler 获取公开专辑（分页）
func (h *APIHandler) GetPublicAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	albums, err := h.albums.ListPublic(r.Context(), page, size)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// CreateAlbumHandler 创建新专辑
func (h *APIHandler) CreateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	var in library.AlbumInput
	if !decodeJSON(w, r, &in) {
		return
	}
	album, err := h.albums.Create(r.Context(), callerFromContext(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, album)
}

// GetAlbumHandler 获取专辑详情及歌曲
func (h *APIHandler) GetAlbumHandler(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(w, r, "albumId")
	if !ok {
		return
	}
	album, err := h.albums.Get(r.Context(), albumID, callerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

// UpdateAlbumHandler 更新专辑信息
func (h *APIHandler) UpdateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(w, r, "albumId")
	if !ok {
		return
	}
	var in library.AlbumInput
	if !decodeJSON(w, r, &in) {
		return
	}
	album, err := h.albums.Update(r.Context(), albumID, callerFromContext(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

// DeleteAlbumHandler 删除专辑及其歌曲
func (h *APIHandler) DeleteAlbumHandler(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(w, r, "albumId")
	if !ok {
		return
	}
	if err := h.albums.Delete(r.Context(), albumID, callerFromContext(r.Context())); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
