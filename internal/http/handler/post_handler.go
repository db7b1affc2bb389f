package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nordvik-media/blog-api/internal/auth"
	"github.com/nordvik-media/blog-api/internal/domain"
	"github.com/nordvik-media/blog-api/internal/service"
	"go.uber.org/zap"
)

type PostHandler struct {
	postService *service.PostService
	maxUploadMB int64
	logger      *zap.Logger
}

func NewPostHandler(postService *service.PostService, maxUploadMB int64, logger *zap.Logger) *PostHandler {
	return &PostHandler{
		postService: postService,
		maxUploadMB: maxUploadMB,
		logger:      logger,
	}
}

// List godoc
// @Summary List posts
// @Description Get all posts, newest first
// @Tags Posts
// @Produce json
// @Success 200 {array} domain.PostDTO
// @Failure 500 {object} domain.APIError
// @Router /posts [get]
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list posts", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list posts")
		return
	}

	respondJSON(w, http.StatusOK, posts)
}

// GetByID godoc
// @Summary Get post
// @Tags Posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} domain.PostDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /posts/{id} [get]
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePostID(w, r)
	if !ok {
		return
	}

	post, err := h.postService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Post not found")
			return
		}
		h.logger.Error("failed to get post", zap.Error(err), zap.Uint("post_id", id))
		respondWithError(w, http.StatusInternalServerError, "Failed to get post")
		return
	}

	respondJSON(w, http.StatusOK, post)
}

// Create godoc
// @Summary Create post
// @Description Create a post from a multipart form, with an optional image attachment
// @Tags Posts
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title (max 150 characters)"
// @Param author formData string true "Author (max 75 characters)"
// @Param body formData string true "Body (max 800 characters)"
// @Param image formData file false "Image attachment (jpg or png)"
// @Success 201 {object} domain.SavePostResult
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security SessionCookie
// @Router /posts [post]
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.MustFromContext(r.Context())

	req, image, ok := h.parseSaveForm(w, r)
	if !ok {
		return
	}

	result, err := h.postService.Create(r.Context(), userCtx.UserID, req, image)
	if err != nil {
		h.respondSaveError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// Update godoc
// @Summary Update post
// @Description Update a post from a multipart form. Uploading a new image replaces the old one.
// @Tags Posts
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Post ID"
// @Param title formData string true "Title (max 150 characters)"
// @Param author formData string true "Author (max 75 characters)"
// @Param body formData string true "Body (max 800 characters)"
// @Param image formData file false "Image attachment (jpg or png)"
// @Success 200 {object} domain.SavePostResult
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security SessionCookie
// @Router /posts/{id} [put]
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePostID(w, r)
	if !ok {
		return
	}

	req, image, ok := h.parseSaveForm(w, r)
	if !ok {
		return
	}

	result, err := h.postService.Update(r.Context(), id, req, image)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Post not found")
			return
		}
		h.respondSaveError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Image godoc
// @Summary Download post image
// @Tags Posts
// @Produce image/jpeg
// @Produce image/png
// @Param id path int true "Post ID"
// @Success 200
// @Failure 404 {object} domain.APIError
// @Router /posts/{id}/image [get]
func (h *PostHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePostID(w, r)
	if !ok {
		return
	}

	reader, key, err := h.postService.DownloadImage(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Image not found")
			return
		}
		h.logger.Error("failed to download image", zap.Error(err), zap.Uint("post_id", id))
		respondWithError(w, http.StatusBadGateway, "Failed to download image")
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	_, _ = io.Copy(w, reader)
}

// parseSaveForm reads the multipart post submission: required text fields
// plus an optional "image" file. Returns ok=false after writing the error
// response.
func (h *PostHandler) parseSaveForm(w http.ResponseWriter, r *http.Request) (*domain.SavePostRequest, *service.Attachment, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(h.maxUploadMB * 1024 * 1024); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request too large: maximum size is %dMB", h.maxUploadMB))
			return nil, nil, false
		}
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, nil, false
	}

	req := &domain.SavePostRequest{
		Title:  r.FormValue("title"),
		Author: r.FormValue("author"),
		Body:   r.FormValue("body"),
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return nil, nil, false
	}

	var image *service.Attachment
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		// Closed by ParseMultipartForm cleanup when the request ends
		image = &service.Attachment{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        file,
		}
	case errors.Is(err, http.ErrMissingFile):
		// Text-only save
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid image upload")
		return nil, nil, false
	}

	return req, image, true
}

// respondSaveError maps post save failures onto HTTP responses
func (h *PostHandler) respondSaveError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrUnsupportedFileType) {
		respondWithError(w, http.StatusBadRequest, "Unsupported image type: only jpg and png are allowed")
		return
	}
	h.logger.Error("failed to save post", zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "Failed to save post")
}

func parsePostID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid post ID")
		return 0, false
	}
	return uint(id), true
}
