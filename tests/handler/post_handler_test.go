package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/nordvik-media/blog-api/internal/auth"
	"github.com/nordvik-media/blog-api/internal/domain"
	"github.com/nordvik-media/blog-api/internal/http/handler"
	"github.com/nordvik-media/blog-api/internal/repository"
	"github.com/nordvik-media/blog-api/internal/service"
	"github.com/nordvik-media/blog-api/internal/storage"
	"github.com/nordvik-media/blog-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testMaxUploadMB int64 = 10

func setupPostHandler(t *testing.T) (*handler.PostHandler, *gorm.DB, *domain.User) {
	db := testutil.SetupTestDB(t)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	postService := service.NewPostService(repository.NewPostRepository(db), store, zap.NewNop())
	h := handler.NewPostHandler(postService, testMaxUploadMB, zap.NewNop())
	user := testutil.CreateTestUser(t, db, "author", "password123")
	return h, db, user
}

// withUser attaches an authenticated user context to the request
func withUser(req *http.Request, user *domain.User) *http.Request {
	ctx := auth.WithUserContext(req.Context(), &auth.UserContext{
		UserID:   user.ID,
		Username: user.Username,
	})
	return req.WithContext(ctx)
}

// withChiParam adds a chi route context carrying the id URL parameter
func withChiParam(req *http.Request, id uint) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", strconv.FormatUint(uint64(id), 10))
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// multipartBody builds a multipart post form, optionally with an image part
func multipartBody(t *testing.T, fields map[string]string, imageName string, imageContent []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	if imageName != "" {
		part, err := writer.CreateFormFile("image", imageName)
		require.NoError(t, err)
		_, err = part.Write(imageContent)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postFields() map[string]string {
	return map[string]string{
		"title":  "A day at the beach",
		"author": "Alice",
		"body":   "Sun and sand.",
	}
}

func TestPostHandler_Create(t *testing.T) {
	h, _, user := setupPostHandler(t)

	body, contentType := multipartBody(t, postFields(), "", nil)
	req := httptest.NewRequest("POST", "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Create(rec, withUser(req, user))

	require.Equal(t, http.StatusCreated, rec.Code)

	var result domain.SavePostResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "A day at the beach", result.Post.Title)
	assert.Equal(t, user.ID, result.Post.UserID)
	assert.Empty(t, result.Post.ImageKey)
}

func TestPostHandler_CreateWithImage(t *testing.T) {
	h, _, user := setupPostHandler(t)

	body, contentType := multipartBody(t, postFields(), "beach.png", []byte("png bytes"))
	req := httptest.NewRequest("POST", "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Create(rec, withUser(req, user))

	require.Equal(t, http.StatusCreated, rec.Code)

	var result domain.SavePostResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.NotEmpty(t, result.Post.ImageKey)
}

func TestPostHandler_CreateValidation(t *testing.T) {
	h, _, user := setupPostHandler(t)

	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"missing title", func(f map[string]string) { delete(f, "title") }},
		{"missing author", func(f map[string]string) { delete(f, "author") }},
		{"missing body", func(f map[string]string) { delete(f, "body") }},
		{"title too long", func(f map[string]string) { f["title"] = string(make([]byte, 151)) }},
		{"body too long", func(f map[string]string) { f["body"] = string(make([]byte, 801)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := postFields()
			tt.mutate(fields)

			body, contentType := multipartBody(t, fields, "", nil)
			req := httptest.NewRequest("POST", "/api/v1/posts", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			h.Create(rec, withUser(req, user))

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var apiErr domain.APIError
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
			assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
		})
	}
}

func TestPostHandler_CreateMalformedMultipart(t *testing.T) {
	h, _, user := setupPostHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/posts", bytes.NewReader([]byte("not a multipart body")))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")
	rec := httptest.NewRecorder()

	h.Create(rec, withUser(req, user))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostHandler_CreateOversizedBody(t *testing.T) {
	_, db, user := setupPostHandler(t)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	postService := service.NewPostService(repository.NewPostRepository(db), store, zap.NewNop())

	// 1MB limit, 2MB image
	h := handler.NewPostHandler(postService, 1, zap.NewNop())

	body, contentType := multipartBody(t, postFields(), "big.png", make([]byte, 2*1024*1024))
	req := httptest.NewRequest("POST", "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Create(rec, withUser(req, user))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPostHandler_CreateRejectsBadImageType(t *testing.T) {
	h, db, user := setupPostHandler(t)

	body, contentType := multipartBody(t, postFields(), "malware.exe", []byte("nope"))
	req := httptest.NewRequest("POST", "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Create(rec, withUser(req, user))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, db.Model(&domain.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPostHandler_List(t *testing.T) {
	h, db, user := setupPostHandler(t)
	testutil.CreateTestPost(t, db, user.ID, "first")
	testutil.CreateTestPost(t, db, user.ID, "second")

	req := httptest.NewRequest("GET", "/api/v1/posts", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var posts []domain.PostDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&posts))
	assert.Len(t, posts, 2)
}

func TestPostHandler_GetByID(t *testing.T) {
	h, db, user := setupPostHandler(t)
	post := testutil.CreateTestPost(t, db, user.ID, "findme")

	req := withChiParam(httptest.NewRequest("GET", "/api/v1/posts/1", nil), post.ID)
	rec := httptest.NewRecorder()

	h.GetByID(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var dto domain.PostDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
	assert.Equal(t, "findme", dto.Title)
}

func TestPostHandler_GetByIDNotFound(t *testing.T) {
	h, _, _ := setupPostHandler(t)

	req := withChiParam(httptest.NewRequest("GET", "/api/v1/posts/9999", nil), 9999)
	rec := httptest.NewRecorder()

	h.GetByID(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostHandler_Update(t *testing.T) {
	h, db, user := setupPostHandler(t)
	post := testutil.CreateTestPost(t, db, user.ID, "before")

	fields := postFields()
	fields["title"] = "after"
	body, contentType := multipartBody(t, fields, "", nil)
	req := withChiParam(httptest.NewRequest("PUT", "/api/v1/posts/1", body), post.ID)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Update(rec, withUser(req, user))

	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.SavePostResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "after", result.Post.Title)
}

func TestPostHandler_UpdateNotFound(t *testing.T) {
	h, _, user := setupPostHandler(t)

	body, contentType := multipartBody(t, postFields(), "", nil)
	req := withChiParam(httptest.NewRequest("PUT", "/api/v1/posts/9999", body), 9999)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Update(rec, withUser(req, user))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostHandler_Image(t *testing.T) {
	h, _, user := setupPostHandler(t)

	// Create a post with an image through the handler
	body, contentType := multipartBody(t, postFields(), "beach.png", []byte("png bytes"))
	req := httptest.NewRequest("POST", "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Create(rec, withUser(req, user))
	require.Equal(t, http.StatusCreated, rec.Code)

	var result domain.SavePostResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))

	imgReq := withChiParam(httptest.NewRequest("GET", "/api/v1/posts/1/image", nil), result.Post.ID)
	imgRec := httptest.NewRecorder()

	h.Image(imgRec, imgReq)

	require.Equal(t, http.StatusOK, imgRec.Code)
	assert.Equal(t, "image/png", imgRec.Header().Get("Content-Type"))
	content, err := io.ReadAll(imgRec.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), content)
}

func TestPostHandler_ImageNotFound(t *testing.T) {
	h, db, user := setupPostHandler(t)
	post := testutil.CreateTestPost(t, db, user.ID, "no image")

	req := withChiParam(httptest.NewRequest("GET", "/api/v1/posts/1/image", nil), post.ID)
	rec := httptest.NewRecorder()

	h.Image(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
