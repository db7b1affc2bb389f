package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/nordvik-media/blog-api/internal/domain"
	"github.com/nordvik-media/blog-api/internal/repository"
	"github.com/nordvik-media/blog-api/internal/service"
	"github.com/nordvik-media/blog-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// imageKeyPattern is the shape of generated storage keys: 32 random
// uppercase letters or digits plus the original extension.
var imageKeyPattern = regexp.MustCompile(`^[A-Z0-9]{32}\.(jpg|jpeg|png)$`)

// fakeStorage is an in-memory Storage that records calls and can be told
// to fail uploads or deletes.
type fakeStorage struct {
	objects    map[string][]byte
	uploads    []string
	deletes    []string
	failUpload bool
	failDelete bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, contentType string, data io.Reader) (int64, error) {
	if f.failUpload {
		return 0, errors.New("upload failed")
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return 0, err
	}
	f.objects[key] = content
	f.uploads = append(f.uploads, key)
	return int64(len(content)), nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	content, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	if f.failDelete {
		return errors.New("delete failed")
	}
	delete(f.objects, key)
	return nil
}

func setupPostService(t *testing.T) (*service.PostService, *fakeStorage, *gorm.DB, *domain.User) {
	db := testutil.SetupTestDB(t)
	store := newFakeStorage()
	svc := service.NewPostService(repository.NewPostRepository(db), store, zap.NewNop())
	user := testutil.CreateTestUser(t, db, "author", "password123")
	return svc, store, db, user
}

func saveRequest() *domain.SavePostRequest {
	return &domain.SavePostRequest{
		Title:  "First post",
		Author: "Alice",
		Body:   "Hello, world",
	}
}

func imageAttachment(filename string) *service.Attachment {
	return &service.Attachment{
		Filename:    filename,
		ContentType: "image/png",
		Data:        bytes.NewReader([]byte("image bytes")),
	}
}

func TestPostService_CreateTextOnly(t *testing.T) {
	svc, store, db, user := setupPostService(t)

	result, err := svc.Create(context.Background(), user.ID, saveRequest(), nil)

	require.NoError(t, err)
	assert.Equal(t, "First post", result.Post.Title)
	assert.Equal(t, "Alice", result.Post.Author)
	assert.Equal(t, "Hello, world", result.Post.Body)
	assert.Empty(t, result.Post.ImageKey)
	assert.Empty(t, result.Warning)

	// Storage never touched for a text-only save
	assert.Empty(t, store.uploads)
	assert.Empty(t, store.deletes)

	var count int64
	require.NoError(t, db.Model(&domain.Post{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPostService_PersistFailureLeavesUploadedImage(t *testing.T) {
	svc, store, db, user := setupPostService(t)

	// Make the insert fail after the upload has already happened
	require.NoError(t, db.Migrator().DropTable(&domain.Post{}))

	_, err := svc.Create(context.Background(), user.ID, saveRequest(), imageAttachment("photo.png"))

	require.Error(t, err)

	// The uploaded object stays behind: logged as an orphan, never reclaimed
	require.Len(t, store.uploads, 1)
	_, ok := store.objects[store.uploads[0]]
	assert.True(t, ok, "uploaded object must remain in storage")
	assert.Empty(t, store.deletes, "no cleanup delete after persist failure")
}

func TestPostService_CreateWithImage(t *testing.T) {
	svc, store, _, user := setupPostService(t)

	result, err := svc.Create(context.Background(), user.ID, saveRequest(), imageAttachment("photo.png"))

	require.NoError(t, err)
	require.NotEmpty(t, result.Post.ImageKey)
	assert.Regexp(t, imageKeyPattern, result.Post.ImageKey)

	// The blob is stored under the generated key
	content, ok := store.objects[result.Post.ImageKey]
	require.True(t, ok)
	assert.Equal(t, []byte("image bytes"), content)
}

func TestPostService_CreateKeepsOriginalExtension(t *testing.T) {
	svc, _, _, user := setupPostService(t)

	tests := []struct {
		filename string
		wantExt  string
	}{
		{"photo.PNG", ".png"},
		{"scan.JPG", ".jpg"},
		{"pic.jpeg", ".jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			result, err := svc.Create(context.Background(), user.ID, saveRequest(), imageAttachment(tt.filename))
			require.NoError(t, err)
			assert.True(t, len(result.Post.ImageKey) == 32+len(tt.wantExt))
			assert.Equal(t, tt.wantExt, result.Post.ImageKey[32:])
		})
	}
}

func TestPostService_CreateRejectsUnsupportedExtension(t *testing.T) {
	svc, store, db, user := setupPostService(t)

	tests := []string{"document.pdf", "script.exe", "archive.gif", "noextension"}

	for _, filename := range tests {
		t.Run(filename, func(t *testing.T) {
			_, err := svc.Create(context.Background(), user.ID, saveRequest(), imageAttachment(filename))
			assert.ErrorIs(t, err, service.ErrUnsupportedFileType)
		})
	}

	// Rejection happens before any storage call or persist
	assert.Empty(t, store.uploads)
	var count int64
	require.NoError(t, db.Model(&domain.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPostService_CreateUploadFailureAbortsSave(t *testing.T) {
	svc, store, db, user := setupPostService(t)
	store.failUpload = true

	_, err := svc.Create(context.Background(), user.ID, saveRequest(), imageAttachment("photo.png"))

	require.Error(t, err)

	// Nothing persisted when the upload fails
	var count int64
	require.NoError(t, db.Model(&domain.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPostService_UpdateTextOnlyKeepsImage(t *testing.T) {
	svc, store, _, user := setupPostService(t)

	created, err := svc.Create(context.Background(), user.ID, saveRequest(), imageAttachment("photo.png"))
	require.NoError(t, err)
	store.uploads = nil

	req := saveRequest()
	req.Title = "Updated title"
	updated, err := svc.Update(context.Background(), created.Post.ID, req, nil)

	require.NoError(t, err)
	assert.Equal(t, "Updated title", updated.Post.Title)
	assert.Equal(t, created.Post.ImageKey, updated.Post.ImageKey)
	assert.Empty(t, store.uploads)
	assert.Empty(t, store.deletes)
}

func TestPostService_UpdateReplacesImage(t *testing.T) {
	svc, store, _, user := setupPostService(t)

	created, err := svc.Create(context.Background(), user.ID, saveRequest(), imageAttachment("old.png"))
	require.NoError(t, err)
	oldKey := created.Post.ImageKey

	updated, err := svc.Update(context.Background(), created.Post.ID, saveRequest(), imageAttachment("new.jpg"))

	require.NoError(t, err)
	assert.NotEqual(t, oldKey, updated.Post.ImageKey)
	assert.Empty(t, updated.Warning)

	// Old blob removed, new one present
	assert.Equal(t, []string{oldKey}, store.deletes)
	_, oldExists := store.objects[oldKey]
	assert.False(t, oldExists)
	_, newExists := store.objects[updated.Post.ImageKey]
	assert.True(t, newExists)
}

func TestPostService_UpdateDeleteFailureIsNonFatal(t *testing.T) {
	svc, store, _, user := setupPostService(t)

	created, err := svc.Create(context.Background(), user.ID, saveRequest(), imageAttachment("old.png"))
	require.NoError(t, err)
	oldKey := created.Post.ImageKey
	store.failDelete = true

	updated, err := svc.Update(context.Background(), created.Post.ID, saveRequest(), imageAttachment("new.png"))

	// The save still succeeds; the stranded blob is reported as a warning
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, updated.Post.ImageKey)
	assert.Contains(t, updated.Warning, oldKey)

	fetched, err := svc.GetByID(context.Background(), created.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Post.ImageKey, fetched.ImageKey)
}

func TestPostService_UpdateNotFound(t *testing.T) {
	svc, _, _, _ := setupPostService(t)

	_, err := svc.Update(context.Background(), 9999, saveRequest(), nil)

	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestPostService_GetByIDNotFound(t *testing.T) {
	svc, _, _, _ := setupPostService(t)

	_, err := svc.GetByID(context.Background(), 9999)

	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestPostService_ListNewestFirst(t *testing.T) {
	svc, _, db, user := setupPostService(t)

	first := testutil.CreateTestPost(t, db, user.ID, "oldest")
	second := testutil.CreateTestPost(t, db, user.ID, "newest")
	// Force distinct creation timestamps; SQLite timestamps can collide
	require.NoError(t, db.Model(first).Update("created_at", first.CreatedAt.Add(-time.Hour)).Error)

	posts, err := svc.List(context.Background())

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, first.ID, posts[1].ID)
}

func TestPostService_DownloadImage(t *testing.T) {
	svc, _, _, user := setupPostService(t)

	created, err := svc.Create(context.Background(), user.ID, saveRequest(), imageAttachment("photo.png"))
	require.NoError(t, err)

	reader, key, err := svc.DownloadImage(context.Background(), created.Post.ID)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, created.Post.ImageKey, key)
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("image bytes"), content)
}

func TestPostService_DownloadImageTextOnlyPost(t *testing.T) {
	svc, _, _, user := setupPostService(t)

	created, err := svc.Create(context.Background(), user.ID, saveRequest(), nil)
	require.NoError(t, err)

	_, _, err = svc.DownloadImage(context.Background(), created.Post.ID)

	assert.ErrorIs(t, err, service.ErrNotFound)
}
