package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/nordvik-media/blog-api/internal/domain"
	"github.com/nordvik-media/blog-api/internal/mapper"
	"github.com/nordvik-media/blog-api/internal/repository"
	"github.com/nordvik-media/blog-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const imageKeyLength = 32

const imageKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// allowedImageExtensions are the only attachment types accepted. The check
// runs before any storage call so a bad upload never touches the store.
var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Attachment is an uploaded image file from a multipart post submission
type Attachment struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

// PostService handles blog post CRUD and the image save workflow
type PostService struct {
	postRepo *repository.PostRepository
	storage  storage.Storage
	logger   *zap.Logger
}

// NewPostService creates a new PostService instance
func NewPostService(postRepo *repository.PostRepository, storage storage.Storage, logger *zap.Logger) *PostService {
	return &PostService{
		postRepo: postRepo,
		storage:  storage,
		logger:   logger,
	}
}

// List returns all posts, newest first
func (s *PostService) List(ctx context.Context) ([]domain.PostDTO, error) {
	posts, err := s.postRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return mapper.ToPostDTOs(posts), nil
}

// GetByID retrieves a single post
func (s *PostService) GetByID(ctx context.Context, id uint) (*domain.PostDTO, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	dto := mapper.ToPostDTO(post)
	return &dto, nil
}

// Create saves a new post for the given user, with an optional image
func (s *PostService) Create(ctx context.Context, userID uint, req *domain.SavePostRequest, image *Attachment) (*domain.SavePostResult, error) {
	post := &domain.Post{UserID: userID}
	return s.save(ctx, post, req, image, s.postRepo.Create)
}

// Update saves changes to an existing post, optionally replacing its image.
// The previous image is removed from storage once the new one is uploaded;
// a failed removal is reported as a warning, not an error.
func (s *PostService) Update(ctx context.Context, id uint, req *domain.SavePostRequest, image *Attachment) (*domain.SavePostResult, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return s.save(ctx, post, req, image, s.postRepo.Update)
}

// save applies the text fields and runs the image workflow, then persists
// through the given repository operation.
func (s *PostService) save(ctx context.Context, post *domain.Post, req *domain.SavePostRequest, image *Attachment, persist func(context.Context, *domain.Post) error) (*domain.SavePostResult, error) {
	post.Title = req.Title
	post.Author = req.Author
	post.Body = req.Body

	var warning string
	var newKey string

	if image != nil {
		ext := strings.ToLower(filepath.Ext(image.Filename))
		if !allowedImageExtensions[ext] {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
		}

		key, err := newImageKey(ext)
		if err != nil {
			return nil, fmt.Errorf("failed to generate image key: %w", err)
		}

		if _, err := s.storage.Upload(ctx, key, image.ContentType, image.Data); err != nil {
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}

		if post.ImageKey != nil {
			if err := s.storage.Delete(ctx, *post.ImageKey); err != nil {
				s.logger.Warn("failed to delete replaced image",
					zap.String("imageKey", *post.ImageKey),
					zap.Uint("postID", post.ID),
					zap.Error(err),
				)
				warning = fmt.Sprintf("previous image %s could not be removed", *post.ImageKey)
			}
		}

		newKey = key
		post.ImageKey = &newKey
	}

	if err := persist(ctx, post); err != nil {
		if newKey != "" {
			// The freshly uploaded blob is now orphaned. It is not removed
			// here; orphans remain visible in the store under their random key.
			s.logger.Error("post not persisted, uploaded image orphaned",
				zap.String("imageKey", newKey),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("failed to save post: %w", err)
	}

	return &domain.SavePostResult{
		Post:    mapper.ToPostDTO(post),
		Warning: warning,
	}, nil
}

// DownloadImage streams a post's image from storage.
// Returns: reader, storage key, error.
func (s *PostService) DownloadImage(ctx context.Context, id uint) (io.ReadCloser, string, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get post: %w", err)
	}

	if post.ImageKey == nil {
		return nil, "", ErrNotFound
	}

	reader, err := s.storage.Download(ctx, *post.ImageKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}

	return reader, *post.ImageKey, nil
}

// newImageKey builds a random storage key keeping the original extension
func newImageKey(ext string) (string, error) {
	buf := make([]byte, imageKeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = imageKeyAlphabet[int(b)%len(imageKeyAlphabet)]
	}
	return string(buf) + ext, nil
}
