package mapper

import (
	"github.com/nordvik-media/blog-api/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// ToPostDTO converts a Post model to its DTO
func ToPostDTO(post *domain.Post) domain.PostDTO {
	dto := domain.PostDTO{
		ID:        post.ID,
		Title:     post.Title,
		Author:    post.Author,
		Body:      post.Body,
		UserID:    post.UserID,
		CreatedAt: post.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: post.UpdatedAt.UTC().Format(timeFormat),
	}
	if post.ImageKey != nil {
		dto.ImageKey = *post.ImageKey
	}
	return dto
}

// ToPostDTOs converts a slice of Post models to DTOs
func ToPostDTOs(posts []domain.Post) []domain.PostDTO {
	dtos := make([]domain.PostDTO, len(posts))
	for i := range posts {
		dtos[i] = ToPostDTO(&posts[i])
	}
	return dtos
}

// ToUserDTO converts a User model to its DTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		Federated: user.PasswordHash == "",
		CreatedAt: user.CreatedAt.UTC().Format(timeFormat),
	}
}
