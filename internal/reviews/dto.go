package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Content string `json:"content" validate:"max=2000"`
}

type CommentInput struct {
	Content  string     `json:"content" validate:"required,max=2000"`
	ParentID *uuid.UUID `json:"parentId,omitempty"`
}

type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	UserID    uuid.UUID `json:"userId"`
	Rating    int       `json:"rating"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewPage carries one page of reviews plus the product-wide rating summary.
type ReviewPage struct {
	Reviews       []ReviewDTO         `json:"reviews"`
	AverageRating float64             `json:"averageRating"`
	ReviewCount   int64               `json:"reviewCount"`
	Pagination    pagination.PageMeta `json:"pagination"`
}

type CommentDTO struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"productId"`
	UserID    uuid.UUID  `json:"userId"`
	ParentID  *uuid.UUID `json:"parentId,omitempty"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CommentPage struct {
	Comments   []CommentDTO        `json:"comments"`
	Pagination pagination.PageMeta `json:"pagination"`
}

func toReviewDTO(m models.Review) ReviewDTO {
	return ReviewDTO{
		ID:        m.ID,
		ProductID: m.ProductID,
		UserID:    m.UserID,
		Rating:    m.Rating,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func toCommentDTO(m models.Comment) CommentDTO {
	return CommentDTO{
		ID:        m.ID,
		ProductID: m.ProductID,
		UserID:    m.UserID,
		ParentID:  m.ParentID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
