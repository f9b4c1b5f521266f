package reviews

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service manages product reviews and comment threads.
type Service interface {
	ListReviews(ctx context.Context, productID uuid.UUID, page pagination.Page) (*ReviewPage, error)
	CreateReview(ctx context.Context, userID, productID uuid.UUID, input ReviewInput) (*ReviewDTO, error)
	ListComments(ctx context.Context, productID uuid.UUID, page pagination.Page) (*CommentPage, error)
	CreateComment(ctx context.Context, userID, productID uuid.UUID, input CommentInput) (*CommentDTO, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListReviews(ctx context.Context, productID uuid.UUID, page pagination.Page) (*ReviewPage, error) {
	page = page.Normalize()
	rows, total, err := s.repo.ListReviews(ctx, productID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	avg, err := s.repo.RatingAverage(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "average rating")
	}
	out := &ReviewPage{
		Reviews:       make([]ReviewDTO, 0, len(rows)),
		AverageRating: math.Round(avg*10) / 10,
		ReviewCount:   total,
		Pagination:    page.Meta(total),
	}
	for _, row := range rows {
		out.Reviews = append(out.Reviews, toReviewDTO(row))
	}
	return out, nil
}

func (s *service) CreateReview(ctx context.Context, userID, productID uuid.UUID, input ReviewInput) (*ReviewDTO, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Rating must be between 1 and 5")
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	review := models.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    input.Rating,
		Content:   strings.TrimSpace(input.Content),
	}
	if err := s.repo.CreateReview(ctx, &review); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "You have already reviewed this product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert review")
	}
	dto := toReviewDTO(review)
	return &dto, nil
}

func (s *service) ListComments(ctx context.Context, productID uuid.UUID, page pagination.Page) (*CommentPage, error) {
	page = page.Normalize()
	rows, total, err := s.repo.ListComments(ctx, productID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list comments")
	}
	out := &CommentPage{Comments: make([]CommentDTO, 0, len(rows)), Pagination: page.Meta(total)}
	for _, row := range rows {
		out.Comments = append(out.Comments, toCommentDTO(row))
	}
	return out, nil
}

func (s *service) CreateComment(ctx context.Context, userID, productID uuid.UUID, input CommentInput) (*CommentDTO, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Comment cannot be empty")
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	comment := models.Comment{ProductID: productID, UserID: userID, Content: content}
	if input.ParentID != nil && *input.ParentID != uuid.Nil {
		parent, err := s.repo.FindComment(ctx, *input.ParentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parent comment")
		}
		if parent == nil || parent.ProductID != productID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Parent comment does not belong to this product")
		}
		comment.ParentID = &parent.ID
	}
	if err := s.repo.CreateComment(ctx, &comment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert comment")
	}
	dto := toCommentDTO(comment)
	return &dto, nil
}

func (s *service) ensureProduct(ctx context.Context, productID uuid.UUID) error {
	ok, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}
