package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// AddressDTO is an address book entry as returned to its owner.
type AddressDTO struct {
	ID uuid.UUID `json:"id"`
	types.Address
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateInput struct {
	Recipient string `json:"recipient" validate:"required,max=120"`
	Phone     string `json:"phone" validate:"required,max=20"`
	Line      string `json:"line" validate:"required,max=255"`
	Ward      string `json:"ward" validate:"max=120"`
	District  string `json:"district" validate:"max=120"`
	City      string `json:"city" validate:"required,max=120"`
	IsDefault bool   `json:"isDefault"`
}

type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*AddressDTO, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	// Snapshot returns the caller's address for copying onto an order.
	Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.Address, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
}

func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

// Create adds an address. The first address a user saves becomes the default.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*AddressDTO, error) {
	row := models.Address{
		UserID:    userID,
		Recipient: strings.TrimSpace(input.Recipient),
		Phone:     strings.TrimSpace(input.Phone),
		Line:      strings.TrimSpace(input.Line),
		Ward:      strings.TrimSpace(input.Ward),
		District:  strings.TrimSpace(input.District),
		City:      strings.TrimSpace(input.City),
	}
	if err := row.Snapshot().Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		n, err := txRepo.CountByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count addresses")
		}
		row.IsDefault = n == 0 || input.IsDefault
		if row.IsDefault && n > 0 {
			if err := txRepo.ClearDefault(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}
		if err := txRepo.Create(ctx, &row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(row)
	return &dto, nil
}

// Delete removes an owned address and promotes the newest remaining one when
// the default goes away.
func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.FindOwned(ctx, userID, addressID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}
		if row == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		if err := txRepo.Delete(ctx, addressID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
		}
		if !row.IsDefault {
			return nil
		}
		rest, err := txRepo.ListByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
		}
		if len(rest) == 0 {
			return nil
		}
		if err := txRepo.SetDefault(ctx, rest[0].ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote default address")
		}
		return nil
	})
}

func (s *service) Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.Address, error) {
	row, err := s.repo.FindOwned(ctx, userID, addressID)
	if err != nil {
		return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if row == nil {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address not found")
	}
	return row.Snapshot(), nil
}

func toDTO(row models.Address) AddressDTO {
	return AddressDTO{
		ID:        row.ID,
		Address:   row.Snapshot(),
		IsDefault: row.IsDefault,
		CreatedAt: row.CreatedAt,
	}
}
