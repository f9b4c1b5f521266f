package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Address is an entry in a user's address book.
type Address struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Recipient string    `gorm:"column:recipient;not null"`
	Phone     string    `gorm:"column:phone;not null"`
	Line      string    `gorm:"column:line;not null"`
	Ward      string    `gorm:"column:ward"`
	District  string    `gorm:"column:district"`
	City      string    `gorm:"column:city;not null"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Snapshot copies the address into the value stored on orders.
func (a Address) Snapshot() types.Address {
	return types.Address{
		Recipient: a.Recipient,
		Phone:     a.Phone,
		Line:      a.Line,
		Ward:      a.Ward,
		District:  a.District,
		City:      a.City,
	}
}
