package coupons

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// RewardCodePrefix marks coupons minted by the reward wheel.
const RewardCodePrefix = "SPIN-"

// Service validates coupons for shoppers, manages them for sellers and tracks
// their usage on behalf of orders.
type Service interface {
	Validate(ctx context.Context, userID uuid.UUID, code string, orderAmount int64) (*CouponDTO, error)
	MyVouchers(ctx context.Context, userID uuid.UUID) ([]VoucherDTO, error)

	List(ctx context.Context) ([]CouponDTO, error)
	Create(ctx context.Context, input CouponInput) (*CouponDTO, error)
	Update(ctx context.Context, id uuid.UUID, input CouponInput) (*CouponDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ValidateTx is Validate on tx, returning the stored coupon.
	ValidateTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string, orderAmount int64) (*models.Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, coupon *models.Coupon) error
	Release(ctx context.Context, tx *gorm.DB, orderID, couponID uuid.UUID) error
	MintReward(ctx context.Context, tx *gorm.DB, userID uuid.UUID, reward Reward) (*models.Coupon, error)
	ExpireVouchers(ctx context.Context, now time.Time) (int64, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Validate(ctx context.Context, userID uuid.UUID, code string, orderAmount int64) (*CouponDTO, error) {
	coupon, err := s.ValidateTx(ctx, nil, userID, code, orderAmount)
	if err != nil {
		return nil, err
	}
	dto := ToCouponDTO(*coupon)
	return &dto, nil
}

func (s *service) ValidateTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string, orderAmount int64) (*models.Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please enter a coupon code")
	}
	repo := s.repo.WithTx(tx)
	coupon, err := repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Coupon code does not exist")
	}

	now := s.now().UTC()
	switch {
	case !coupon.IsActive:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "This coupon is no longer active")
	case now.Before(coupon.StartDate):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "This coupon is not yet valid")
	case now.After(coupon.EndDate):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "This coupon has expired")
	case coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "This coupon has reached its usage limit")
	}
	if minAmount := pricing.VND(coupon.MinOrderAmount); orderAmount < minAmount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("Orders must be at least %s to use this coupon", pricing.FormatVND(minAmount))).
			WithDetails(map[string]any{"minOrderAmount": minAmount})
	}

	vouchers, err := repo.VouchersForCoupon(ctx, coupon.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vouchers")
	}
	if err := checkOwnership(vouchers, userID); err != nil {
		return nil, err
	}
	return coupon, nil
}

// checkOwnership rejects personal coupons held by someone else and vouchers the
// caller already spent.
func checkOwnership(vouchers []models.UserCoupon, userID uuid.UUID) error {
	if len(vouchers) == 0 {
		return nil
	}
	var mine []models.UserCoupon
	personal := false
	for _, v := range vouchers {
		if v.Source == enums.UserCouponSourceSpin {
			personal = true
		}
		if v.UserID == userID {
			mine = append(mine, v)
		}
	}
	if len(mine) == 0 {
		if personal {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Coupon code does not exist")
		}
		return nil
	}
	for _, v := range mine {
		if v.Status == enums.UserCouponUnused {
			return nil
		}
	}
	if mine[len(mine)-1].Status == enums.UserCouponExpired {
		return pkgerrors.New(pkgerrors.CodeValidation, "This voucher has expired")
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "You have already used this voucher")
}

func (s *service) MyVouchers(ctx context.Context, userID uuid.UUID) ([]VoucherDTO, error) {
	rows, err := s.repo.ListVouchers(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vouchers")
	}
	out := make([]VoucherDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toVoucherDTO(row))
	}
	return out, nil
}

func (s *service) List(ctx context.Context) ([]CouponDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	out := make([]CouponDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToCouponDTO(row))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, input CouponInput) (*CouponDTO, error) {
	row := models.Coupon{}
	if err := applyInput(&row, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &row); err != nil {
		return nil, saveError(err)
	}
	dto := ToCouponDTO(row)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input CouponInput) (*CouponDTO, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if err := applyInput(row, input); err != nil {
		return nil, err
	}
	if row.UsageLimit > 0 && row.UsageLimit < row.UsedCount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usageLimit cannot be below usedCount")
	}
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, saveError(err)
	}
	dto := ToCouponDTO(*row)
	return &dto, nil
}

// Delete removes an unused coupon. Coupons already applied to orders can only
// be deactivated.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if row == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if row.UsedCount > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon has been used; deactivate it instead")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete coupon")
	}
	return nil
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, coupon *models.Coupon) error {
	repo := s.repo.WithTx(tx)
	ok, err := repo.IncrementUsage(ctx, coupon.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem coupon")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "This coupon has reached its usage limit")
	}

	vouchers, err := repo.VouchersForCoupon(ctx, coupon.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vouchers")
	}
	// A holder must flip one of their own vouchers. Validation ran without a
	// lock, so a concurrent checkout may have spent it since.
	held := false
	for _, v := range vouchers {
		if v.UserID != userID {
			continue
		}
		held = true
		if v.Status != enums.UserCouponUnused {
			continue
		}
		flipped, err := repo.MarkVoucherUsed(ctx, v.ID, orderID, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark voucher used")
		}
		if flipped {
			return nil
		}
	}
	if held {
		return pkgerrors.New(pkgerrors.CodeValidation, "You have already used this voucher")
	}
	return nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, orderID, couponID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if err := repo.DecrementUsage(ctx, couponID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release coupon")
	}
	if _, err := repo.RestoreVouchersForOrder(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore vouchers")
	}
	return nil
}

// MintReward creates a single-use coupon and hands it to userID as an unused
// voucher.
func (s *service) MintReward(ctx context.Context, tx *gorm.DB, userID uuid.UUID, reward Reward) (*models.Coupon, error) {
	if !reward.Type.IsValid() || reward.Value <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invalid reward definition")
	}
	days := reward.ValidDays
	if days <= 0 {
		days = 30
	}
	code, err := rewardCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reward code")
	}

	now := s.now().UTC()
	repo := s.repo.WithTx(tx)
	coupon := &models.Coupon{
		Code:           code,
		Description:    "Lucky wheel reward: " + reward.Label,
		Type:           reward.Type,
		Value:          decimal.NewFromInt(reward.Value),
		MinOrderAmount: decimal.Zero,
		StartDate:      now,
		EndDate:        now.AddDate(0, 0, days),
		UsageLimit:     1,
		IsActive:       true,
	}
	if err := repo.Create(ctx, coupon); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert reward coupon")
	}
	voucher := &models.UserCoupon{
		UserID:   userID,
		CouponID: coupon.ID,
		Status:   enums.UserCouponUnused,
		Source:   enums.UserCouponSourceSpin,
	}
	if err := repo.CreateVoucher(ctx, voucher); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert reward voucher")
	}
	return coupon, nil
}

func (s *service) ExpireVouchers(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.ExpireVouchers(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire vouchers")
	}
	return n, nil
}

func applyInput(row *models.Coupon, input CouponInput) error {
	couponType, err := enums.ParseCouponType(input.Type)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coupon type")
	}
	if couponType == enums.CouponTypePercentage && input.Value > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage coupons cannot exceed 100")
	}
	if !input.EndDate.After(input.StartDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "endDate must be after startDate")
	}
	code := NormalizeCode(input.Code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}

	row.Code = code
	row.Description = strings.TrimSpace(input.Description)
	row.Type = couponType
	row.Value = decimal.NewFromInt(input.Value)
	row.MinOrderAmount = decimal.NewFromInt(input.MinOrderAmount)
	row.StartDate = input.StartDate.UTC()
	row.EndDate = input.EndDate.UTC()
	row.UsageLimit = input.UsageLimit
	row.IsActive = input.IsActive == nil || *input.IsActive
	return nil
}

func saveError(err error) error {
	if db.IsUniqueViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "coupon code already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save coupon")
}

const rewardAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func rewardCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = rewardAlphabet[int(b)%len(rewardAlphabet)]
	}
	return RewardCodePrefix + string(buf), nil
}

func decimalFromVND(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
