package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Service places orders for shoppers and drives their lifecycle for sellers.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderFeed, error)

	List(ctx context.Context, q SellerQuery) (*SellerPage, error)
	UpdateStatus(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
	// CancelStalePayments cancels gateway orders still unpaid after cutoff.
	CancelStalePayments(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressBook interface {
	Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.Address, error)
}

type catalogReader interface {
	Catalog(ctx context.Context, ids []uuid.UUID) (pricing.Catalog, error)
}

type couponLedger interface {
	ValidateTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string, orderAmount int64) (*models.Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, coupon *models.Coupon) error
	Release(ctx context.Context, tx *gorm.DB, orderID, couponID uuid.UUID) error
}

type rankCreditor interface {
	CreditOrder(ctx context.Context, tx *gorm.DB, userID uuid.UUID, total int64) error
}

type cartClearer interface {
	Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

// ServiceParams groups dependencies for the orders service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Addresses addressBook
	Catalog   catalogReader
	Coupons   couponLedger
	Rank      rankCreditor
	Cart      cartClearer
	Outbox    outbox.Emitter
	Metrics   *metrics.DomainMetrics
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	addresses addressBook
	catalog   catalogReader
	coupons   couponLedger
	rank      rankCreditor
	cart      cartClearer
	outbox    outbox.Emitter
	metrics   *metrics.DomainMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address book required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog reader required")
	case params.Coupons == nil:
		return nil, fmt.Errorf("coupon ledger required")
	case params.Rank == nil:
		return nil, fmt.Errorf("rank creditor required")
	case params.Cart == nil:
		return nil, fmt.Errorf("cart clearer required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		addresses: params.Addresses,
		catalog:   params.Catalog,
		coupons:   params.Coupons,
		rank:      params.Rank,
		cart:      params.Cart,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Create prices the submitted lines against the live catalog, applies the
// coupon and stores the order in one transaction.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error) {
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Unsupported payment method")
	}
	cart, productIDs, err := cartFromItems(input.Items)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty")
	}

	address, err := s.addresses.Snapshot(ctx, userID, input.AddressID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Catalog(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	if stale := pricing.StaleKeys(cart, catalog); len(stale) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Some items in your cart are no longer available").
			WithDetails(map[string]any{"items": stale})
	}
	lines := pricing.Lines(cart, catalog)
	subtotal := pricing.Amount(cart, catalog)

	var order models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var coupon *models.Coupon
		discount := int64(0)
		if input.CouponCode != nil && coupons.NormalizeCode(*input.CouponCode) != "" {
			coupon, err = s.coupons.ValidateTx(ctx, tx, userID, *input.CouponCode, subtotal)
			if err != nil {
				return err
			}
			discount = pricing.Discount(subtotal, &pricing.Coupon{Code: coupon.Code, Type: coupon.Type, Value: coupon.Value})
		}
		total := pricing.Total(subtotal, discount)

		order = models.Order{
			UserID:          userID,
			ShippingAddress: address,
			Subtotal:        decimal.NewFromInt(subtotal),
			Discount:        decimal.NewFromInt(discount),
			Total:           decimal.NewFromInt(total),
			PaymentMethod:   method,
			PaymentStatus:   enums.PaymentStatusPending,
			Status:          enums.OrderStatusPending,
			Items:           orderItems(lines),
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
			order.CouponCode = &coupon.Code
		}
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, &order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
		if coupon != nil {
			if err := s.coupons.Redeem(ctx, tx, userID, order.ID, coupon); err != nil {
				return err
			}
		}
		if !method.RedirectsToGateway() {
			if err := s.cart.Clear(ctx, tx, userID); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.RoleCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				UserID:        userID,
				Total:         order.Total.String(),
				Discount:      order.Discount.String(),
				CouponCode:    order.CouponCode,
				PaymentMethod: method,
				ItemCount:     pricing.Count(cart),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated(string(method))
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), order.ID.String())
		s.logg.Info(logCtx, "order created")
	}
	dto := ToOrderDTO(order)
	return &dto, nil
}

// cartFromItems merges repeated lines and drops non-positive quantities.
func cartFromItems(items []ItemInput) (pricing.Cart, []uuid.UUID, error) {
	cart := pricing.Cart{}
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, item := range items {
		if item.Quantity < 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
		}
		if item.Quantity == 0 || item.ProductID == uuid.Nil {
			continue
		}
		variant := ""
		if item.VariantID != nil && *item.VariantID != uuid.Nil {
			variant = item.VariantID.String()
		}
		key := pricing.Key(item.ProductID.String(), variant)
		cart[key] += item.Quantity
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return cart, ids, nil
}

func orderItems(lines []pricing.Line) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		item := models.OrderItem{
			ProductID:  uuid.MustParse(line.ProductID),
			Name:       line.Name,
			Attributes: line.Attributes,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			LineTotal:  line.LineTotal,
		}
		if line.VariantID != "" {
			id := uuid.MustParse(line.VariantID)
			item.VariantID = &id
		}
		out = append(out, item)
	}
	return out
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := ToOrderDTO(*order)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderFeed, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	rows, next := pagination.Window(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	feed := &OrderFeed{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		feed.Orders = append(feed.Orders, ToOrderDTO(row))
	}
	return feed, nil
}

func (s *service) List(ctx context.Context, q SellerQuery) (*SellerPage, error) {
	q.Page = q.Page.Normalize()
	rows, total, err := s.repo.ListForSeller(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToOrderDTO(row))
	}
	return &SellerPage{Orders: out, Pagination: q.Page.Meta(total)}, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	next, err := enums.ParseOrderStatus(input.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.transition(ctx, tx, actor, orderID, next, input.Reason)
	})
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil || order == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	dto := ToOrderDTO(*order)
	return &dto, nil
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, actor outbox.ActorRef, orderID uuid.UUID, next enums.OrderStatus, reason string) error {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.Status.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, next)).
			WithDetails(map[string]any{"from": order.Status, "to": next})
	}
	if next == enums.OrderStatusProcessing &&
		order.PaymentMethod.RedirectsToGateway() &&
		order.PaymentStatus != enums.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is awaiting online payment")
	}

	now := s.now().UTC()
	updates := map[string]any{"status": next}
	switch next {
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
		if order.PaymentStatus != enums.PaymentStatusPaid {
			updates["payment_status"] = enums.PaymentStatusPaid
			updates["paid_at"] = now
		}
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}
	ok, err := repo.TransitionStatus(ctx, orderID, order.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}

	switch next {
	case enums.OrderStatusDelivered:
		if err := s.rank.CreditOrder(ctx, tx, order.UserID, pricing.VND(order.Total)); err != nil {
			return err
		}
	case enums.OrderStatusCancelled:
		if order.CouponID != nil && order.PaymentStatus != enums.PaymentStatusPaid {
			if err := s.coupons.Release(ctx, tx, order.ID, *order.CouponID); err != nil {
				return err
			}
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID: order.ID,
			UserID:  order.UserID,
			From:    order.Status,
			To:      next,
			Reason:  reason,
		},
	})
}

func (s *service) CancelStalePayments(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.repo.ListStalePending(ctx, enums.PaymentMethodVNPay, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}
	cancelled := 0
	system := outbox.ActorRef{Role: "system"}
	for _, row := range rows {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.transition(ctx, tx, system, row.ID, enums.OrderStatusCancelled, "payment window expired")
		})
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				continue
			}
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}
	paid, err := s.repo.SumTotals(ctx, enums.PaymentStatusPaid)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum paid orders")
	}
	pending, err := s.repo.SumTotals(ctx, enums.PaymentStatusPending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum pending orders")
	}
	top, err := s.repo.TopProducts(ctx, 5)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "top products")
	}

	out := &Dashboard{
		OrdersByStatus: map[string]int64{},
		PaidRevenue:    pricing.VND(paid),
		PendingPayment: pricing.VND(pending),
		TopProducts:    make([]TopProduct, 0, len(top)),
	}
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusProcessing,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	} {
		n := counts[string(status)]
		out.OrdersByStatus[string(status)] = n
		out.TotalOrders += n
	}
	for _, row := range top {
		out.TopProducts = append(out.TopProducts, TopProduct{
			ProductID: row.ProductID,
			Name:      row.Name,
			Quantity:  row.Quantity,
			Revenue:   pricing.VND(row.Revenue),
		})
	}
	return out, nil
}
