package payments

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// IPN acknowledgement codes expected by the gateway.
const (
	IPNConfirmed        = "00"
	IPNOrderNotFound    = "01"
	IPNAlreadyConfirmed = "02"
	IPNInvalidAmount    = "04"
	IPNInvalidSignature = "97"
	IPNUnknownError     = "99"
)

// Service builds gateway redirects and settles orders from gateway callbacks.
type Service interface {
	CreateVNPayURL(ctx context.Context, userID uuid.UUID, input CreateURLInput, clientIP string) (string, error)
	HandleReturn(ctx context.Context, query url.Values) (*ReturnResult, error)
	HandleIPN(ctx context.Context, query url.Values) IPNResponse
}

type CreateURLInput struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
	Amount  int64     `json:"amount" validate:"required,gt=0"`
}

// ReturnResult is what the shopper's browser sees after the gateway redirect.
type ReturnResult struct {
	Success      bool      `json:"success"`
	OrderID      uuid.UUID `json:"orderId"`
	ResponseCode string    `json:"responseCode"`
	Message      string    `json:"message"`
}

type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartClearer interface {
	Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Signer *Signer
	Cart   cartClearer
	Outbox outbox.Emitter
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	signer *Signer
	cart   cartClearer
	outbox outbox.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Signer == nil:
		return nil, fmt.Errorf("vnpay signer required")
	case params.Cart == nil:
		return nil, fmt.Errorf("cart clearer required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		signer: params.Signer,
		cart:   params.Cart,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

func (s *service) CreateVNPayURL(ctx context.Context, userID uuid.UUID, input CreateURLInput, clientIP string) (string, error) {
	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || order.UserID != userID {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentMethod != enums.PaymentMethodVNPay {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "This order is not paid through VNPAY")
	}
	if order.Status == enums.OrderStatusCancelled {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "This order has been cancelled")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "This order has already been paid")
	}
	total := pricing.VND(order.Total)
	if input.Amount != total {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Payment amount does not match the order total").
			WithDetails(map[string]any{"expected": total, "received": input.Amount})
	}

	return s.signer.PaymentURL(PaymentRequest{
		TxnRef:    order.ID.String(),
		Amount:    total,
		OrderInfo: "Thanh toan don hang " + order.ID.String(),
		ClientIP:  clientIP,
		CreatedAt: s.now(),
	}), nil
}

func (s *service) HandleReturn(ctx context.Context, query url.Values) (*ReturnResult, error) {
	if !s.signer.Verify(query) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid payment signature")
	}
	outcome, err := s.settle(ctx, query)
	if err != nil {
		return nil, err
	}
	switch outcome.ack {
	case IPNOrderNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	case IPNInvalidAmount:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Payment amount does not match the order total")
	}

	code := query.Get("vnp_ResponseCode")
	result := &ReturnResult{
		OrderID:      outcome.order.ID,
		ResponseCode: code,
		Success:      outcome.order.PaymentStatus == enums.PaymentStatusPaid,
	}
	if result.Success {
		result.Message = ResponseMessage(ResponseSuccess)
	} else {
		result.Message = ResponseMessage(code)
	}
	return result, nil
}

func (s *service) HandleIPN(ctx context.Context, query url.Values) IPNResponse {
	if !s.signer.Verify(query) {
		return IPNResponse{RspCode: IPNInvalidSignature, Message: "Invalid signature"}
	}
	outcome, err := s.settle(ctx, query)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "vnpay ipn failed", err)
		}
		return IPNResponse{RspCode: IPNUnknownError, Message: "Unknown error"}
	}
	switch outcome.ack {
	case IPNOrderNotFound:
		return IPNResponse{RspCode: IPNOrderNotFound, Message: "Order not found"}
	case IPNInvalidAmount:
		return IPNResponse{RspCode: IPNInvalidAmount, Message: "Invalid amount"}
	case IPNAlreadyConfirmed:
		return IPNResponse{RspCode: IPNAlreadyConfirmed, Message: "Order already confirmed"}
	}
	return IPNResponse{RspCode: IPNConfirmed, Message: "Confirm Success"}
}

type settlement struct {
	ack   string
	order *models.Order
}

// settle applies a verified callback to its order. Repeated callbacks for a
// settled order change nothing and report IPNAlreadyConfirmed.
func (s *service) settle(ctx context.Context, query url.Values) (settlement, error) {
	orderID, err := uuid.Parse(query.Get("vnp_TxnRef"))
	if err != nil {
		return settlement{ack: IPNOrderNotFound}, nil
	}
	paidAmount, err := strconv.ParseInt(query.Get("vnp_Amount"), 10, 64)
	if err != nil {
		return settlement{ack: IPNInvalidAmount}, nil
	}
	code := query.Get("vnp_ResponseCode")
	txnStatus := query.Get("vnp_TransactionStatus")
	succeeded := code == ResponseSuccess && (txnStatus == "" || txnStatus == ResponseSuccess)

	var out settlement
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil || order.PaymentMethod != enums.PaymentMethodVNPay {
			out.ack = IPNOrderNotFound
			return nil
		}
		out.order = order
		if paidAmount != pricing.VND(order.Total)*100 {
			out.ack = IPNInvalidAmount
			return nil
		}
		if order.PaymentStatus == enums.PaymentStatusPaid || order.Status == enums.OrderStatusCancelled {
			out.ack = IPNAlreadyConfirmed
			return nil
		}
		if !succeeded && order.PaymentStatus == enums.PaymentStatusFailed {
			out.ack = IPNAlreadyConfirmed
			return nil
		}

		if succeeded {
			return s.markPaid(ctx, tx, repo, order, query.Get("vnp_TransactionNo"), &out)
		}
		return s.markFailed(ctx, tx, repo, order, code, &out)
	})
	if err != nil {
		return settlement{}, err
	}
	return out, nil
}

func (s *service) markPaid(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, ref string, out *settlement) error {
	now := s.now().UTC()
	ok, err := repo.MarkPaid(ctx, order.ID, ref, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !ok {
		out.ack = IPNAlreadyConfirmed
		return nil
	}
	order.PaymentStatus = enums.PaymentStatusPaid
	order.PaymentRef = &ref
	order.PaidAt = &now
	out.ack = IPNConfirmed

	if err := s.cart.Clear(ctx, tx, order.UserID); err != nil {
		return err
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderPaidEvent{
			OrderID:    order.ID,
			UserID:     order.UserID,
			Amount:     order.Total.String(),
			PaymentRef: ref,
			PaidAt:     now,
		},
	}); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, order.UserID.String()), order.ID.String())
		s.logg.Info(logCtx, "vnpay payment confirmed")
	}
	return nil
}

func (s *service) markFailed(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, code string, out *settlement) error {
	ok, err := repo.MarkFailed(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order payment failed")
	}
	if !ok {
		out.ack = IPNAlreadyConfirmed
		return nil
	}
	order.PaymentStatus = enums.PaymentStatusFailed
	out.ack = IPNConfirmed

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderPaymentFailedEvent{
			OrderID:      order.ID,
			UserID:       order.UserID,
			ResponseCode: code,
		},
	}); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithField(s.logg.WithOrderID(ctx, order.ID.String()), "response_code", code)
		s.logg.Warn(logCtx, "vnpay payment failed")
	}
	return nil
}
