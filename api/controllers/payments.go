package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// VNPayCreate issues the gateway redirect URL for an unpaid VNPAY order.
func VNPayCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("payment"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input payments.CreateURLInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentURL, err := svc.CreateVNPayURL(r.Context(), userID, input, middleware.ClientIP(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"paymentUrl": paymentURL})
	}
}

// VNPayReturn verifies the browser redirect and reports the settled outcome.
func VNPayReturn(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("payment"))
			return
		}
		result, err := svc.HandleReturn(r.Context(), r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body := map[string]any{
			"orderId":      result.OrderID,
			"responseCode": result.ResponseCode,
		}
		if !result.Success {
			responses.WriteFailure(w, http.StatusOK, result.Message, body)
			return
		}
		body["message"] = result.Message
		responses.WriteSuccess(w, body)
	}
}

// VNPayIPN answers the gateway's server-to-server callback in its own format.
func VNPayIPN(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp payments.IPNResponse
		if svc == nil {
			resp = payments.IPNResponse{RspCode: payments.IPNUnknownError, Message: "Unknown error"}
		} else {
			resp = svc.HandleIPN(r.Context(), r.URL.Query())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
