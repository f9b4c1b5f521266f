package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

const (
	vnpVersion   = "2.1.0"
	vnpCommand   = "pay"
	vnpCurrency  = "VND"
	vnpOrderType = "other"
	vnpTimeFmt   = "20060102150405"

	// ResponseSuccess is the vnp_ResponseCode of a completed payment.
	ResponseSuccess = "00"
)

// vnpayZone is GMT+7; the gateway rejects timestamps in any other offset.
var vnpayZone = time.FixedZone("GMT+7", 7*60*60)

// PaymentRequest is what the signer needs to build a pay URL.
type PaymentRequest struct {
	TxnRef    string
	Amount    int64
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
}

// Signer builds and verifies VNPAY query strings.
type Signer struct {
	cfg config.VNPayConfig
}

func NewSigner(cfg config.VNPayConfig) (*Signer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("vnpay tmn code and hash secret required")
	}
	return &Signer{cfg: cfg}, nil
}

// PaymentURL returns the signed redirect URL for req. Amounts are sent in
// hundredths of a dong.
func (s *Signer) PaymentURL(req PaymentRequest) string {
	created := req.CreatedAt.In(vnpayZone)
	expire := s.cfg.ExpireMinutes
	if expire <= 0 {
		expire = 15
	}
	locale := s.cfg.Locale
	if locale == "" {
		locale = "vn"
	}
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := url.Values{}
	params.Set("vnp_Version", vnpVersion)
	params.Set("vnp_Command", vnpCommand)
	params.Set("vnp_TmnCode", s.cfg.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", vnpCurrency)
	params.Set("vnp_TxnRef", req.TxnRef)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", vnpOrderType)
	params.Set("vnp_Locale", locale)
	params.Set("vnp_ReturnUrl", s.cfg.ReturnURL)
	params.Set("vnp_IpAddr", ip)
	params.Set("vnp_CreateDate", created.Format(vnpTimeFmt))
	params.Set("vnp_ExpireDate", created.Add(time.Duration(expire)*time.Minute).Format(vnpTimeFmt))

	signData := canonicalQuery(params)
	return s.cfg.PayURL + "?" + signData + "&vnp_SecureHash=" + s.sign(signData)
}

// Verify checks vnp_SecureHash against the remaining vnp_ parameters.
func (s *Signer) Verify(query url.Values) bool {
	given := strings.ToLower(query.Get("vnp_SecureHash"))
	if given == "" {
		return false
	}
	fields := url.Values{}
	for key, values := range query {
		if !strings.HasPrefix(key, "vnp_") || key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if len(values) > 0 && values[0] != "" {
			fields.Set(key, values[0])
		}
	}
	expected := s.sign(canonicalQuery(fields))
	return hmac.Equal([]byte(expected), []byte(given))
}

func (s *Signer) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(s.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery joins params sorted by key with form escaping, the exact
// byte sequence the gateway hashes.
func canonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(params.Get(k)))
	}
	return strings.Join(parts, "&")
}

// ResponseMessage maps a vnp_ResponseCode to a customer-facing explanation.
func ResponseMessage(code string) string {
	switch code {
	case ResponseSuccess:
		return "Payment successful"
	case "07":
		return "Payment was flagged as suspicious and is on hold"
	case "09":
		return "Your card or account is not registered for internet banking"
	case "10":
		return "Card verification failed too many times"
	case "11":
		return "The payment window expired"
	case "12":
		return "Your card or account is locked"
	case "13":
		return "Incorrect one-time password"
	case "24":
		return "Payment was cancelled"
	case "51":
		return "Insufficient balance"
	case "65":
		return "Daily transaction limit exceeded"
	case "75":
		return "The bank is under maintenance"
	case "79":
		return "Payment password entered incorrectly too many times"
	default:
		return "Payment failed"
	}
}
