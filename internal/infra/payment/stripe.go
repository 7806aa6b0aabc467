package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"contesthub-server/common/helper"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

// Stripe Checkout Sessions REST 客户端（form 编码请求，JSON 响应）
type Stripe struct {
	apiBase    string
	secretKey  string
	currency   string
	successURL string
	cancelURL  string
	timeout    time.Duration
}

func NewStripe(opt Options) *Stripe {
	return &Stripe{
		apiBase:    strings.TrimRight(opt.APIBase, "/"),
		secretKey:  opt.SecretKey,
		currency:   opt.Currency,
		successURL: opt.SuccessURL,
		cancelURL:  opt.CancelURL,
		timeout:    opt.Timeout,
	}
}

func (s *Stripe) Name() string { return "stripe" }

type stripeSession struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	PaymentStatus   string            `json:"payment_status"`
	PaymentIntent   json.RawMessage   `json:"payment_intent"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Stripe) headers(form bool) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + s.secretKey}
	if form {
		h["Content-Type"] = "application/x-www-form-urlencoded"
	}
	return h
}

// CheckoutForm 构造创建会话的表单
func (s *Stripe) CheckoutForm(p CheckoutParams) url.Values {
	f := url.Values{}
	f.Set("mode", "payment")
	f.Set("customer_email", p.Email)
	f.Set("line_items[0][quantity]", "1")
	f.Set("line_items[0][price_data][currency]", s.currency)
	f.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(helper.ToMinorUnits(p.Price), 10))
	f.Set("line_items[0][price_data][product_data][name]", p.Name)
	if p.Description != "" {
		f.Set("line_items[0][price_data][product_data][description]", p.Description)
	}
	if p.Image != "" {
		f.Set("line_items[0][price_data][product_data][images][0]", p.Image)
	}
	f.Set("metadata["+MetaContestID+"]", strconv.FormatInt(p.ContestID, 10))
	f.Set("metadata["+MetaEmail+"]", p.Email)
	f.Set("success_url", s.successURL)
	f.Set("cancel_url", s.cancelURL)
	return f
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	body := []byte(s.CheckoutForm(p).Encode())
	raw, code, err := helper.HttpDoTimeoutForThirdPay(body, fasthttp.MethodPost, s.apiBase+"/v1/checkout/sessions", s.headers(true), s.deadline(ctx))
	if err != nil {
		return nil, errors.Wrapf(ErrProcessor, "create session: %v", err)
	}
	return s.decode(raw, code)
}

func (s *Stripe) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	uri := s.apiBase + "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	raw, code, err := helper.HttpDoTimeoutForThirdPay(nil, fasthttp.MethodGet, uri, s.headers(false), s.deadline(ctx))
	if err != nil {
		return nil, errors.Wrapf(ErrProcessor, "retrieve session: %v", err)
	}
	return s.decode(raw, code)
}

// deadline 取配置超时与 ctx 剩余时间中较小者
func (s *Stripe) deadline(ctx context.Context) time.Duration {
	t := s.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left > 0 && (t <= 0 || left < t) {
			t = left
		}
	}
	return t
}

func (s *Stripe) decode(raw []byte, code int) (*Session, error) {
	if code >= 300 {
		var se stripeError
		_ = json.Unmarshal(raw, &se)
		if code == fasthttp.StatusNotFound || se.Error.Code == "resource_missing" {
			return nil, errors.Wrap(ErrSessionNotFound, se.Error.Message)
		}
		msg := se.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("http status %d", code)
		}
		return nil, errors.Wrap(ErrProcessor, msg)
	}

	var ss stripeSession
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, errors.Wrapf(ErrProcessor, "decode session: %v", err)
	}
	out := &Session{
		ID:            ss.ID,
		URL:           ss.URL,
		PaymentStatus: ss.PaymentStatus,
		TransactionID: paymentIntentID(ss.PaymentIntent),
		Currency:      ss.Currency,
		AmountTotal:   ss.AmountTotal,
		CustomerEmail: ss.CustomerEmail,
		Metadata:      ss.Metadata,
	}
	if out.CustomerEmail == "" && ss.CustomerDetails != nil {
		out.CustomerEmail = ss.CustomerDetails.Email
	}
	return out, nil
}

// paymentIntentID payment_intent 可能是字符串 id，也可能是展开后的对象
func paymentIntentID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &obj)
	return obj.ID
}
