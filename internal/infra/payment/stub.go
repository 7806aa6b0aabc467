package payment

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"contesthub-server/common/helper"
)

// Stub 本地开发用支付平台：会话信息编码进 session id 本身，无需外部状态；
// 所有会话都视为已支付。
type Stub struct {
	currency   string
	successURL string
}

const stubPrefix = "cs_stub_"

func NewStub(currency, successURL string) *Stub {
	if currency == "" {
		currency = "usd"
	}
	return &Stub{currency: currency, successURL: successURL}
}

func (s *Stub) Name() string { return "stub" }

type stubPayload struct {
	ContestID int64  `json:"c"`
	Email     string `json:"e"`
	Amount    int64  `json:"a"`
	Nonce     string `json:"n,omitempty"`
}

// StubSessionID 构造 stub 会话 id；nonce 用于区分同一付款人的多个会话
func StubSessionID(contestID int64, email string, amountMinor int64, nonce string) string {
	b, _ := json.Marshal(stubPayload{ContestID: contestID, Email: email, Amount: amountMinor, Nonce: nonce})
	return stubPrefix + base64.RawURLEncoding.EncodeToString(b)
}

func (s *Stub) CreateCheckoutSession(_ context.Context, p CheckoutParams) (*Session, error) {
	id := StubSessionID(p.ContestID, p.Email, helper.ToMinorUnits(p.Price), helper.NewNonce())
	u := s.successURL
	if u == "" {
		u = "/payment-success?session_id={CHECKOUT_SESSION_ID}"
	}
	return &Session{
		ID:            id,
		URL:           strings.ReplaceAll(u, "{CHECKOUT_SESSION_ID}", id),
		PaymentStatus: "unpaid",
		Currency:      s.currency,
		AmountTotal:   helper.ToMinorUnits(p.Price),
		CustomerEmail: p.Email,
		Metadata:      map[string]string{MetaContestID: strconv.FormatInt(p.ContestID, 10), MetaEmail: p.Email},
	}, nil
}

func (s *Stub) RetrieveSession(_ context.Context, sessionID string) (*Session, error) {
	if !strings.HasPrefix(sessionID, stubPrefix) {
		return nil, ErrSessionNotFound
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sessionID, stubPrefix))
	if err != nil {
		return nil, ErrSessionNotFound
	}
	var pl stubPayload
	if err := json.Unmarshal(raw, &pl); err != nil || pl.ContestID <= 0 || pl.Email == "" {
		return nil, ErrSessionNotFound
	}
	sum := sha256.Sum256([]byte(sessionID))
	return &Session{
		ID:            sessionID,
		PaymentStatus: StatusPaid,
		TransactionID: "pi_stub_" + hex.EncodeToString(sum[:])[:24],
		Currency:      s.currency,
		AmountTotal:   pl.Amount,
		CustomerEmail: pl.Email,
		Metadata:      map[string]string{MetaContestID: strconv.FormatInt(pl.ContestID, 10), MetaEmail: pl.Email},
	}, nil
}
