package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"contesthub-server/internal/common/response"
	"contesthub-server/internal/model"
	"contesthub-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	"github.com/shopspring/decimal"
)

type MockCheckout struct {
	StartCheckoutFunc func(ctx context.Context, in service.CheckoutInput) (*service.CheckoutOutput, error)
}

func (m *MockCheckout) StartCheckout(ctx context.Context, in service.CheckoutInput) (*service.CheckoutOutput, error) {
	return m.StartCheckoutFunc(ctx, in)
}

type MockSettlement struct {
	SettleFunc func(ctx context.Context, sessionID string) (*service.SettleOutput, error)
}

func (m *MockSettlement) Settle(ctx context.Context, sessionID string) (*service.SettleOutput, error) {
	return m.SettleFunc(ctx, sessionID)
}

type MockSubmissions struct {
	SubmitFunc func(ctx context.Context, in service.SubmitInput) (*service.SubmitOutput, error)
}

func (m *MockSubmissions) Submit(ctx context.Context, in service.SubmitInput) (*service.SubmitOutput, error) {
	return m.SubmitFunc(ctx, in)
}

func (m *MockSubmissions) ListForOwner(context.Context, int64, string) ([]model.Submission, error) {
	return nil, service.ErrForbidden
}

// serve 注册单条路由并执行请求；X-Test-Email 模拟认证过滤器注入的身份
func serve(t *testing.T, c beego.ControllerInterface, pattern, mapping, method, path, email, body string) (*httptest.ResponseRecorder, response.APIResponse) {
	t.Helper()
	cr := beego.NewControllerRegister()
	_ = cr.InsertFilter("/*", beego.BeforeExec, func(ctx *beegocontext.Context) {
		if e := ctx.Input.Header("X-Test-Email"); e != "" {
			ctx.Input.SetData("email", e)
		}
	})
	cr.Add(pattern, c, beego.WithRouterMethods(c, mapping))

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set("X-Test-Email", email)
	}
	rec := httptest.NewRecorder()
	cr.ServeHTTP(rec, req)

	var out response.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec, out
}

func TestCheckoutController(t *testing.T) {
	var got service.CheckoutInput
	mock := &MockCheckout{StartCheckoutFunc: func(_ context.Context, in service.CheckoutInput) (*service.CheckoutOutput, error) {
		got = in
		if in.Price.IsZero() {
			return nil, fmt.Errorf("%w: price must be at least 0.01", service.ErrInvalidRequest)
		}
		if in.ContestID == 9 {
			return nil, service.ErrAlreadyPaid
		}
		if in.ContestID == 13 {
			return nil, fmt.Errorf("%w: card_declined", service.ErrExternalService)
		}
		return &service.CheckoutOutput{URL: "https://pay.example/cs_1", SessionID: "cs_1"}, nil
	}}
	ctl := &CheckoutController{Checkout: mock}
	post := func(email, body string) (*httptest.ResponseRecorder, response.APIResponse) {
		return serve(t, ctl, "/checkout-session", "post:CreateSession", http.MethodPost, "/checkout-session", email, body)
	}

	rec, out := post("p@x.com", `{"contestId":"5","price":"10.50","name":"Logo"}`)
	if rec.Code != 200 || out.Code != response.CodeSuccess {
		t.Fatalf("ok: %d %+v", rec.Code, out)
	}
	if data, _ := out.Data.(map[string]interface{}); data["url"] != "https://pay.example/cs_1" {
		t.Fatalf("data = %#v", out.Data)
	}
	if got.ContestID != 5 || got.Email != "p@x.com" || !got.Price.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("input = %+v", got)
	}

	if rec, _ = post("p@x.com", `{"contestId":5,"price":"3","email":"P@X.com"}`); rec.Code != 200 || got.Email != "p@x.com" {
		t.Fatalf("mixed-case email: %d %q", rec.Code, got.Email)
	}

	if rec, out = post("p@x.com", `{"contestId":5,"price":0}`); rec.Code != 400 || out.Error == "" {
		t.Fatalf("zero price: %d %+v", rec.Code, out)
	}
	if rec, _ = post("p@x.com", `{"contestId":5}`); rec.Code != 400 {
		t.Fatalf("missing price: %d", rec.Code)
	}
	if rec, out = post("p@x.com", `{"contestId":9,"price":5}`); rec.Code != 400 || out.Code != response.CodeAlreadyPaid {
		t.Fatalf("already paid: %d %+v", rec.Code, out)
	}
	if rec, _ = post("p@x.com", `{"contestId":5,"price":5,"email":"other@x.com"}`); rec.Code != 403 {
		t.Fatalf("foreign email: %d", rec.Code)
	}
	rec, out = post("p@x.com", `{"contestId":13,"price":5}`)
	if rec.Code != 500 || !strings.Contains(out.Error, "card_declined") {
		t.Fatalf("processor error passthrough: %d %+v", rec.Code, out)
	}
	if rec, _ = post("p@x.com", `{not json`); rec.Code != 400 {
		t.Fatalf("bad json: %d", rec.Code)
	}
}

func TestPaymentSuccessController(t *testing.T) {
	calls := 0
	mock := &MockSettlement{SettleFunc: func(_ context.Context, id string) (*service.SettleOutput, error) {
		calls++
		switch id {
		case "cs_missing":
			return nil, service.ErrSessionNotFound
		case "cs_unpaid":
			return nil, service.ErrPaymentNotCompleted
		case "cs_db":
			return nil, fmt.Errorf("%w: deadlock", service.ErrStore)
		}
		msg := service.MsgPaymentRecorded
		if calls > 1 {
			msg = service.MsgAlreadyExists
		}
		return &service.SettleOutput{TransactionID: "pi_1", ContestID: 5, Message: msg}, nil
	}}
	ctl := &PaymentController{Settlement: mock}
	post := func(body string) (*httptest.ResponseRecorder, response.APIResponse) {
		return serve(t, ctl, "/payment-success", "post:Success", http.MethodPost, "/payment-success", "p@x.com", body)
	}

	rec, out := post(`{"sessionId":"cs_1"}`)
	data, _ := out.Data.(map[string]interface{})
	if rec.Code != 200 || data["transactionId"] != "pi_1" || data["message"] != service.MsgPaymentRecorded {
		t.Fatalf("first: %d %+v", rec.Code, out)
	}
	_, out = post(`{"sessionId":"cs_1"}`)
	if data, _ := out.Data.(map[string]interface{}); data["message"] != service.MsgAlreadyExists {
		t.Fatalf("second: %+v", out)
	}

	before := calls
	if rec, _ = post(`{"sessionId":"  "}`); rec.Code != 400 || calls != before {
		t.Fatalf("empty session: %d", rec.Code)
	}
	if rec, _ = post(`{"sessionId":"cs_missing"}`); rec.Code != 404 {
		t.Fatalf("missing: %d", rec.Code)
	}
	if rec, _ = post(`{"sessionId":"cs_unpaid"}`); rec.Code != 400 {
		t.Fatalf("unpaid: %d", rec.Code)
	}
	rec, out = post(`{"sessionId":"cs_db"}`)
	if rec.Code != 500 || strings.Contains(out.Error, "deadlock") {
		t.Fatalf("store errors must not leak: %d %+v", rec.Code, out)
	}
}

func TestSubmitController(t *testing.T) {
	seen := map[string]bool{}
	mock := &MockSubmissions{SubmitFunc: func(_ context.Context, in service.SubmitInput) (*service.SubmitOutput, error) {
		key := fmt.Sprintf("%d|%s", in.ContestID, in.Email)
		if seen[key] {
			return &service.SubmitOutput{Message: service.MsgTaskAlreadyAdded}, nil
		}
		seen[key] = true
		return &service.SubmitOutput{Inserted: true, ID: 1, Message: service.MsgTaskAdded}, nil
	}}
	ctl := &SubmissionController{Submissions: mock}
	post := func() (*httptest.ResponseRecorder, response.APIResponse) {
		return serve(t, ctl, "/submit-task", "post:Submit", http.MethodPost, "/submit-task", "p@x.com", `{"contestId":3,"task":"https://x"}`)
	}

	rec, out := post()
	if data, _ := out.Data.(map[string]interface{}); rec.Code != 200 || data["message"] != service.MsgTaskAdded {
		t.Fatalf("first: %d %+v", rec.Code, out)
	}
	rec, out = post()
	if data, _ := out.Data.(map[string]interface{}); rec.Code != 200 || data["message"] != service.MsgTaskAlreadyAdded {
		t.Fatalf("second: %d %+v", rec.Code, out)
	}

	rec, _ = serve(t, ctl, "/submissions/:contestId", "get:List", http.MethodGet, "/submissions/3", "p@x.com", "")
	if rec.Code != 403 {
		t.Fatalf("list by non-owner: %d", rec.Code)
	}
}

func TestHealthReadyz(t *testing.T) {
	ctl := &HealthController{Probes: map[string]Probe{
		"mysql": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return fmt.Errorf("connection refused") },
	}}
	cr := beego.NewControllerRegister()
	cr.Add("/readyz", ctl, beego.WithRouterMethods(ctl, "get:Readyz"))
	rec := httptest.NewRecorder()
	cr.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != 503 || !strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("readyz: %d %s", rec.Code, rec.Body.String())
	}
}
