package api

import (
	"context"
	"strings"
	"time"

	"contesthub-server/internal/common/helper"
	"contesthub-server/internal/common/response"

	beego "github.com/beego/beego/v2/server/web"
)

// TokenManager 令牌签发与注销
type TokenManager interface {
	IssueToken(email string) (string, time.Time, error)
	Revoke(ctx context.Context, token string) error
}

// AuthController 演示模式签发令牌与注销
type AuthController struct {
	beego.Controller
	Tokens   TokenManager
	DemoMode bool
}

type IssueTokenRequestParam struct {
	Email string `json:"email"`
}

// Issue 演示模式下为 email 签发令牌：POST /jwt
// 生产环境由外部身份服务签发，此接口返回 404
func (c *AuthController) Issue() {
	traceID := helper.GetTraceID(c.Ctx)
	if !c.DemoMode {
		response.NotFound(&c.Controller, "token issuing is disabled", traceID)
		return
	}
	req, ok, msg := helper.DecodeJSON[IssueTokenRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		response.BadRequest(&c.Controller, "valid email is required", traceID)
		return
	}
	token, expiresAt, err := c.Tokens.IssueToken(email)
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt.UnixMilli(),
	}, traceID)
}

// Logout 注销当前令牌：POST /logout
func (c *AuthController) Logout() {
	traceID := helper.GetTraceID(c.Ctx)
	token, _ := c.Ctx.Input.GetData("token").(string)
	if token == "" {
		response.Unauthorized(&c.Controller, "missing authorization token", traceID)
		return
	}
	if err := c.Tokens.Revoke(c.Ctx.Request.Context(), token); err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{"message": "logged out"}, traceID)
}
