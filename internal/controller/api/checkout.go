package api

import (
	"strings"

	"contesthub-server/internal/common/helper"
	"contesthub-server/internal/common/response"
	"contesthub-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// CheckoutController 发起报名支付：POST /checkout-session
type CheckoutController struct {
	beego.Controller
	Checkout service.CheckoutService
}

// CheckoutRequestParam 发起支付请求参数
type CheckoutRequestParam struct {
	ContestID   helper.ID    `json:"contestId"`
	Email       string       `json:"email"`
	Price       helper.Money `json:"price"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Image       string       `json:"image"`
}

// CreateSession 返回支付平台收银台地址 {url}
func (c *CheckoutController) CreateSession() {
	traceID := helper.GetTraceID(c.Ctx)
	req, ok, msg := helper.DecodeJSON[CheckoutRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	if !req.Price.Set {
		response.BadRequest(&c.Controller, "price is required", traceID)
		return
	}

	// 付款人以登录身份为准，body 中的 email 只能与之相同
	caller := helper.GetEmail(c.Ctx)
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = caller
	}
	if caller != "" {
		if !strings.EqualFold(email, caller) {
			response.Forbidden(&c.Controller, traceID)
			return
		}
		email = caller
	}

	out, err := c.Checkout.StartCheckout(c.Ctx.Request.Context(), service.CheckoutInput{
		ContestID:   int64(req.ContestID),
		Email:       email,
		Price:       req.Price.Decimal,
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"url":       out.URL,
		"sessionId": out.SessionID,
	}, traceID)
}
