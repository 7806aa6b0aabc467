package api

import (
	"strings"

	"contesthub-server/internal/common/helper"
	"contesthub-server/internal/common/response"
	"contesthub-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// PaymentController 支付确认与支付记录查询
type PaymentController struct {
	beego.Controller
	Settlement service.SettlementService
	Payments   service.PaymentService
}

type PaymentSuccessRequestParam struct {
	SessionID string `json:"sessionId"`
}

// Success 支付成功回跳后确认：POST /payment-success
// 对同一 sessionId 重复调用幂等，重复时 message 为 "already exists"
func (c *PaymentController) Success() {
	traceID := helper.GetTraceID(c.Ctx)
	req, ok, msg := helper.DecodeJSON[PaymentSuccessRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		response.BadRequest(&c.Controller, "sessionId is required", traceID)
		return
	}

	out, err := c.Settlement.Settle(c.Ctx.Request.Context(), req.SessionID)
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"transactionId": out.TransactionID,
		"contestId":     out.ContestID,
		"message":       out.Message,
	}, traceID)
}

// Mine 当前用户的支付记录：GET /payments/mine
func (c *PaymentController) Mine() {
	traceID := helper.GetTraceID(c.Ctx)
	list, err := c.Payments.Mine(c.Ctx.Request.Context(), helper.GetEmail(c.Ctx), service.Page{
		Page:     helper.QueryInt(c.Ctx, "page", 1),
		PageSize: helper.QueryInt(c.Ctx, "pageSize", 10),
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, list, traceID)
}

// Check 是否已支付：GET /payments/check/:contestId
func (c *PaymentController) Check() {
	traceID := helper.GetTraceID(c.Ctx)
	contestID, ok := helper.ParseID(c.Ctx, ":contestId")
	if !ok {
		response.BadRequest(&c.Controller, "invalid contest id", traceID)
		return
	}
	paid, err := c.Payments.HasPaid(c.Ctx.Request.Context(), contestID, helper.GetEmail(c.Ctx))
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{"paid": paid}, traceID)
}
