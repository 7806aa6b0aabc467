package api

import (
	"contesthub-server/internal/common/helper"
	"contesthub-server/internal/common/response"
	"contesthub-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// SubmissionController 参赛作品提交与查看
type SubmissionController struct {
	beego.Controller
	Submissions service.SubmissionService
}

type SubmitRequestParam struct {
	ContestID helper.ID `json:"contestId"`
	Task      string    `json:"task"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
}

// Submit 提交作品：POST /submit-task
// 重复提交返回 200 与 "task already added"
func (c *SubmissionController) Submit() {
	traceID := helper.GetTraceID(c.Ctx)
	req, ok, msg := helper.DecodeJSON[SubmitRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	out, err := c.Submissions.Submit(c.Ctx.Request.Context(), service.SubmitInput{
		ContestID: int64(req.ContestID),
		Email:     helper.GetEmail(c.Ctx),
		Name:      req.Name,
		Image:     req.Image,
		Task:      req.Task,
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// List 创建者查看比赛作品：GET /submissions/:contestId
func (c *SubmissionController) List() {
	traceID := helper.GetTraceID(c.Ctx)
	contestID, ok := helper.ParseID(c.Ctx, ":contestId")
	if !ok {
		response.BadRequest(&c.Controller, "invalid contest id", traceID)
		return
	}
	list, err := c.Submissions.ListForOwner(c.Ctx.Request.Context(), contestID, helper.GetEmail(c.Ctx))
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, list, traceID)
}
