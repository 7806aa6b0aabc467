package api

import (
	"strings"

	"contesthub-server/internal/common/helper"
	"contesthub-server/internal/common/response"
	"contesthub-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// ContestController 比赛浏览、创建者管理、管理员审核与获胜者宣布
type ContestController struct {
	beego.Controller
	Contests service.ContestService
	Winners  service.WinnerService
}

// ContestRequestParam 创建 / 修改比赛的请求体
type ContestRequestParam struct {
	Name            string        `json:"name"`
	Image           string        `json:"image"`
	Description     string        `json:"description"`
	TaskInstruction string        `json:"taskInstruction"`
	ContestType     string        `json:"contestType"`
	Price           helper.Money  `json:"price"`
	PrizeMoney      helper.Money  `json:"prizeMoney"`
	Deadline        helper.Millis `json:"deadline"`
	CreatorName     string        `json:"creatorName"`
	CreatorImage    string        `json:"creatorImage"`
}

func (p ContestRequestParam) input() service.ContestInput {
	return service.ContestInput{
		Name:            p.Name,
		Image:           p.Image,
		Description:     p.Description,
		TaskInstruction: p.TaskInstruction,
		ContestType:     p.ContestType,
		Price:           p.Price.Decimal,
		PrizeMoney:      p.PrizeMoney.Decimal,
		Deadline:        int64(p.Deadline),
	}
}

type ActionRequestParam struct {
	Action string `json:"action"`
}

type DeclareWinnerRequestParam struct {
	WinnerName  string `json:"winnerName"`
	WinnerEmail string `json:"winnerEmail"`
	WinnerImage string `json:"winnerImage"`
}

func (c *ContestController) page() service.Page {
	return service.Page{
		Page:     helper.QueryInt(c.Ctx, "page", 1),
		PageSize: helper.QueryInt(c.Ctx, "pageSize", 10),
	}
}

// Popular 首页热门比赛：GET /contests
func (c *ContestController) Popular() {
	traceID := helper.GetTraceID(c.Ctx)
	list, err := c.Contests.Popular(c.Ctx.Request.Context())
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, list, traceID)
}

// All 已通过的比赛（按参赛人数降序，支持 type / search 过滤）：GET /contests/all
func (c *ContestController) All() {
	traceID := helper.GetTraceID(c.Ctx)
	out, err := c.Contests.ListApproved(c.Ctx.Request.Context(), service.ContestFilter{
		ContestType: c.GetString("type"),
		Search:      c.GetString("search"),
		Page:        c.page(),
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// Detail 比赛详情：GET /contest/:id
func (c *ContestController) Detail() {
	traceID := helper.GetTraceID(c.Ctx)
	id, ok := helper.ParseID(c.Ctx, ":id")
	if !ok {
		response.BadRequest(&c.Controller, "invalid contest id", traceID)
		return
	}
	contest, err := c.Contests.Get(c.Ctx.Request.Context(), id)
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, contest, traceID)
}

// Create 创建者新建比赛（status=pending）：POST /contest
func (c *ContestController) Create() {
	traceID := helper.GetTraceID(c.Ctx)
	req, ok, msg := helper.DecodeJSON[ContestRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	email := helper.GetEmail(c.Ctx)
	name := strings.TrimSpace(req.CreatorName)
	if name == "" {
		name = email
	}
	contest, err := c.Contests.Create(c.Ctx.Request.Context(),
		service.Creator{Email: email, Name: name, Image: req.CreatorImage}, req.input())
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	c.Ctx.Output.SetStatus(201)
	response.Success(&c.Controller, contest, traceID)
}

// Mine 创建者自己的比赛：GET /contests/creator
func (c *ContestController) Mine() {
	traceID := helper.GetTraceID(c.Ctx)
	out, err := c.Contests.ListByCreator(c.Ctx.Request.Context(), helper.GetEmail(c.Ctx), c.page())
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// Update 创建者修改待审核的比赛：PATCH /contest/:id
func (c *ContestController) Update() {
	traceID := helper.GetTraceID(c.Ctx)
	id, ok := helper.ParseID(c.Ctx, ":id")
	if !ok {
		response.BadRequest(&c.Controller, "invalid contest id", traceID)
		return
	}
	req, ok, msg := helper.DecodeJSON[ContestRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	contest, err := c.Contests.Update(c.Ctx.Request.Context(), id, helper.GetEmail(c.Ctx), req.input())
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, contest, traceID)
}

// Delete 创建者删除待审核的比赛：DELETE /contest/:id
func (c *ContestController) Delete() {
	traceID := helper.GetTraceID(c.Ctx)
	id, ok := helper.ParseID(c.Ctx, ":id")
	if !ok {
		response.BadRequest(&c.Controller, "invalid contest id", traceID)
		return
	}
	if err := c.Contests.Delete(c.Ctx.Request.Context(), id, helper.GetEmail(c.Ctx)); err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{"deleted": true, "deletedCount": 1}, traceID)
}

// Admin 管理员查看全部比赛（任意状态）：GET /contests/admin
func (c *ContestController) Admin() {
	traceID := helper.GetTraceID(c.Ctx)
	out, err := c.Contests.ListAll(c.Ctx.Request.Context(), service.ContestFilter{
		Status:      c.GetString("status"),
		ContestType: c.GetString("type"),
		Search:      c.GetString("search"),
		Page:        c.page(),
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// Action 管理员审核：PATCH /contests/action/:id {action: confirm|reject|delete}
func (c *ContestController) Action() {
	traceID := helper.GetTraceID(c.Ctx)
	id, ok := helper.ParseID(c.Ctx, ":id")
	if !ok {
		response.BadRequest(&c.Controller, "invalid contest id", traceID)
		return
	}
	req, ok, msg := helper.DecodeJSON[ActionRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	out, err := c.Contests.ApplyAction(c.Ctx.Request.Context(), service.ActionInput{
		ContestID: id,
		Action:    req.Action,
		Operator:  helper.GetEmail(c.Ctx),
		TraceID:   traceID,
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// DeclareWinner 创建者宣布获胜者：PATCH /contest/declare-winner/:id
// 已宣布时返回 200，获胜者不变；"already declared" 位于 data.message，
// 顶层 message 为统一信封的 "success"：
//
//	{"code":0,"message":"success","data":{"declared":false,"modifiedCount":0,"message":"already declared"}}
func (c *ContestController) DeclareWinner() {
	traceID := helper.GetTraceID(c.Ctx)
	id, ok := helper.ParseID(c.Ctx, ":id")
	if !ok {
		response.BadRequest(&c.Controller, "invalid contest id", traceID)
		return
	}
	req, ok, msg := helper.DecodeJSON[DeclareWinnerRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	out, err := c.Winners.DeclareWinner(c.Ctx.Request.Context(), service.DeclareWinnerInput{
		ContestID:   id,
		Caller:      helper.GetEmail(c.Ctx),
		WinnerName:  req.WinnerName,
		WinnerEmail: req.WinnerEmail,
		WinnerImage: req.WinnerImage,
		TraceID:     traceID,
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// RecentWinners 最近宣布的获胜者：GET /contests/winners
func (c *ContestController) RecentWinners() {
	traceID := helper.GetTraceID(c.Ctx)
	out, err := c.Contests.Winners(c.Ctx.Request.Context(), c.page())
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// Leaderboard 获胜次数排行：GET /leaderboard
func (c *ContestController) Leaderboard() {
	traceID := helper.GetTraceID(c.Ctx)
	list, err := c.Contests.Leaderboard(c.Ctx.Request.Context(), helper.QueryInt(c.Ctx, "limit", 10))
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, list, traceID)
}
