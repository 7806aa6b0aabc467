package api

import (
	"contesthub-server/internal/common/helper"
	"contesthub-server/internal/common/response"
	"contesthub-server/internal/model"
	"contesthub-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// UserController 用户建档与角色管理
type UserController struct {
	beego.Controller
	Users service.UserService
}

type SignInRequestParam struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type RoleRequestParam struct {
	Role string `json:"role"`
}

// SignIn 登录后建档：POST /users（email 取自令牌）
func (c *UserController) SignIn() {
	traceID := helper.GetTraceID(c.Ctx)
	req, ok, msg := helper.DecodeJSON[SignInRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	created, err := c.Users.SignIn(c.Ctx.Request.Context(), model.User{
		Email: helper.GetEmail(c.Ctx),
		Name:  req.Name,
		Image: req.Image,
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	message := "user already exists"
	if created {
		message = "user created"
	}
	response.Success(&c.Controller, map[string]interface{}{"created": created, "message": message}, traceID)
}

// Role 当前用户角色：GET /users/role
func (c *UserController) Role() {
	traceID := helper.GetTraceID(c.Ctx)
	role, err := c.Users.Role(c.Ctx.Request.Context(), helper.GetEmail(c.Ctx))
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{"role": role}, traceID)
}

// List 管理员查看用户：GET /users
func (c *UserController) List() {
	traceID := helper.GetTraceID(c.Ctx)
	out, err := c.Users.List(c.Ctx.Request.Context(), service.Page{
		Page:     helper.QueryInt(c.Ctx, "page", 1),
		PageSize: helper.QueryInt(c.Ctx, "pageSize", 10),
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// UpdateRole 管理员修改角色：PATCH /users/role/:email
func (c *UserController) UpdateRole() {
	traceID := helper.GetTraceID(c.Ctx)
	req, ok, msg := helper.DecodeJSON[RoleRequestParam](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	email := c.Ctx.Input.Param(":email")
	if err := c.Users.UpdateRole(c.Ctx.Request.Context(), email, req.Role); err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{"email": email, "role": req.Role}, traceID)
}
