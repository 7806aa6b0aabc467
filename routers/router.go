package routers

import (
	"contesthub-server/common/constant"
	"contesthub-server/internal/auth"
	"contesthub-server/internal/controller/api"
	"contesthub-server/internal/metrics"
	"contesthub-server/internal/middleware"
	"contesthub-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

// Deps 路由依赖（由 cmd 组装后注入）
type Deps struct {
	Checkout    service.CheckoutService
	Settlement  service.SettlementService
	Winners     service.WinnerService
	Contests    service.ContestService
	Users       service.UserService
	Submissions service.SubmissionService
	Payments    service.PaymentService

	Verifier auth.IdentityVerifier
	Tokens   api.TokenManager
	DemoMode bool

	Redis      *goredis.Client // 限流，可为 nil
	Probes     map[string]api.Probe
	EnableProm bool
}

type filter = func(ctx *beegocontext.Context)

// Register 注册HTTP路由与过滤器
func Register(cr *beego.ControllerRegister, d Deps) {
	// 全局过滤器（按执行顺序）
	// 1. 请求ID注入
	_ = cr.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)
	// 2. CORS 处理（预检请求在路由前直接返回）
	_ = cr.InsertFilter("/*", beego.BeforeRouter, middleware.CORSFilter)
	// 3. HTTP 指标收集
	_ = cr.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	_ = cr.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter, beego.WithReturnOnOutput(false))

	authF := middleware.AuthFilter(d.Verifier)
	// secure 为路由挂认证 + 角色过滤器；methods 为空时对所有方法生效
	secure := func(pattern string, roles []string, methods ...string) {
		var chain []filter
		chain = append(chain, authF)
		if len(roles) > 0 {
			chain = append(chain, middleware.RoleFilter(d.Users, roles...))
		}
		for _, f := range chain {
			if len(methods) > 0 {
				f = middleware.OnMethods(f, methods...)
			}
			_ = cr.InsertFilter(pattern, beego.BeforeExec, f)
		}
	}
	var (
		anyUser = []string(nil)
		creator = []string{constant.RoleCreator}
		admin   = []string{constant.RoleAdmin}
	)

	// 健康检查（无需认证）
	health := &api.HealthController{Probes: d.Probes}
	cr.Add("/healthz", health, beego.WithRouterMethods(health, "get:Healthz"))
	cr.Add("/readyz", health, beego.WithRouterMethods(health, "get:Readyz"))
	if d.EnableProm {
		cr.Handler("/metrics", promhttp.Handler())
	}

	// ========== 身份 ==========
	authCtl := &api.AuthController{Tokens: d.Tokens, DemoMode: d.DemoMode}
	cr.Add("/jwt", authCtl, beego.WithRouterMethods(authCtl, "post:Issue"))
	secure("/logout", anyUser)
	cr.Add("/logout", authCtl, beego.WithRouterMethods(authCtl, "post:Logout"))

	users := &api.UserController{Users: d.Users}
	secure("/users", anyUser, "POST")
	secure("/users", admin, "GET")
	cr.Add("/users", users, beego.WithRouterMethods(users, "post:SignIn;get:List"))
	secure("/users/role", anyUser)
	cr.Add("/users/role", users, beego.WithRouterMethods(users, "get:Role"))
	secure("/users/role/:email", admin)
	cr.Add("/users/role/:email", users, beego.WithRouterMethods(users, "patch:UpdateRole"))

	// ========== 支付与结算 ==========
	checkout := &api.CheckoutController{Checkout: d.Checkout}
	secure("/checkout-session", anyUser)
	cr.Add("/checkout-session", checkout, beego.WithRouterMethods(checkout, "post:CreateSession"))

	payments := &api.PaymentController{Settlement: d.Settlement, Payments: d.Payments}
	secure("/payment-success", anyUser)
	cr.Add("/payment-success", payments, beego.WithRouterMethods(payments, "post:Success"))
	secure("/payments/mine", anyUser)
	cr.Add("/payments/mine", payments, beego.WithRouterMethods(payments, "get:Mine"))
	secure("/payments/check/:contestId", anyUser)
	cr.Add("/payments/check/:contestId", payments, beego.WithRouterMethods(payments, "get:Check"))

	// ========== 比赛 ==========
	contests := &api.ContestController{Contests: d.Contests, Winners: d.Winners}
	cr.Add("/contests", contests, beego.WithRouterMethods(contests, "get:Popular"))
	cr.Add("/contests/all", contests, beego.WithRouterMethods(contests, "get:All"))
	cr.Add("/contests/winners", contests, beego.WithRouterMethods(contests, "get:RecentWinners"))
	cr.Add("/leaderboard", contests, beego.WithRouterMethods(contests, "get:Leaderboard"))

	secure("/contest", creator)
	cr.Add("/contest", contests, beego.WithRouterMethods(contests, "post:Create"))
	secure("/contest/:id", creator, "PATCH", "DELETE")
	cr.Add("/contest/:id", contests, beego.WithRouterMethods(contests, "get:Detail;patch:Update;delete:Delete"))
	secure("/contests/creator", creator)
	cr.Add("/contests/creator", contests, beego.WithRouterMethods(contests, "get:Mine"))
	secure("/contest/declare-winner/:id", creator)
	cr.Add("/contest/declare-winner/:id", contests, beego.WithRouterMethods(contests, "patch:DeclareWinner"))

	secure("/contests/admin", admin)
	cr.Add("/contests/admin", contests, beego.WithRouterMethods(contests, "get:Admin"))
	secure("/contests/action/:id", admin)
	cr.Add("/contests/action/:id", contests, beego.WithRouterMethods(contests, "patch:Action"))

	// ========== 作品 ==========
	submissions := &api.SubmissionController{Submissions: d.Submissions}
	secure("/submit-task", anyUser)
	cr.Add("/submit-task", submissions, beego.WithRouterMethods(submissions, "post:Submit"))
	secure("/submissions/:contestId", creator)
	cr.Add("/submissions/:contestId", submissions, beego.WithRouterMethods(submissions, "get:List"))

	// 限流放在认证之后，按用户维度需要 email
	_ = cr.InsertFilter("/*", beego.BeforeExec, middleware.RateLimitFilter(d.Redis))
}
