package api

import (
	"context"
	"encoding/json"
	"time"

	beego "github.com/beego/beego/v2/server/web"
)

// Probe 依赖连通性检查
type Probe func(ctx context.Context) error

// HealthController 提供健康检查端点：/healthz 与 /readyz
type HealthController struct {
	beego.Controller
	Probes map[string]Probe
}

// Healthz 存活探针：仅返回进程存活
func (c *HealthController) Healthz() {
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ok"))
}

// Readyz 就绪探针：依次检查 MySQL / Redis，任一失败返回 503
func (c *HealthController) Readyz() {
	ctx, cancel := context.WithTimeout(c.Ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status := 200
	checks := make(map[string]string, len(c.Probes))
	for name, probe := range c.Probes {
		if err := probe(ctx); err != nil {
			checks[name] = err.Error()
			status = 503
			continue
		}
		checks[name] = "ok"
	}
	body, _ := json.Marshal(map[string]interface{}{"ready": status == 200, "checks": checks})
	c.Ctx.Output.Header("Content-Type", "application/json; charset=utf-8")
	c.Ctx.Output.SetStatus(status)
	_ = c.Ctx.Output.Body(body)
}
