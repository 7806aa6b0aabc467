package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"contesthub-server/common/logger"
	infmq "contesthub-server/internal/infra/rocketmq"
	"contesthub-server/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// OutboxDispatcher 定时扫描 outbox 表，将业务事件投递到 MQ
type OutboxDispatcher struct {
	DB       sqlx.ExtContext
	Pub      infmq.Publisher
	Interval time.Duration
	Batch    int
}

// RunOnce 扫描一批待发送记录并逐条投递，返回成功条数
// 单条失败只记录重试次数，不影响同批其它记录
func (d *OutboxDispatcher) RunOnce(ctx context.Context) (int, error) {
	batch := d.Batch
	if batch <= 0 {
		batch = 100
	}
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	rows, err := model.ListOutboxPending(c, d.DB, batch)
	cancel()
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range rows {
		if err := d.Pub.Publish(ctx, r.Topic, []byte(r.Payload)); err != nil {
			logger.Warn("outbox: publish failed", zap.Int64("id", r.ID), zap.String("topic", r.Topic), zap.Error(err))
			if err := model.MarkOutboxFailed(ctx, d.DB, r.ID, truncateErr(err)); err != nil {
				logger.Warn("outbox: mark failed failed", zap.Int64("id", r.ID), zap.Error(err))
			}
			continue
		}
		if err := model.MarkOutboxSent(ctx, d.DB, r.ID); err != nil {
			// 已投递但未标记：下轮会重发，消费端按 message id 去重
			logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// Start 启动后台分发循环，ctx 取消时退出
func (d *OutboxDispatcher) Start(ctx context.Context, wg *sync.WaitGroup) {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("outbox: list pending failed", zap.Error(err))
				}
			}
		}
	}()
}

func truncateErr(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	if len(b) > 240 {
		return string(b[:240])
	}
	return string(b)
}
