package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"contesthub-server/common/constant"
	"contesthub-server/common/logger"
	infmq "contesthub-server/internal/infra/rocketmq"
	infredis "contesthub-server/internal/infra/redis"
	"contesthub-server/internal/model"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	receiveBatch      = int32(16)
	invisibleDuration = 20 * time.Second
	awaitDuration     = 5 * time.Second
)

// InboxHandler 消息落库去重，并按事件类型刷新派生缓存
type InboxHandler struct {
	DB    sqlx.ExtContext
	Redis *goredis.Client // 可为 nil
}

// Handle 返回 true 表示首次处理该消息；重复消息只落库不再处理
func (h *InboxHandler) Handle(ctx context.Context, messageID, topic string, body []byte) (bool, error) {
	first, err := model.UpsertInbox(ctx, h.DB, messageID, topic, string(body), time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	if !first {
		logger.Debug("[mq] duplicate message skipped", zap.String("id", messageID), zap.String("topic", topic))
		return false, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn("[mq] invalid payload", zap.String("id", messageID), zap.Error(err))
		return true, nil
	}
	switch topic {
	case constant.TopicPaymentRecorded, constant.TopicContestStatusChanged, constant.TopicWinnerDeclared:
		// 人数 / 状态 / 获胜者变化都会影响热门列表
		if h.Redis != nil {
			if err := h.Redis.Del(ctx, infredis.PopularContestsKey()).Err(); err != nil {
				logger.Warn("[mq] invalidate popular cache failed", zap.Error(err))
			}
		}
	}
	logger.Info("[mq] event consumed",
		zap.String("id", messageID),
		zap.String("topic", topic),
		zap.Any("contest_id", payload["contest_id"]))
	return true, nil
}

// StartInboxConsumer 启动 SimpleConsumer 并把消息交给 InboxHandler；MQ 未配置时不启动
func StartInboxConsumer(ctx context.Context, wg *sync.WaitGroup, s infmq.Settings, h *InboxHandler) {
	sc, err := infmq.NewSimpleConsumer(ctx, s, awaitDuration)
	if err != nil {
		logger.Warn("[mq] inbox consumer not started", zap.Error(err))
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sc.GracefulStop()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			mvs, err := sc.Receive(ctx, receiveBatch, invisibleDuration)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("[mq] receive error", zap.Error(err))
				continue
			}
			for _, mv := range mvs {
				id := mv.GetMessageId()
				if _, err := h.Handle(ctx, id, mv.GetTopic(), mv.GetBody()); err != nil {
					// 不 ack，等待不可见时间后重投
					logger.Warn("[mq] handle failed", zap.String("id", id), zap.Error(err))
					continue
				}
				if err := sc.Ack(ctx, mv); err != nil {
					logger.Warn("[mq] ack failed", zap.String("id", id), zap.Error(err))
				}
			}
		}
	}()
}
