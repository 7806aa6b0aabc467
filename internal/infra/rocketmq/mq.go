package rocketmq

import (
	"context"
	"strings"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"

	"contesthub-server/common/logger"

	"go.uber.org/zap"
)

// Settings RocketMQ 连接参数（来自 config.RocketMQ）
type Settings struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ProducerTopics string
	ConsumerGroup  string
	ConsumeTopics  string
}

// Publisher is a minimal facade for sending messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte) error
}

// Producer 带生命周期的发布者
type Producer struct {
	p       rmq.Producer
	enabled bool
}

// Enabled reports whether the real producer started.
func (r *Producer) Enabled() bool { return r != nil && r.enabled }

func (r *Producer) Publish(ctx context.Context, topic string, body []byte) error {
	if !r.Enabled() {
		logger.Warn("[mq disabled] drop message", zap.String("topic", topic))
		return nil
	}
	msg := &rmq.Message{Topic: topic, Body: body}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.p.Send(c, msg)
	return err
}

// Close 优雅关闭生产者
func (r *Producer) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.p.GracefulStop()
}

// normalizeEndpoint trim, strip scheme, pick first if contains ',' or ';'
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}
	return endpoint
}

// SplitTopics 拆分逗号分隔的 topic 列表（'.' 统一替换为 '_'）
func SplitTopics(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(strings.ReplaceAll(t, ".", "_"))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (s Settings) credentials() (*rmq.Config, bool) {
	endpoint := normalizeEndpoint(s.Endpoint)
	if endpoint == "" {
		return nil, false
	}
	// 缺少凭证则禁用 MQ（避免底层 SDK 在 Sign 阶段空指针崩溃）
	if strings.TrimSpace(s.AccessKey) == "" || strings.TrimSpace(s.SecretKey) == "" {
		logger.Warn("rocketmq disabled: missing access/secret key while endpoint present")
		return nil, false
	}
	cfg := &rmq.Config{Endpoint: endpoint}
	cfg.Credentials = &credentials.SessionCredentials{AccessKey: s.AccessKey, AccessSecret: s.SecretKey}
	return cfg, true
}

// NewProducer 创建并启动生产者；未配置或启动失败时返回禁用状态的 Producer（丢弃消息）
func NewProducer(s Settings) *Producer {
	// Use SDK's ResetLogger to avoid default file-based logging under /logs
	rmq.ResetLogger()

	cfg, ok := s.credentials()
	if !ok {
		return &Producer{}
	}

	var opts []rmq.ProducerOption
	if topics := SplitTopics(s.ProducerTopics); len(topics) > 0 {
		opts = append(opts, rmq.WithTopics(topics...))
		logger.Info("rocketmq: topics configured", zap.Strings("topics", topics))
	}

	p, err := rmq.NewProducer(cfg, opts...)
	if err != nil {
		logger.Error("rocketmq: producer init failed", zap.Error(err))
		return &Producer{}
	}

	// 异步启动，避免阻塞主流程
	startDone := make(chan error, 1)
	go func() {
		startDone <- p.Start()
	}()

	select {
	case err := <-startDone:
		if err != nil {
			logger.Warn("rocketmq: producer start failed (messages will be dropped)", zap.Error(err))
			return &Producer{}
		}
		logger.Info("rocketmq enabled", zap.String("endpoint", cfg.Endpoint))
		return &Producer{p: p, enabled: true}
	case <-time.After(2 * time.Second):
		logger.Warn("rocketmq: producer start timeout (messages will be dropped)")
		return &Producer{}
	}
}

// NewSimpleConsumer 创建并启动 SimpleConsumer（带重试，容器刚启动时 broker 可能未就绪）
// 消费 topic 为空时回退到生产 topic。
func NewSimpleConsumer(ctx context.Context, s Settings, await time.Duration) (rmq.SimpleConsumer, error) {
	rmq.ResetLogger()

	cfg, ok := s.credentials()
	if !ok {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(s.ConsumerGroup) == "" {
		return nil, ErrNoConsumerGroup
	}
	topicsStr := s.ConsumeTopics
	if topicsStr == "" {
		topicsStr = s.ProducerTopics
	}
	topics := SplitTopics(topicsStr)
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	cfg.ConsumerGroup = s.ConsumerGroup

	subs := map[string]*rmq.FilterExpression{}
	for _, t := range topics {
		subs[t] = rmq.SUB_ALL
	}

	var (
		sc  rmq.SimpleConsumer
		err error
	)
	for i := 0; i < 6; i++ {
		sc, err = rmq.NewSimpleConsumer(cfg,
			rmq.WithSimpleAwaitDuration(await),
			rmq.WithSimpleSubscriptionExpressions(subs),
		)
		if err == nil {
			if err = sc.Start(); err == nil {
				logger.Info("[mq] simple consumer started", zap.String("group", s.ConsumerGroup), zap.Strings("topics", topics))
				return sc, nil
			}
		}
		logger.Warn("[mq] simple consumer start retry", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return nil, err
}
