package rocketmq

import "errors"

var (
	ErrDisabled        = errors.New("rocketmq not configured")
	ErrNoConsumerGroup = errors.New("empty consumer group")
	ErrNoTopics        = errors.New("empty consume topics")
)
