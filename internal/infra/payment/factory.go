package payment

import (
	"fmt"
	"time"
)

// Options 支付平台配置（来自 config.Payment）
type Options struct {
	Provider   string
	APIBase    string
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

func NewProcessor(opt Options) (Processor, error) {
	switch opt.Provider {
	case "stripe":
		if opt.SecretKey == "" {
			return nil, fmt.Errorf("payment provider stripe requires secret_key")
		}
		return NewStripe(opt), nil
	case "stub", "":
		return NewStub(opt.Currency, opt.SuccessURL), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", opt.Provider)
	}
}
