package helper

import (
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

// ThirdPayTimeout 第三方支付统一超时时间
const ThirdPayTimeout = 8 * time.Second

// 专用于第三方支付的客户端，连接复用
var thirdPayClient = &fasthttp.Client{
	ReadTimeout:                   ThirdPayTimeout,
	WriteTimeout:                  ThirdPayTimeout,
	MaxIdleConnDuration:           60 * time.Second,
	MaxConnsPerHost:               100,
	MaxConnWaitTimeout:            1 * time.Second,
	DisableHeaderNamesNormalizing: true,
}

// HttpDoTimeoutForThirdPay 调用第三方支付接口，返回响应体与状态码。
// 网络错误时 statusCode 为 0，错误携带调用栈。
func HttpDoTimeoutForThirdPay(requestBody []byte, method string, requestURI string, headers map[string]string, timeout time.Duration) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(requestURI)
	req.Header.SetMethod(method)

	if method == fasthttp.MethodPost {
		req.SetBody(requestBody)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if timeout <= 0 {
		timeout = ThirdPayTimeout
	}
	err := thirdPayClient.DoTimeout(req, resp, timeout)

	var respBytes []byte
	statusCode := 0
	if err == nil {
		respBytes = append(respBytes, resp.Body()...)
		statusCode = resp.StatusCode()
	}

	return respBytes, statusCode, errors.WithStack(err)
}
