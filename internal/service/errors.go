package service

import "errors"

// 业务错误，控制器按 errors.Is 映射为 HTTP 状态
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrAlreadyPaid         = errors.New("already paid for this contest")
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrContestNotFound     = errors.New("contest not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidAction       = errors.New("invalid action")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrContestLocked       = errors.New("contest can only be changed while pending")
	ErrContestClosed       = errors.New("contest is closed for submissions")
	ErrNotParticipant      = errors.New("payment required before submitting")
	ErrExternalService     = errors.New("external service error")
	ErrStore               = errors.New("store error")
)
