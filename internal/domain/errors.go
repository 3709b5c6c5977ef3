package domain

import "errors"

// Таксономия ошибок ядра. Хендлеры мапят их на HTTP-статусы через errors.Is,
// всё остальное считается сбоем записи (5xx).
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyEnrolled    = errors.New("already enrolled")
	ErrGatewayUnavailable = errors.New("payment gateway is not configured")
	ErrStorageUnavailable = errors.New("certificate storage is not configured")
	ErrGatewayFailed      = errors.New("payment gateway request failed")
	ErrInvalidPayload     = errors.New("webhook payload missing required data")
	ErrInvalidSignature   = errors.New("webhook signature mismatch")
	ErrNotCompleted       = errors.New("target is not completed yet")
	ErrCertificateTarget  = errors.New("certificate must reference exactly one of course or specialisation")
)
