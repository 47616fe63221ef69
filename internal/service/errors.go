package service

import (
	"fmt"

	"ecoprado/internal/repository"
)

// ValidationError 请求参数缺失或非法，在任何修改之前拒绝
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientFundsError 本地余额不足，附带当时的余额和价格
type InsufficientFundsError struct {
	Balance int64
	Price   int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("余额不足: 当前余额 %d, 需要 %d", e.Balance, e.Price)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == repository.ErrInsufficientFunds
}
