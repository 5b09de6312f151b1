package service

import "errors"

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrPriceNotFound    = errors.New("price not found")
	ErrBatchNotFound    = errors.New("batch not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrCallbackRejected = errors.New("callback rejected")
)
