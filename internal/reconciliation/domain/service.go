package domain

import (
	"context"
	"errors"
)

type Service interface {
	ProcessOrderAttribution(ctx context.Context, req OrderAttributionRequest) (*OrderAttributionResult, error)
	GetOrderAttributionSummary(ctx context.Context, orderID string, viewer Viewer) (*OrderSummary, error)
	// TransitionOrder confirms or cancels every pending ledger row of an order.
	TransitionOrder(ctx context.Context, orderID, status string) (*TransitionResult, error)
}

type TransitionResult struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Rows    int64  `json:"rows"`
}

var (
	ErrOrderAlreadyReconciled = errors.New("order_already_reconciled")
	ErrOrderNotFound          = errors.New("order_attribution_not_found")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidStatus          = errors.New("invalid_status")
)
