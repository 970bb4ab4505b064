package response

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/stretchr/testify/assert"
)

func TestDescribe_Status(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "validation",
			err: &fulfillment.Error{Kind: fulfillment.KindValidation, Line: 2, Err: &fulfillment.ValidationError{
				Line: 2, Reason: fulfillment.ReasonBadQuantity,
			}},
			want: http.StatusBadRequest,
		},
		{
			name: "insufficient stock",
			err: &fulfillment.Error{Kind: fulfillment.KindInsufficientStock, Line: 0, Err: &product.InsufficientStockError{
				ProductID: "P", Available: 5, Requested: 8,
			}},
			want: http.StatusConflict,
		},
		{
			name: "contention",
			err:  &fulfillment.Error{Kind: fulfillment.KindContention, Line: -1, Err: uow.ErrConflict},
			want: http.StatusServiceUnavailable,
		},
		{
			name: "timeout",
			err:  &fulfillment.Error{Kind: fulfillment.KindTimeout, Line: -1, Err: context.DeadlineExceeded},
			want: http.StatusGatewayTimeout,
		},
		{
			name: "storage",
			err:  &fulfillment.Error{Kind: fulfillment.KindStorage, Line: -1, Err: errors.New("disk full")},
			want: http.StatusInternalServerError,
		},
		{name: "product not found", err: product.ErrNotFound, want: http.StatusNotFound},
		{name: "order not found", err: fmt.Errorf("get: %w", order.ErrNotFound), want: http.StatusNotFound},
		{name: "invalid product", err: fmt.Errorf("%w: id is required", product.ErrInvalid), want: http.StatusBadRequest},
		{name: "duplicate product", err: product.ErrAlreadyExists, want: http.StatusConflict},
		{name: "bad transition", err: order.ErrInvalidTransition, want: http.StatusConflict},
		{name: "bare conflict", err: fmt.Errorf("%w: busy", uow.ErrConflict), want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := Describe(tt.err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestDescribe_Body(t *testing.T) {
	_, body := Describe(&fulfillment.Error{
		Kind:     fulfillment.KindInsufficientStock,
		State:    fulfillment.StateReserving,
		Line:     1,
		Attempts: 1,
		Err:      &product.InsufficientStockError{ProductID: "P", Available: 5, Requested: 8},
	})

	assert.Equal(t, "insufficient_stock", body.Kind)
	assert.Equal(t, "reserving", body.State)
	assert.Equal(t, "P", body.ProductID)
	if assert.NotNil(t, body.Line) {
		assert.Equal(t, 1, *body.Line)
	}
	if assert.NotNil(t, body.Available) {
		assert.Equal(t, int64(5), *body.Available)
	}

	_, body = Describe(&fulfillment.Error{Kind: fulfillment.KindValidation, Line: -1, Err: &fulfillment.ValidationError{
		Line: -1, Reason: fulfillment.ReasonNoLines,
	}})
	assert.Nil(t, body.Line)
	assert.Equal(t, fulfillment.ReasonNoLines, body.Reason)
}
