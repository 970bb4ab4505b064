package response

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	State     string `json:"state,omitempty"`
	Line      *int   `json:"line,omitempty"`
	Reason    string `json:"reason,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Available *int64 `json:"available,omitempty"`
	Requested *int64 `json:"requested,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: msg, Kind: string(fulfillment.KindValidation)})
}

// Error maps err to a status code and writes it.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, body := Describe(err)

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.InfoContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	JSON(w, status, body)
}

// Describe returns the status code and body for err.
func Describe(err error) (int, ErrorBody) {
	body := ErrorBody{Error: err.Error()}

	var ferr *fulfillment.Error
	if errors.As(err, &ferr) {
		body.Kind = string(ferr.Kind)
		body.State = string(ferr.State)
		body.Attempts = ferr.Attempts
		if ferr.Line >= 0 {
			line := ferr.Line
			body.Line = &line
		}
	}

	var verr *fulfillment.ValidationError
	if errors.As(err, &verr) {
		body.Kind = string(fulfillment.KindValidation)
		body.Reason = verr.Reason
		body.ProductID = verr.ProductID
		if verr.Line >= 0 && body.Line == nil {
			line := verr.Line
			body.Line = &line
		}

		return http.StatusBadRequest, body
	}

	var stock *product.InsufficientStockError
	if errors.As(err, &stock) {
		body.Kind = string(fulfillment.KindInsufficientStock)
		body.ProductID = stock.ProductID
		body.Available = &stock.Available
		body.Requested = &stock.Requested

		return http.StatusConflict, body
	}

	if ferr != nil {
		switch ferr.Kind {
		case fulfillment.KindContention:
			return http.StatusServiceUnavailable, body
		case fulfillment.KindTimeout:
			return http.StatusGatewayTimeout, body
		default:
			return http.StatusInternalServerError, body
		}
	}

	switch {
	case errors.Is(err, product.ErrNotFound), errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, product.ErrInvalid):
		body.Kind = string(fulfillment.KindValidation)
		return http.StatusBadRequest, body
	case errors.Is(err, product.ErrAlreadyExists),
		errors.Is(err, order.ErrAlreadyFulfilled),
		errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict, body
	case errors.Is(err, uow.ErrConflict):
		body.Kind = string(fulfillment.KindContention)
		return http.StatusServiceUnavailable, body
	case errors.Is(err, context.DeadlineExceeded):
		body.Kind = string(fulfillment.KindTimeout)
		return http.StatusGatewayTimeout, body
	default:
		return http.StatusInternalServerError, body
	}
}
