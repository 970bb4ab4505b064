package fulfillmentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderline"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 20 * time.Millisecond
)

type transactor interface {
	Read() uow.Work
	RunAtomic(ctx context.Context, fn func(ctx context.Context, w uow.Work) error) error
}

// FulfillmentService turns order requests into persisted orders and stock decrements.
type FulfillmentService struct {
	tx               transactor
	maxAttempts      int
	timeout          time.Duration
	retryBackoff     time.Duration
	outboxEnabled    bool
	outboxMaxRetries int
	now              func() time.Time
	newID            func() string
}

// option is a function that configures the FulfillmentService.
type option func(*FulfillmentService)

// MustNewFulfillmentService creates a new FulfillmentService.
func MustNewFulfillmentService(opts ...option) *FulfillmentService {
	s := &FulfillmentService{
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.tx == nil {
		panic("fulfillment service requires a transaction coordinator")
	}

	return s
}

// WithCoordinator sets the transaction coordinator.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCoordinator(tx transactor) option {
	return func(s *FulfillmentService) {
		s.tx = tx
	}
}

// WithMaxAttempts bounds how many times a conflicting attempt is retried.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMaxAttempts(n int) option {
	return func(s *FulfillmentService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithTimeout bounds every Fulfill call. Zero leaves only the caller's deadline.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithTimeout(d time.Duration) option {
	return func(s *FulfillmentService) {
		s.timeout = d
	}
}

// WithRetryBackoff sets the base pause between conflicting attempts.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRetryBackoff(d time.Duration) option {
	return func(s *FulfillmentService) {
		s.retryBackoff = d
	}
}

// WithOutbox makes every committed fulfillment write an order.fulfilled event
// when enabled is set.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutbox(enabled bool, maxRetries int) option {
	return func(s *FulfillmentService) {
		s.outboxEnabled = enabled
		s.outboxMaxRetries = max(maxRetries, 1)
	}
}

// WithClock replaces time.Now.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *FulfillmentService) {
		s.now = now
	}
}

// abort carries where an attempt stopped.
type abort struct {
	state fulfillment.State
	line  int
	err   error
}

// Fulfill validates the request, reserves stock for every line, and persists the
// order with its audit entries, all or nothing. Conflicting attempts are retried
// from validation onwards. Every failure is a *fulfillment.Error.
func (s *FulfillmentService) Fulfill(ctx context.Context, req fulfillment.Request) (order.View, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "FulfillmentService.Fulfill")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.lines", len(req.Lines)),
	)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := slog.With("customer_id", req.CustomerID, "lines", len(req.Lines))
	log.DebugContext(ctx, "Fulfillment state", "state", fulfillment.StateReceived)

	for attempt := 1; ; attempt++ {
		view, ab := s.attempt(ctx, req, log)
		if ab == nil {
			span.SetAttributes(attribute.String("order.id", view.ID), attribute.Int("attempts", attempt))
			log.InfoContext(ctx, "Order fulfilled",
				"order_id", view.ID,
				"state", fulfillment.StateCommitted,
				"attempts", attempt,
			)

			return view, nil
		}

		retry := errors.Is(ab.err, uow.ErrConflict) && ctx.Err() == nil && attempt < s.maxAttempts
		if retry {
			log.WarnContext(ctx, "Fulfillment conflict, retrying",
				"attempt", attempt,
				"state", ab.state,
				"error", ab.err,
			)
			if s.pause(ctx, attempt) {
				continue
			}
		}

		ferr := s.classify(ctx, ab, attempt)
		span.RecordError(ferr)
		span.SetStatus(codes.Error, string(ferr.Kind))
		s.logAbort(ctx, log, ferr)

		return order.View{}, ferr
	}
}

// attempt runs one full pass. Validation reads happen outside the transaction so
// malformed input never opens one.
func (s *FulfillmentService) attempt(
	ctx context.Context,
	req fulfillment.Request,
	log *slog.Logger,
) (order.View, *abort) {
	log.DebugContext(ctx, "Fulfillment state", "state", fulfillment.StateValidating)

	known, err := s.knownProducts(ctx, req)
	if err != nil {
		return order.View{}, &abort{state: fulfillment.StateValidating, line: -1, err: err}
	}
	if err := req.Validate(known); err != nil {
		var verr *fulfillment.ValidationError
		errors.As(err, &verr)

		return order.View{}, &abort{state: fulfillment.StateValidating, line: verr.Line, err: err}
	}

	var (
		view    order.View
		failure *abort
	)
	err = s.tx.RunAtomic(ctx, func(ctx context.Context, w uow.Work) error {
		view, failure = s.apply(ctx, w, req, log)
		if failure != nil {
			return failure.err
		}

		return nil
	})
	if err != nil {
		if failure == nil {
			// fn succeeded but commit did not
			failure = &abort{state: fulfillment.StatePersisting, line: -1}
		}
		failure.err = err

		return order.View{}, failure
	}

	return view, nil
}

func (s *FulfillmentService) knownProducts(ctx context.Context, req fulfillment.Request) (map[string]bool, error) {
	ids := req.ProductIDs()
	known := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}

	products, err := s.tx.Read().ProductRepository().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, p := range products {
		known[p.ID] = true
	}

	return known, nil
}

// apply is the transactional body: reserve in line order, then persist order, audit and event.
func (s *FulfillmentService) apply(
	ctx context.Context,
	w uow.Work,
	req fulfillment.Request,
	log *slog.Logger,
) (order.View, *abort) {
	log.DebugContext(ctx, "Fulfillment state", "state", fulfillment.StateReserving)

	for i, l := range req.Lines {
		if _, err := w.ProductRepository().Reserve(ctx, l.ProductID, l.Quantity); err != nil {
			if errors.Is(err, product.ErrNotFound) {
				err = &fulfillment.ValidationError{
					Line:      i,
					ProductID: l.ProductID,
					Reason:    fulfillment.ReasonUnknownProduct,
				}
			}

			return order.View{}, &abort{state: fulfillment.StateReserving, line: i, err: err}
		}
	}

	log.DebugContext(ctx, "Fulfillment state", "state", fulfillment.StatePersisting)

	now := s.now().UTC()
	o := order.Order{
		ID:              s.newID(),
		CustomerID:      req.CustomerID,
		Status:          order.StatusPending,
		ShippingAddress: req.ShippingAddress,
		FreightCents:    req.FreightCents,
		CreatedAt:       now,
		Lines:           make([]orderline.OrderLine, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		o.Lines = append(o.Lines, orderline.OrderLine{
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			Discount:       l.Discount,
		})
	}

	persisting := func(err error) *abort {
		line := -1
		var verr *fulfillment.ValidationError
		if errors.As(err, &verr) {
			line = verr.Line
		}

		return &abort{state: fulfillment.StatePersisting, line: line, err: err}
	}

	o, err := w.OrderRepository().Create(ctx, o)
	if err != nil {
		return order.View{}, persisting(err)
	}

	entries := make([]auditentry.Entry, 0, len(o.Lines))
	for _, l := range o.Lines {
		entries = append(entries, auditentry.Entry{
			ProductID: l.ProductID,
			Delta:     -l.Quantity,
			Reason:    auditentry.ReasonFulfillment,
			OrderID:   o.ID,
			CreatedAt: now,
		})
	}
	if err := w.AuditRepository().Record(ctx, entries...); err != nil {
		return order.View{}, persisting(err)
	}

	if err := w.OrderRepository().MarkFulfilled(ctx, o.ID, now); err != nil {
		return order.View{}, persisting(err)
	}
	o.Status = order.StatusFulfilled
	o.FulfilledAt = &now

	view := order.NewView(o)

	if s.outboxEnabled {
		if err := s.enqueue(ctx, w, view, now); err != nil {
			return order.View{}, persisting(err)
		}
	}

	return view, nil
}

func (s *FulfillmentService) enqueue(ctx context.Context, w uow.Work, view order.View, now time.Time) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	return w.OutboxRepository().Insert(ctx, outbox.OutboxMessage{
		MessageID:   uuid.NewString(),
		EventType:   outbox.EventOrderFulfilled,
		AggregateID: view.ID,
		Payload:     payload,
		ContentType: "application/json",
		MaxRetries:  s.outboxMaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	})
}

// pause sleeps before the next attempt. It reports false when ctx ended first.
func (s *FulfillmentService) pause(ctx context.Context, attempt int) bool {
	if s.retryBackoff <= 0 {
		return true
	}

	d := s.retryBackoff*time.Duration(attempt) + rand.N(s.retryBackoff)
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *FulfillmentService) classify(ctx context.Context, ab *abort, attempts int) *fulfillment.Error {
	ferr := &fulfillment.Error{
		State:    ab.state,
		Line:     ab.line,
		Attempts: attempts,
		Err:      ab.err,
	}

	var (
		verr  *fulfillment.ValidationError
		stock *product.InsufficientStockError
	)
	switch {
	case errors.As(ab.err, &verr):
		ferr.Kind = fulfillment.KindValidation
		ferr.Line = verr.Line
	case errors.As(ab.err, &stock):
		ferr.Kind = fulfillment.KindInsufficientStock
	case ctx.Err() != nil,
		errors.Is(ab.err, context.DeadlineExceeded),
		errors.Is(ab.err, context.Canceled):
		ferr.Kind = fulfillment.KindTimeout
		if ctx.Err() != nil {
			ferr.Err = errors.Join(ab.err, ctx.Err())
		}
	case errors.Is(ab.err, uow.ErrConflict):
		ferr.Kind = fulfillment.KindContention
	default:
		ferr.Kind = fulfillment.KindStorage
	}

	return ferr
}

func (s *FulfillmentService) logAbort(ctx context.Context, log *slog.Logger, ferr *fulfillment.Error) {
	attrs := []any{
		"state", fulfillment.StateAborted,
		"failed_in", ferr.State,
		"kind", ferr.Kind,
		"line", ferr.Line,
		"attempts", ferr.Attempts,
		"error", ferr.Err,
	}

	switch ferr.Kind {
	case fulfillment.KindStorage:
		log.ErrorContext(ctx, "Fulfillment aborted", attrs...)
	case fulfillment.KindContention, fulfillment.KindTimeout:
		log.WarnContext(ctx, "Fulfillment aborted", attrs...)
	default:
		log.InfoContext(ctx, "Fulfillment aborted", attrs...)
	}
}
