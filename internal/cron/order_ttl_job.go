package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/logger"
)

const staleOrderBatchSize = 200

type stalePendingReader interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderExpirer interface {
	ExpireOrder(ctx context.Context, orderID uuid.UUID) error
}

// OrderTTLJobParams configure the pending order sweep.
type OrderTTLJobParams struct {
	Logger     *logger.Logger
	Orders     stalePendingReader
	Expirer    orderExpirer
	PendingTTL time.Duration
}

type orderTTLJob struct {
	logg    *logger.Logger
	orders  stalePendingReader
	expirer orderExpirer
	ttl     time.Duration
	now     func() time.Time
}

// NewOrderTTLJob builds the cron job that expires stale pending orders.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	if params.PendingTTL <= 0 {
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	return &orderTTLJob{
		logg:    params.Logger,
		orders:  params.Orders,
		expirer: params.Expirer,
		ttl:     params.PendingTTL,
		now:     time.Now,
	}, nil
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

// Run expires every order still pending past the TTL. Per-order failures are
// collected so one bad order does not stall the rest of the sweep.
func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.ListStalePending(ctx, cutoff, staleOrderBatchSize)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}
	if len(stale) == 0 {
		j.logg.Info(ctx, "no stale pending orders")
		return nil
	}

	var errs error
	expired := 0
	for _, order := range stale {
		if err := j.expirer.ExpireOrder(ctx, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}

	fields := map[string]any{
		"stale_count":   len(stale),
		"expired_count": expired,
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "stale order sweep finished")
	return errs
}
