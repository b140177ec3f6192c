package cache

import (
	"context"
	"time"

	"posdoctor/internal/domain"
)

// LastRepairKey holds the most recent repair report.
const LastRepairKey = "repair:last"

type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.RepairResult, bool, error)
	Set(ctx context.Context, key string, value *domain.RepairResult, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.RepairResult, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.RepairResult, _ time.Duration) error {
	return nil
}
