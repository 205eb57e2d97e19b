package ddl

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	DefaultReadCapacity  = 10
	DefaultWriteCapacity = 10
	DefaultWaitTimeout   = 5 * time.Minute
	DefaultConcurrency   = 4
)

// Throughput is the provisioned capacity given to created tables and their GSIs.
type Throughput struct {
	ReadCapacityUnits  int64
	WriteCapacityUnits int64
}

func (t Throughput) provisioned() *types.ProvisionedThroughput {
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  &t.ReadCapacityUnits,
		WriteCapacityUnits: &t.WriteCapacityUnits,
	}
}

type options struct {
	throughput    *Throughput
	gsiProjection types.ProjectionType
	waitTimeout   time.Duration
	minDelay      time.Duration
	maxDelay      time.Duration
	concurrency   int
	logger        *zap.Logger
}

func defaultOptions() options {
	return options{
		throughput: &Throughput{
			ReadCapacityUnits:  DefaultReadCapacity,
			WriteCapacityUnits: DefaultWriteCapacity,
		},
		gsiProjection: types.ProjectionTypeAll,
		waitTimeout:   DefaultWaitTimeout,
		minDelay:      2 * time.Second,
		maxDelay:      20 * time.Second,
		concurrency:   DefaultConcurrency,
		logger:        zap.NewNop(),
	}
}

type Option func(*options)

// WithThroughput sets the provisioned capacity of created tables and GSIs.
func WithThroughput(read, write int64) Option {
	return func(o *options) {
		o.throughput = &Throughput{ReadCapacityUnits: read, WriteCapacityUnits: write}
	}
}

// WithOnDemand creates tables with PAY_PER_REQUEST billing instead of provisioned capacity.
func WithOnDemand() Option {
	return func(o *options) {
		o.throughput = nil
	}
}

// WithGSIProjection sets the projection of GSIs that do not declare one.
func WithGSIProjection(p types.ProjectionType) Option {
	return func(o *options) {
		if p != "" {
			o.gsiProjection = p
		}
	}
}

// WithWaitTimeout bounds the wait for a created table to become active, or a dropped
// table to disappear.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// WithPollDelay sets the delay bounds between DescribeTable polls while waiting.
func WithPollDelay(minDelay, maxDelay time.Duration) Option {
	return func(o *options) {
		if minDelay > 0 && maxDelay >= minDelay {
			o.minDelay = minDelay
			o.maxDelay = maxDelay
		}
	}
}

// WithConcurrency limits how many tables Reconcile and Teardown work on at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
