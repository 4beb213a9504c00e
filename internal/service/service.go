package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/VishnuMK2006/invent-consolt/internal/cache"
	"github.com/VishnuMK2006/invent-consolt/internal/idgen"
	"github.com/VishnuMK2006/invent-consolt/internal/logger"
	"github.com/VishnuMK2006/invent-consolt/internal/metrics"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
)

type Options struct {
	BarcodePrefix string
	Cache         cache.ProductCache
	CacheTTL      time.Duration
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
	// Counters overrides the repository as the barcode counter source.
	Counters store.CounterStore
	Clock    func() time.Time
}

type Service struct {
	repo          store.Repository
	ids           *idgen.Generator
	cache         cache.ProductCache
	cacheTTL      time.Duration
	metrics       *metrics.Metrics
	log           *logger.Logger
	barcodePrefix string
	now           func() time.Time
	lookups       singleflight.Group
}

func New(repo store.Repository, opts Options) *Service {
	if opts.BarcodePrefix == "" {
		opts.BarcodePrefix = idgen.DefaultBarcodePrefix
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopProductCache{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	var counters store.CounterStore = repo
	if opts.Counters != nil {
		counters = opts.Counters
	}

	return &Service{
		repo:          repo,
		ids:           idgen.New(counters, repo).WithClock(opts.Clock),
		cache:         opts.Cache,
		cacheTTL:      opts.CacheTTL,
		metrics:       opts.Metrics,
		log:           opts.Logger.Named("service"),
		barcodePrefix: opts.BarcodePrefix,
		now:           opts.Clock,
	}
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, fmt.Sprintf(format, args...))
}

var knownErrors = []error{
	store.ErrNotFound,
	store.ErrInvalidInput,
	store.ErrInsufficientStock,
	store.ErrUnavailableProducts,
	store.ErrStockConflict,
	store.ErrDuplicate,
	store.ErrStorage,
}

// storageErr tags repository failures that carry no domain meaning so callers
// can tell them apart from expected outcomes.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrStorage, err)
}

func (s *Service) invalidate(ctx context.Context, barcodes ...string) {
	keys := make([]string, 0, len(barcodes))
	for _, code := range barcodes {
		if code = strings.TrimSpace(code); code != "" {
			keys = append(keys, code)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn(ctx, "product cache invalidate failed", err, map[string]any{"barcodes": keys})
	}
}
