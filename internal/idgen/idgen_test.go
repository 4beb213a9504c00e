package idgen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	mu   sync.Mutex
	seqs map[string]int64
	err  error
}

func (f *fakeCounter) IncrementAndGet(_ context.Context, name string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seqs == nil {
		f.seqs = map[string]int64{}
	}
	f.seqs[name]++
	return f.seqs[name], nil
}

type fakeSales struct {
	count int
	err   error
}

func (f fakeSales) CountSales(context.Context) (int, error) {
	return f.count, f.err
}

func TestNextBarcodeIsSequential(t *testing.T) {
	gen := New(&fakeCounter{}, fakeSales{})
	ctx := context.Background()

	first, err := gen.NextBarcode(ctx, "IM001VP")
	require.NoError(t, err)
	second, err := gen.NextBarcode(ctx, "IM001VP")
	require.NoError(t, err)

	assert.Equal(t, "IM001VP0001", first)
	assert.Equal(t, "IM001VP0002", second)
	assert.Equal(t, strings.TrimSuffix(first, "0001"), strings.TrimSuffix(second, "0002"))
}

func TestNextBarcodeDefaultsPrefix(t *testing.T) {
	gen := New(&fakeCounter{}, fakeSales{})

	code, err := gen.NextBarcode(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "IM001VP0001", code)
}

func TestNextBarcodeConcurrentCallsAreDistinct(t *testing.T) {
	gen := New(&fakeCounter{}, fakeSales{})
	ctx := context.Background()

	const workers = 64
	codes := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := gen.NextBarcode(ctx, "IM001VP")
			if err == nil {
				codes <- code
			}
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[string]bool{}
	for code := range codes {
		assert.False(t, seen[code], "duplicate barcode %s", code)
		seen[code] = true
	}
	assert.Len(t, seen, workers)
}

func TestNextBarcodeFailsWithoutCounter(t *testing.T) {
	boom := errors.New("counter offline")
	gen := New(&fakeCounter{err: boom}, fakeSales{})

	code, err := gen.NextBarcode(context.Background(), "IM001VP")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, code)
}

func TestNextSaleID(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	gen := New(&fakeCounter{}, fakeSales{count: 41}).WithClock(func() time.Time { return at })

	id, err := gen.NextSaleID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FormatSaleID(at, 42), id)
	assert.True(t, strings.HasPrefix(id, "SALE-"))
	assert.True(t, strings.HasSuffix(id, "-42"))
}

func TestNextSaleIDPropagatesCountFailure(t *testing.T) {
	boom := errors.New("sales offline")
	gen := New(&fakeCounter{}, fakeSales{err: boom})

	_, err := gen.NextSaleID(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
