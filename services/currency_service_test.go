package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCurrencyService(t *testing.T, handler http.HandlerFunc) (*CurrencyService, clockwork.FakeClock) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	clock := clockwork.NewFakeClock()
	svc := NewCurrencyService("test-key", server.URL, "INR", 1)
	svc.clock = clock
	return svc, clock
}

func rateHandler(rate string, calls *int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		fmt.Fprintf(w, `{"rates":{"INR":"%s"}}`, rate)
	}
}

func TestGetRate_CachedWithinValidityWindow(t *testing.T) {
	var calls int64
	svc, clock := newTestCurrencyService(t, rateHandler("83.5", &calls))

	first := svc.GetRate()
	second := svc.GetRate()

	assert.Equal(t, 83.5, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "second call within the window must not hit the provider")

	// Past the validity window a fresh fetch happens
	clock.Advance(2 * time.Hour)
	svc.GetRate()
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestGetRate_ExpiredCacheUsedAsFallback(t *testing.T) {
	var calls int64
	var failing atomic.Bool
	svc, clock := newTestCurrencyService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"rates":{"INR":"83.5"}}`)
	})

	require.Equal(t, 83.5, svc.GetRate())

	failing.Store(true)
	clock.Advance(2 * time.Hour)

	// Provider down, expired cache still wins over the default constant
	assert.Equal(t, 83.5, svc.GetRate())
}

func TestGetRate_DefaultWhenNoCache(t *testing.T) {
	svc, _ := newTestCurrencyService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	assert.Equal(t, DefaultFallbackRate, svc.GetRate())
}

func TestGetRate_NonPositiveRateIsFailure(t *testing.T) {
	var calls int64
	svc, _ := newTestCurrencyService(t, rateHandler("-1", &calls))

	assert.Equal(t, DefaultFallbackRate, svc.GetRate())

	rate, _, valid := svc.CachedRateInfo()
	assert.Zero(t, rate)
	assert.False(t, valid, "a rejected rate must not populate the cache")
}

func TestGetRate_MalformedResponseIsFailure(t *testing.T) {
	svc, _ := newTestCurrencyService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	})

	assert.Equal(t, DefaultFallbackRate, svc.GetRate())
}

func TestGetRate_ConcurrentCallersSingleFetch(t *testing.T) {
	var calls int64
	svc, _ := newTestCurrencyService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, `{"rates":{"INR":"83.5"}}`)
	})

	var wg sync.WaitGroup
	results := make([]float64, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.GetRate()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "cache miss must not be raced into multiple fetches")
	for _, rate := range results {
		assert.Equal(t, 83.5, rate)
	}
}

func TestConvertPrices_RoundsToTwoDecimals(t *testing.T) {
	var calls int64
	svc, _ := newTestCurrencyService(t, rateHandler("83", &calls))

	converted := svc.ConvertPrices(map[string]float64{"AAPL": 100.00})

	require.Contains(t, converted, "AAPL")
	assert.Equal(t, 8300.00, converted["AAPL"])
}

func TestConvertPrices_SingleRatePerCall(t *testing.T) {
	var calls int64
	svc, _ := newTestCurrencyService(t, rateHandler("82.6666", &calls))

	converted := svc.ConvertPrices(map[string]float64{
		"AAPL": 190.55,
		"MSFT": 401.10,
		"TSLA": 212.33,
	})

	assert.Len(t, converted, 3)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "one rate fetch must cover the whole map")
	assert.Equal(t, 15752.12, converted["AAPL"]) // 190.55 * 82.6666 rounded to 2dp
}
