package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// DefaultFallbackRate is returned when the provider fails and no rate was
// ever cached. Approximate USD to INR rate.
const DefaultFallbackRate = 83.0

// CurrencyFetchTimeout bounds a single rate fetch from the provider
const CurrencyFetchTimeout = 10 * time.Second

// cachedRate is the single cached exchange rate with its fetch instant
type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// CurrencyService fetches, caches and applies the display-currency exchange
// rate. The cached value is guarded by a mutex held across the
// check-fetch-store sequence, so concurrent callers cannot race a stale
// cache-miss into a torn update.
type CurrencyService struct {
	apiKey     string
	baseURL    string
	target     string
	validity   time.Duration
	httpClient *http.Client
	clock      clockwork.Clock

	mu     sync.Mutex
	cached *cachedRate
}

// NewCurrencyService creates a currency service for the given provider
func NewCurrencyService(apiKey, baseURL, target string, validityHours int) *CurrencyService {
	if validityHours < 1 {
		validityHours = 1
	}
	return &CurrencyService{
		apiKey:     apiKey,
		baseURL:    baseURL,
		target:     target,
		validity:   time.Duration(validityHours) * time.Hour,
		httpClient: &http.Client{Timeout: CurrencyFetchTimeout},
		clock:      clockwork.NewRealClock(),
	}
}

// GetRate returns the current exchange rate. It never fails: on provider
// failure it falls back to the last cached rate (even if expired), or to
// DefaultFallbackRate when nothing was ever cached.
func (s *CurrencyService) GetRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.clock.Since(s.cached.fetchedAt) < s.validity {
		return s.cached.rate
	}

	rate, err := s.fetchRate()
	if err != nil {
		if s.cached != nil {
			log.Printf("Currency fetch failed, using expired cached rate %.4f: %v", s.cached.rate, err)
			return s.cached.rate
		}
		log.Printf("Currency fetch failed, using default fallback rate %.1f: %v", DefaultFallbackRate, err)
		return DefaultFallbackRate
	}

	s.cached = &cachedRate{rate: rate, fetchedAt: s.clock.Now()}
	return rate
}

// ConvertPrices converts native-currency prices into the display currency,
// rounded to 2 decimal places. One rate is fetched and applied uniformly to
// every ticker in the map.
func (s *CurrencyService) ConvertPrices(prices map[string]float64) map[string]float64 {
	rate := decimal.NewFromFloat(s.GetRate())

	converted := make(map[string]float64, len(prices))
	for ticker, price := range prices {
		converted[ticker] = decimal.NewFromFloat(price).Mul(rate).Round(2).InexactFloat64()
	}
	return converted
}

// CachedRateInfo reports the cached rate state for status endpoints
func (s *CurrencyService) CachedRateInfo() (rate float64, fetchedAt time.Time, valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		return 0, time.Time{}, false
	}
	return s.cached.rate, s.cached.fetchedAt, s.clock.Since(s.cached.fetchedAt) < s.validity
}

// currencyRatesResponse is the provider payload; rate values arrive as strings
type currencyRatesResponse struct {
	Rates map[string]string `json:"rates"`
}

// fetchRate fetches a fresh rate from the currency provider
func (s *CurrencyService) fetchRate() (float64, error) {
	url := fmt.Sprintf("%s/rates/latest?apikey=%s&symbols=%s", s.baseURL, s.apiKey, s.target)

	resp, err := s.httpClient.Get(url)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	var ratesResp currencyRatesResponse
	if err := json.Unmarshal(body, &ratesResp); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	raw, ok := ratesResp.Rates[s.target]
	if !ok {
		return 0, fmt.Errorf("rate for %s missing from response", s.target)
	}

	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", raw, err)
	}

	// A non-finite or non-positive rate is a fetch failure, not a success
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, fmt.Errorf("invalid rate received: %v", rate)
	}

	return rate, nil
}
