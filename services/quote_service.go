package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Quote fetch constants
const (
	QuoteFetchConcurrency = 10 // max in-flight quote requests per cycle
	QuoteRequestTimeout   = 10 * time.Second
)

// finnhubQuote represents the quote provider payload
type finnhubQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
}

// QuoteService fetches current stock prices from the quote provider
type QuoteService struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	concurrency int
}

// NewQuoteService creates a quote service for the given provider
func NewQuoteService(apiKey, baseURL string) *QuoteService {
	return &QuoteService{
		apiKey:      apiKey,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: QuoteRequestTimeout},
		concurrency: QuoteFetchConcurrency,
	}
}

// FetchQuote fetches the current price for a single ticker. A missing or
// non-positive price is an error, never a zero result.
func (s *QuoteService) FetchQuote(ticker string) (float64, error) {
	url := fmt.Sprintf("%s/quote?symbol=%s&token=%s", s.baseURL, ticker, s.apiKey)

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

	var quote finnhubQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	if quote.Current <= 0 {
		return 0, fmt.Errorf("no valid price for %s", ticker)
	}

	return quote.Current, nil
}

// FetchPrices fetches current prices for the given tickers concurrently.
// Each ticker is requested independently; a failed, timed-out or
// non-positive result is omitted from the map and does not affect the
// others. There are no retries within a call.
func (s *QuoteService) FetchPrices(tickers []string) map[string]float64 {
	prices := make(map[string]float64, len(tickers))
	if len(tickers) == 0 {
		return prices
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			price, err := s.FetchQuote(ticker)
			if err != nil {
				log.Printf("Skipping %s this cycle: %v", ticker, err)
				return
			}

			mu.Lock()
			prices[ticker] = price
			mu.Unlock()
		}(ticker)
	}

	wg.Wait()
	return prices
}
