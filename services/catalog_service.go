package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"stockwatch_backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog refresh constants
const (
	CatalogFetchTimeout    = 30 * time.Second
	CatalogCandidateLimit  = 200 // symbols considered per refresh
	CatalogTargetSize      = 150 // stop validating once this many symbols priced
	CatalogValidationDelay = 100 * time.Millisecond
)

// priorityTickers are major US symbols that must be considered first
var priorityTickers = []string{
	"GOOGL", "GOOG", "NVDA", "TSLA", "META", "AMZN", "AAPL", "MSFT",
	"NFLX", "AMD", "INTC", "CRM", "UBER", "PYPL", "ADBE",
	"ORCL", "CSCO", "IBM", "QCOM", "TXN", "AVGO", "COST", "SBUX",
	"PEP", "KO", "MCD", "WMT", "HD", "DIS", "V", "MA", "JPM", "BAC",
}

// FinnhubSymbol represents one entry from the symbol listing endpoint
type FinnhubSymbol struct {
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"displaySymbol"`
	Description   string `json:"description"`
	Type          string `json:"type"`
	Currency      string `json:"currency"`
}

// CatalogSyncResult summarizes one catalog refresh
type CatalogSyncResult struct {
	TotalFetched int      `json:"total_fetched"`
	Validated    int      `json:"validated"`
	Skipped      int      `json:"skipped"`
	Symbols      []string `json:"symbols"`
	ElapsedTime  string   `json:"elapsed_time"`
}

// CatalogService maintains the ticker catalog: it fetches the US symbol
// listing, validates that each candidate has a live price, and stores the
// result in Postgres with SQLite and optional MongoDB mirrors.
type CatalogService struct {
	db         *gorm.DB
	store      *CatalogStore       // may be nil
	mirror     *MongoCatalogMirror // may be nil
	quotes     *QuoteService
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewCatalogService creates a catalog service
func NewCatalogService(db *gorm.DB, store *CatalogStore, mirror *MongoCatalogMirror, quotes *QuoteService, apiKey, baseURL string) *CatalogService {
	return &CatalogService{
		db:         db,
		store:      store,
		mirror:     mirror,
		quotes:     quotes,
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: CatalogFetchTimeout},
	}
}

// CatalogCount returns the number of stocks currently in the catalog. When
// Postgres is unavailable the local mirror's count is reported instead.
func (s *CatalogService) CatalogCount() (int64, error) {
	var count int64
	err := s.db.Model(&models.Stock{}).Count(&count).Error
	if err != nil && s.store != nil {
		if mirrorCount, mirrorErr := s.store.Count(); mirrorErr == nil {
			log.Printf("Counting catalog from local mirror: %v", err)
			return int64(mirrorCount), nil
		}
	}
	return count, err
}

// RefreshCatalog fetches the US symbol listing, keeps plain common stocks,
// validates prices and upserts the survivors
func (s *CatalogService) RefreshCatalog() (*CatalogSyncResult, error) {
	startTime := time.Now()

	symbols, err := s.fetchSymbols("US")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch symbol listing: %w", err)
	}

	candidates := SelectCatalogCandidates(symbols, CatalogCandidateLimit)
	log.Printf("Catalog refresh: %d candidates from %d listed symbols", len(candidates), len(symbols))

	result := &CatalogSyncResult{TotalFetched: len(symbols)}
	validated := make([]models.Stock, 0, CatalogTargetSize)

	for _, candidate := range candidates {
		if len(validated) >= CatalogTargetSize {
			break
		}

		price, err := s.quotes.FetchQuote(candidate.Symbol)
		if err != nil || price <= 0 {
			result.Skipped++
			continue
		}

		validated = append(validated, models.Stock{
			Symbol:   candidate.Symbol,
			Name:     candidate.Description,
			Exchange: "US",
			Status:   models.StockStatusActive,
		})
		result.Symbols = append(result.Symbols, candidate.Symbol)

		// Politeness delay between validation calls
		time.Sleep(CatalogValidationDelay)
	}

	if len(validated) == 0 {
		return nil, fmt.Errorf("no symbols passed price validation")
	}

	if err := s.upsertStocks(validated); err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.SaveCatalog(validated); err != nil {
			log.Printf("Warning: failed to save catalog to local mirror: %v", err)
		}
	}
	if s.mirror.Enabled() {
		if err := s.mirror.SaveCatalog(validated); err != nil {
			log.Printf("Warning: failed to save catalog to MongoDB: %v", err)
		}
	}

	result.Validated = len(validated)
	result.ElapsedTime = time.Since(startTime).Round(time.Second).String()
	return result, nil
}

// upsertStocks writes validated stocks into Postgres
func (s *CatalogService) upsertStocks(stocks []models.Stock) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "exchange", "status", "updated_at"}),
	}).Create(&stocks).Error
	if err != nil {
		return fmt.Errorf("failed to upsert stocks: %w", err)
	}
	return nil
}

// LocalCatalog reads the SQLite mirror, for catalog reads when Postgres is
// unavailable
func (s *CatalogService) LocalCatalog() ([]models.Stock, error) {
	if s.store == nil {
		return nil, fmt.Errorf("local catalog mirror not configured")
	}
	return s.store.LoadCatalog()
}

// SearchLocal searches the SQLite mirror by symbol or company name
func (s *CatalogService) SearchLocal(query string, limit int) ([]models.Stock, error) {
	if s.store == nil {
		return nil, fmt.Errorf("local catalog mirror not configured")
	}
	return s.store.SearchCatalog(query, limit)
}

// fetchSymbols fetches the symbol listing for an exchange
func (s *CatalogService) fetchSymbols(exchange string) ([]FinnhubSymbol, error) {
	url := fmt.Sprintf("%s/stock/symbol?exchange=%s&token=%s", s.baseURL, exchange, s.apiKey)

	resp, err := s.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var symbols []FinnhubSymbol
	if err := json.Unmarshal(body, &symbols); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return symbols, nil
}

// SelectCatalogCandidates filters the symbol listing down to plain uppercase
// common stocks, priority symbols first, the rest sorted by company name
func SelectCatalogCandidates(symbols []FinnhubSymbol, limit int) []FinnhubSymbol {
	isPriority := make(map[string]bool, len(priorityTickers))
	for _, ticker := range priorityTickers {
		isPriority[ticker] = true
	}

	var priority, others []FinnhubSymbol
	for _, sym := range symbols {
		if sym.Type != "Common Stock" || sym.Description == "" {
			continue
		}
		if !models.IsValidTicker(sym.Symbol) {
			continue
		}
		if isPriority[sym.Symbol] {
			priority = append(priority, sym)
		} else {
			others = append(others, sym)
		}
	}

	sort.Slice(others, func(i, j int) bool {
		return others[i].Description < others[j].Description
	})

	candidates := append(priority, others...)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
