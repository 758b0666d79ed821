package services

import (
	"path/filepath"
	"testing"

	"stockwatch_backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSelectCatalogCandidates_FiltersAndOrders(t *testing.T) {
	symbols := []FinnhubSymbol{
		{Symbol: "ZZZZ", Description: "Zeta Corp", Type: "Common Stock"},
		{Symbol: "AAPL", Description: "Apple Inc", Type: "Common Stock"},
		{Symbol: "BRK.A", Description: "Berkshire Hathaway", Type: "Common Stock"}, // dotted symbol
		{Symbol: "ABC-W", Description: "ABC Warrants", Type: "Common Stock"},       // warrant suffix
		{Symbol: "TOOLONG", Description: "Too Long Industries", Type: "Common Stock"},
		{Symbol: "ETF", Description: "Some Fund", Type: "ETP"},    // not common stock
		{Symbol: "NODESC", Description: "", Type: "Common Stock"}, // missing name
		{Symbol: "ACME", Description: "Acme Industries", Type: "Common Stock"},
	}

	candidates := SelectCatalogCandidates(symbols, 10)

	got := make([]string, 0, len(candidates))
	for _, c := range candidates {
		got = append(got, c.Symbol)
	}

	// AAPL is a priority symbol and leads; the rest sort by company name
	assert.Equal(t, []string{"AAPL", "ACME", "ZZZZ"}, got)
}

func TestSelectCatalogCandidates_Limit(t *testing.T) {
	symbols := []FinnhubSymbol{
		{Symbol: "AAA", Description: "A Corp", Type: "Common Stock"},
		{Symbol: "BBB", Description: "B Corp", Type: "Common Stock"},
		{Symbol: "CCC", Description: "C Corp", Type: "Common Stock"},
	}

	candidates := SelectCatalogCandidates(symbols, 2)
	assert.Len(t, candidates, 2)
}

// newSeededCatalogStore opens a temp-file mirror holding the given stocks
func newSeededCatalogStore(t *testing.T, stocks []models.Stock) *CatalogStore {
	t.Helper()
	store, err := OpenCatalogStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SaveCatalog(stocks))
	return store
}

func TestCatalogStore_SearchAndCount(t *testing.T) {
	store := newSeededCatalogStore(t, []models.Stock{
		{Symbol: "AAPL", Name: "Apple Inc", Exchange: "US", Status: models.StockStatusActive},
		{Symbol: "MSFT", Name: "Microsoft Corp", Exchange: "US", Status: models.StockStatusActive},
	})

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	matches, err := store.SearchCatalog("Micro", 20)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "MSFT", matches[0].Symbol)

	matches, err = store.SearchCatalog("NOPE", 20)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCatalogCount_FallsBackToMirror(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Close the primary connection so every query fails
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	store := newSeededCatalogStore(t, []models.Stock{
		{Symbol: "AAPL", Name: "Apple Inc", Exchange: "US", Status: models.StockStatusActive},
		{Symbol: "MSFT", Name: "Microsoft Corp", Exchange: "US", Status: models.StockStatusActive},
	})

	svc := NewCatalogService(db, store, nil, nil, "", "")
	count, err := svc.CatalogCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestSearchLocal_WithoutMirrorErrors(t *testing.T) {
	svc := NewCatalogService(nil, nil, nil, nil, "", "")
	_, err := svc.SearchLocal("AAPL", 20)
	assert.Error(t, err)
}
