package scheduler

import (
	"log"
	"time"

	"stockwatch_backend/services"

	"github.com/go-co-op/gocron"
)

// BootstrapGraceDelay gives the storage layer time to finish initializing
// before the startup catalog check runs
const BootstrapGraceDelay = 2 * time.Second

// SnapshotSource provides the per-cycle subscription snapshot
type SnapshotSource interface {
	Snapshot() (*services.SubscriptionSnapshot, error)
}

// QuoteFetcher fetches current prices for a set of tickers
type QuoteFetcher interface {
	FetchPrices(tickers []string) map[string]float64
}

// PriceConverter converts native-currency prices to the display currency
type PriceConverter interface {
	ConvertPrices(prices map[string]float64) map[string]float64
}

// Broadcaster delivers an event to one user's connections
type Broadcaster interface {
	SendToUser(userID uint, event services.PriceUpdateEvent) int
}

// CatalogRefresher maintains the ticker catalog
type CatalogRefresher interface {
	CatalogCount() (int64, error)
	RefreshCatalog() (*services.CatalogSyncResult, error)
}

// Scheduler owns the broadcast and catalog-refresh timers plus the startup
// catalog bootstrap
type Scheduler struct {
	cron      *gocron.Scheduler
	subs      SnapshotSource
	quotes    QuoteFetcher
	converter PriceConverter
	hub       Broadcaster
	catalog   CatalogRefresher

	interval  time.Duration
	refreshAt string

	cycleInFlight int32
}

// NewScheduler creates a scheduler wired to its collaborators
func NewScheduler(subs SnapshotSource, quotes QuoteFetcher, converter PriceConverter, hub Broadcaster, catalog CatalogRefresher, intervalSec int, refreshAt string) *Scheduler {
	if intervalSec < 1 {
		intervalSec = 30
	}
	return &Scheduler{
		cron:      gocron.NewScheduler(time.Local),
		subs:      subs,
		quotes:    quotes,
		converter: converter,
		hub:       hub,
		catalog:   catalog,
		interval:  time.Duration(intervalSec) * time.Second,
		refreshAt: refreshAt,
	}
}

// Start registers both timers and kicks off the bootstrap check
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Broadcast cycle every configured interval
	s.cron.Every(int(s.interval.Seconds())).Seconds().Do(s.runBroadcastCycle)

	// Catalog refresh once daily at the configured wall-clock time
	s.cron.Every(1).Day().At(s.refreshAt).Do(s.runCatalogRefresh)

	s.cron.StartAsync()

	go s.bootstrapCatalog()

	log.Printf("Scheduler started: broadcast every %v, catalog refresh daily at %s", s.interval, s.refreshAt)
}

// Stop halts further timer fires. In-flight cycles are not drained.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}
