package scheduler

import (
	"log"
	"sync/atomic"
	"time"

	"stockwatch_backend/services"
)

// runBroadcastCycle executes one pass of the broadcast pipeline:
// subscription snapshot, quote fetch, currency conversion, per-user fan-out.
//
// Overlap policy: skip-if-busy. If a previous cycle is still in flight when
// the timer fires, this fire is skipped entirely; the guard keeps at most
// one cycle running so users never receive out-of-order or duplicate
// updates.
func (s *Scheduler) runBroadcastCycle() {
	if !atomic.CompareAndSwapInt32(&s.cycleInFlight, 0, 1) {
		log.Println("Previous broadcast cycle still running, skipping this fire")
		return
	}
	defer atomic.StoreInt32(&s.cycleInFlight, 0)

	snapshot, err := s.subs.Snapshot()
	if err != nil {
		log.Printf("Error loading subscription snapshot: %v", err)
		return
	}

	// No subscriptions: nothing to fetch, convert or send
	if len(snapshot.DistinctTickers) == 0 {
		return
	}

	native := s.quotes.FetchPrices(snapshot.DistinctTickers)
	if len(native) == 0 {
		log.Printf("No prices available for %d subscribed tickers this cycle", len(snapshot.DistinctTickers))
		return
	}

	converted := s.converter.ConvertPrices(native)
	timestamp := time.Now().Format(time.RFC3339)

	usersReached := 0
	for userID, tickers := range snapshot.ByUser {
		prices := make(map[string]float64, len(tickers))
		for _, ticker := range tickers {
			if price, ok := converted[ticker]; ok {
				prices[ticker] = price
			}
		}

		// A user with no priced tickers this cycle gets no message
		if len(prices) == 0 {
			continue
		}

		if s.hub.SendToUser(userID, services.NewPriceUpdateEvent(prices, timestamp)) > 0 {
			usersReached++
		}
	}

	log.Printf("Updated prices for %d of %d stocks, broadcast to %d users",
		len(converted), len(snapshot.DistinctTickers), usersReached)
}

// runCatalogRefresh refreshes the ticker catalog. Failures are logged and
// retried on the next scheduled fire; they never affect the broadcast timer.
func (s *Scheduler) runCatalogRefresh() {
	log.Println("Starting daily catalog refresh...")

	result, err := s.catalog.RefreshCatalog()
	if err != nil {
		log.Printf("Catalog refresh failed: %v", err)
		return
	}

	log.Printf("Catalog refresh completed: fetched=%d, validated=%d, skipped=%d, time=%s",
		result.TotalFetched, result.Validated, result.Skipped, result.ElapsedTime)
}

// bootstrapCatalog populates the catalog once on startup if it is empty,
// after a short grace delay for the storage layer
func (s *Scheduler) bootstrapCatalog() {
	time.Sleep(BootstrapGraceDelay)

	count, err := s.catalog.CatalogCount()
	if err != nil {
		log.Printf("Error checking catalog on startup: %v", err)
		return
	}

	if count > 0 {
		log.Printf("Found %d stocks in catalog", count)
		return
	}

	log.Println("Catalog is empty, fetching initial stock list...")
	s.runCatalogRefresh()
}
