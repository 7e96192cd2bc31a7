package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/baxromumarov/job-collector/internal/model"
)

type StatsSnapshot struct {
	Cycles            uint64             `json:"cycles"`
	CyclesFailed      uint64             `json:"cycles_failed"`
	PagesFetched      uint64             `json:"pages_fetched"`
	ListingsFetched   uint64             `json:"listings_fetched"`
	ListingsNew       uint64             `json:"listings_new"`
	ListingsDuplicate uint64             `json:"listings_duplicate"`
	DetailPages       uint64             `json:"detail_pages"`
	EnrichmentMisses  uint64             `json:"enrichment_misses"`
	ParseFailures     uint64             `json:"parse_failures"`
	ErrorsTotal       uint64             `json:"errors_total"`
	CycleSecondsAvg   float64            `json:"cycle_seconds_avg"`
	ErrorsByType      map[string]uint64  `json:"errors_by_type,omitempty"`
	ErrorsByComponent map[string]uint64  `json:"errors_by_component,omitempty"`
	LastCycle         *model.CycleResult `json:"last_cycle,omitempty"`
}

var (
	cycles            uint64
	cyclesFailed      uint64
	pagesFetched      uint64
	listingsFetched   uint64
	listingsNew       uint64
	listingsDuplicate uint64
	detailPages       uint64
	enrichmentMisses  uint64
	parseFailures     uint64
	errorsTotal       uint64

	cycleNanos uint64

	statsMu           sync.Mutex
	errorsByType      = map[string]uint64{}
	errorsByComponent = map[string]uint64{}
	lastCycle         *model.CycleResult
)

func IncPagesFetched(_ string) {
	atomic.AddUint64(&pagesFetched, 1)
}

func IncDetailPages() {
	atomic.AddUint64(&detailPages, 1)
}

func IncError(errType, component string) {
	if errType == "" {
		errType = ErrorUnknown
	}
	if component == "" {
		component = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsByComponent[component]++
	statsMu.Unlock()
}

// ObserveCycle folds a finished cycle into the counters and remembers it as the last one.
func ObserveCycle(res model.CycleResult) {
	atomic.AddUint64(&cycles, 1)
	if res.Failed() {
		atomic.AddUint64(&cyclesFailed, 1)
	}
	atomic.AddUint64(&listingsFetched, uint64(res.Fetched))
	atomic.AddUint64(&listingsNew, uint64(res.New))
	atomic.AddUint64(&listingsDuplicate, uint64(res.Duplicate))
	atomic.AddUint64(&enrichmentMisses, uint64(res.EnrichmentMisses))
	atomic.AddUint64(&parseFailures, uint64(res.ParseFailures))
	if d := res.FinishedAt.Sub(res.StartedAt); d > 0 {
		atomic.AddUint64(&cycleNanos, uint64(d))
	}

	last := res
	last.Added = nil
	statsMu.Lock()
	lastCycle = &last
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	typeCopy := copyMap(errorsByType)
	componentCopy := copyMap(errorsByComponent)
	var last *model.CycleResult
	if lastCycle != nil {
		c := *lastCycle
		last = &c
	}
	statsMu.Unlock()

	count := atomic.LoadUint64(&cycles)
	avg := 0.0
	if count > 0 {
		avg = time.Duration(atomic.LoadUint64(&cycleNanos) / count).Seconds()
	}

	return StatsSnapshot{
		Cycles:            count,
		CyclesFailed:      atomic.LoadUint64(&cyclesFailed),
		PagesFetched:      atomic.LoadUint64(&pagesFetched),
		ListingsFetched:   atomic.LoadUint64(&listingsFetched),
		ListingsNew:       atomic.LoadUint64(&listingsNew),
		ListingsDuplicate: atomic.LoadUint64(&listingsDuplicate),
		DetailPages:       atomic.LoadUint64(&detailPages),
		EnrichmentMisses:  atomic.LoadUint64(&enrichmentMisses),
		ParseFailures:     atomic.LoadUint64(&parseFailures),
		ErrorsTotal:       atomic.LoadUint64(&errorsTotal),
		CycleSecondsAvg:   avg,
		ErrorsByType:      typeCopy,
		ErrorsByComponent: componentCopy,
		LastCycle:         last,
	}
}

// Reset zeroes every counter. Used by tests.
func Reset() {
	for _, c := range []*uint64{
		&cycles, &cyclesFailed, &pagesFetched, &listingsFetched, &listingsNew,
		&listingsDuplicate, &detailPages, &enrichmentMisses, &parseFailures,
		&errorsTotal, &cycleNanos,
	} {
		atomic.StoreUint64(c, 0)
	}
	statsMu.Lock()
	errorsByType = map[string]uint64{}
	errorsByComponent = map[string]uint64{}
	lastCycle = nil
	statsMu.Unlock()
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
