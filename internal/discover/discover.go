// Package discover finds candidate documents about the company. Each
// discoverer is independent; Run merges their output in list order and keeps
// one discoverer's failure from affecting the others.
package discover

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/companywatch/internal/fetch"
	"github.com/hyperifyio/companywatch/internal/source"
)

// Fetcher retrieves one URL. *fetch.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) fetch.Result
}

// Discoverer returns candidates for one channel. Implementations have no side
// effects beyond network reads and bound their output per call.
type Discoverer interface {
	Name() string
	Discover(ctx context.Context) ([]source.Ref, error)
}

// Outcome records what one discoverer contributed during Run.
type Outcome struct {
	Name     string
	Count    int
	Err      error
	Duration time.Duration
}

// OK reports whether the discoverer finished without error.
func (o Outcome) OK() bool { return o.Err == nil }

// Run calls every discoverer in order and concatenates their candidates.
// Errors and panics are recorded in the matching Outcome and logged; partial
// results returned alongside an error are kept.
func Run(ctx context.Context, discoverers []Discoverer) ([]source.Ref, []Outcome) {
	var merged []source.Ref
	outcomes := make([]Outcome, 0, len(discoverers))
	for _, d := range discoverers {
		start := time.Now()
		refs, err := safeDiscover(ctx, d)
		o := Outcome{Name: d.Name(), Count: len(refs), Err: err, Duration: time.Since(start)}
		if err != nil {
			log.Warn().Str("stage", "discover").Str("discoverer", o.Name).Int("count", o.Count).Err(err).Msg("discoverer failed")
		} else {
			log.Debug().Str("stage", "discover").Str("discoverer", o.Name).Int("count", o.Count).Dur("took", o.Duration).Msg("discoverer done")
		}
		merged = append(merged, refs...)
		outcomes = append(outcomes, o)
	}
	return merged, outcomes
}

func safeDiscover(ctx context.Context, d Discoverer) (refs []source.Ref, err error) {
	defer func() {
		if r := recover(); r != nil {
			refs, err = nil, fmt.Errorf("discoverer %s panicked: %v", d.Name(), r)
		}
	}()
	return d.Discover(ctx)
}
