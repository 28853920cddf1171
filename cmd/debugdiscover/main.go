package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/companywatch/internal/aggregate"
	"github.com/hyperifyio/companywatch/internal/app"
	"github.com/hyperifyio/companywatch/internal/discover"
	"github.com/hyperifyio/companywatch/internal/fetch"
)

// debugdiscover runs the configured discoverers once and prints the merged,
// deduplicated candidates. Configuration comes from the same environment
// variables as companywatch.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	timeout := flag.Duration("timeout", 60*time.Second, "Overall timeout")
	flag.Parse()

	_ = app.LoadEnvFiles(".env", ".env.local")
	cfg := app.ConfigFromEnv()

	f := &fetch.Client{HTTPClient: &http.Client{}, UserAgent: cfg.UserAgent, PerRequestTimeout: cfg.FetchTimeout}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	refs, outcomes := discover.Run(ctx, app.BuildDiscoverers(cfg, f))
	for _, o := range outcomes {
		status := "ok"
		if !o.OK() {
			status = o.Err.Error()
		}
		fmt.Printf("# %s: %d candidates in %s (%s)\n", o.Name, o.Count, o.Duration.Round(time.Millisecond), status)
	}
	refs = aggregate.Dedupe(refs)
	for i, r := range refs {
		published := "-"
		if r.PublishedAt != nil {
			published = r.PublishedAt.Format(time.RFC3339)
		}
		fmt.Printf("%d. [%s] %s — %s (%s)\n", i+1, r.Origin, r.Title, r.URL, published)
	}
}
