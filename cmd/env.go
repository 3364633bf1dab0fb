package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/draft"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/mailer"
	"github.com/sells-group/leadgen-cli/internal/outreach"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/internal/validate"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/firecrawl"
	"github.com/sells-group/leadgen-cli/pkg/jina"
)

// initStore opens the configured backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// discoveryEnv holds the store and pipeline used by discover/serve.
type discoveryEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Drafter  *draft.Drafter
}

// Close releases resources held by the environment.
func (e *discoveryEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initDiscovery sets up the store, API clients, and the discovery pipeline.
// Callers should defer env.Close().
func initDiscovery(ctx context.Context) (*discoveryEnv, error) {
	if err := cfg.Validate("discover"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	jinaOpts := []jina.Option{}
	if cfg.Jina.BaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithBaseURL(cfg.Jina.BaseURL))
	}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	// Scrape chain in cost order: Firecrawl when keyed, Jina Reader when
	// keyed, plain HTTP always last.
	var scrapers []scrape.Scraper
	if cfg.Firecrawl.Key != "" {
		fc := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(fc))
	}
	if cfg.Jina.Key != "" {
		scrapers = append(scrapers, scrape.NewJinaAdapter(jinaClient))
	}
	scrapers = append(scrapers, scrape.NewLocalScraper(time.Duration(cfg.Enrich.FetchTimeoutSecs)*time.Second))
	chain := scrape.NewChain(scrapers...)

	// Search providers: live web search first, LLM knowledge as fallback.
	var providers []search.Provider
	if cfg.Jina.Key != "" {
		providers = append(providers, search.NewJinaProvider(jinaClient))
	}
	providers = append(providers, search.NewKnowledgeProvider(anthropicClient, cfg.Anthropic.ExtractModel))
	searchChain := search.NewChain(providers...).
		WithTimeout(time.Duration(cfg.Search.TimeoutSecs) * time.Second)

	enricher := enrich.New(chain, anthropicClient, cfg.Anthropic.ExtractModel, enrich.Options{
		MaxPages:        cfg.Enrich.MaxPages,
		MaxContentChars: cfg.Enrich.MaxContentChars,
	})
	validator := validate.New(anthropicClient, cfg.Anthropic.ExtractModel)
	drafter := draft.New(anthropicClient, cfg.Anthropic.DraftModel)

	p := pipeline.New(searchChain, enricher, validator, st, cfg.Pipeline.MaxConcurrentEnrich)

	return &discoveryEnv{Store: st, Pipeline: p, Drafter: drafter}, nil
}

// outreachEnv holds everything needed to send mail.
type outreachEnv struct {
	Store     store.Store
	Drafter   *draft.Drafter
	Sender    *outreach.Sender
	Scheduler *outreach.Scheduler
}

// Close releases resources held by the environment.
func (e *outreachEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initOutreach sets up the store, drafter, SMTP transport, sender, and
// scheduler. userContext flows into drafted email copy.
func initOutreach(ctx context.Context, userContext string) (*outreachEnv, error) {
	if err := cfg.Validate("outreach"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	drafter := draft.New(anthropicClient, cfg.Anthropic.DraftModel)
	transport := mailer.NewSMTP(cfg.SMTP)

	return &outreachEnv{
		Store:     st,
		Drafter:   drafter,
		Sender:    outreach.NewSender(st, transport, cfg.FollowUp.Days),
		Scheduler: outreach.NewScheduler(st, drafter, transport, cfg.FollowUp.SweepInterval, userContext),
	}, nil
}
