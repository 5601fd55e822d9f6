package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hireloop/resume-intake/internal/identity"
	"github.com/hireloop/resume-intake/internal/ingest"
	"github.com/hireloop/resume-intake/internal/loader"
	"github.com/hireloop/resume-intake/internal/store"
	"github.com/hireloop/resume-intake/pkg/llm"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "resume-intake.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initLoader() (loader.Loader, error) {
	return loader.New(cfg.Loader.Provider, cfg.Loader.PdfToTextPath, cfg.Loader.MistralKey)
}

// initLLM returns nil when no API key is configured or escalation is
// disabled; the pipeline then runs rules-only.
func initLLM() llm.Client {
	if cfg.Ingest.DisableModelEscalation || cfg.Anthropic.Key == "" {
		return nil
	}
	return llm.NewAnthropic(cfg.Anthropic.Key, llm.Options{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		MaxAttempts: cfg.Anthropic.MaxAttempts,
		QPS:         cfg.Anthropic.QPS,
	})
}

func initExtractor(client llm.Client) *identity.Extractor {
	var fallback identity.Resolver
	if client != nil {
		fallback = identity.ModelResolver{Client: client}
	}
	extractor := identity.NewExtractor(fallback)
	extractor.TriggerThreshold = cfg.Identity.TriggerThreshold
	extractor.AcceptThreshold = cfg.Identity.AcceptThreshold
	return extractor
}

// initService wires the full ingestion pipeline. The caller owns closing
// the returned store.
func initService(ctx context.Context) (*ingest.Service, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}

	ld, err := initLoader()
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}

	client := initLLM()
	svc := ingest.New(st, ld, initExtractor(client), client, zap.L())
	svc.SectionAcceptThreshold = cfg.Ingest.SectionAcceptThreshold
	svc.SectionExcerptChars = cfg.Ingest.SectionExcerptChars
	return svc, st, nil
}
