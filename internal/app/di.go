package app

import (
	"fmt"
	"log/slog"

	"bktrader/internal/engine"
	"bktrader/internal/quote"
	"bktrader/internal/reconcile"
	"bktrader/internal/saver"
	"bktrader/internal/session"
	"bktrader/internal/store"
	"bktrader/internal/store/chstore"
	"bktrader/internal/store/parquetstore"
)

// ProvideConfig loads config from environment (for Wire).
func ProvideConfig() (*Config, error) {
	return LoadConfig()
}

// ProvideStore picks the bar store backend from STORE_KIND (for Wire).
// No connection is made here; replayers open their own.
func ProvideStore(cfg *Config) (store.Store, error) {
	switch cfg.StoreKind {
	case "parquet":
		return parquetstore.New(cfg.StorePath), nil
	case "clickhouse":
		st, err := chstore.New(chstore.Options{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Table:    cfg.ClickHouseTable,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported STORE_KIND %q (use: parquet, clickhouse)", cfg.StoreKind)
	}
}

// ProvideEstimator builds the session estimator (for Wire).
func ProvideEstimator(cfg *Config) (session.Estimator, error) {
	return cfg.Estimator()
}

// ProvideFeedConfig returns the feed profile from FEED_FILE, or the built-in one (for Wire).
func ProvideFeedConfig(cfg *Config) (quote.FeedConfig, error) {
	feed := quote.DefaultFeedConfig()
	if cfg.FeedFile != "" {
		var err error
		if feed, err = quote.LoadFeedConfig(cfg.FeedFile); err != nil {
			return feed, err
		}
	}
	if err := validate.Struct(feed); err != nil {
		return feed, fmt.Errorf("invalid feed config: %w", err)
	}
	return feed, nil
}

// ProvideReconciler creates the reconciler reading factors from st (for Wire).
func ProvideReconciler(st store.Store) *reconcile.Reconciler {
	return reconcile.New(st, slog.Default())
}

// ProvideQuoteSource creates the live quote source (for Wire).
func ProvideQuoteSource(feed quote.FeedConfig, est session.Estimator, rec *reconcile.Reconciler) (*quote.Source, error) {
	return quote.NewSource(feed, est, rec, slog.Default())
}

// ProvidePacketSaver creates PacketSaver from config (for Wire).
// Returns nil when EXPORT_FORMAT is empty; callers then skip exporting.
func ProvidePacketSaver(cfg *Config) (saver.PacketSaver, error) {
	if cfg.ExportFormat == "" {
		return nil, nil
	}
	return saver.NewPacketSaver(cfg.ExportFormat)
}

// ProvideEngine creates the engine (for Wire).
func ProvideEngine() *engine.Engine {
	return engine.New(slog.Default())
}
