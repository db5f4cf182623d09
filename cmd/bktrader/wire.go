//go:build wireinject
// +build wireinject

package main

import (
	"bktrader/internal/app"
	"bktrader/internal/engine"
	"bktrader/internal/quote"
	"bktrader/internal/saver"
	"bktrader/internal/session"
	"bktrader/internal/store"

	"github.com/google/wire"
)

// App holds application dependencies built by Wire.
type App struct {
	Config    *app.Config
	Store     store.Store
	Engine    *engine.Engine
	Quotes    *quote.Source
	Estimator session.Estimator
	Saver     saver.PacketSaver
}

// InitializeApp builds App from the environment via Wire.
// No store connection is opened here.
func InitializeApp() (*App, error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideStore,
		app.ProvideEstimator,
		app.ProvideFeedConfig,
		app.ProvideReconciler,
		app.ProvideQuoteSource,
		app.ProvidePacketSaver,
		app.ProvideEngine,
		wire.Struct(new(App), "*"),
	)
	return nil, nil
}
