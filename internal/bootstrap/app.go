// Package bootstrap assembles the storefront from configuration: stores, lock, use cases,
// event bus and the HTTP handler.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application/access"
	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	appinv "github.com/Zhima-Mochi/minishop-storefront/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/notification"
	apporder "github.com/Zhima-Mochi/minishop-storefront/internal/application/order"
	apppay "github.com/Zhima-Mochi/minishop-storefront/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/reservation"
	appreturns "github.com/Zhima-Mochi/minishop-storefront/internal/application/returns"
	"github.com/Zhima-Mochi/minishop-storefront/internal/config"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/auth"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/id"
	infranotify "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/notification"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/outbox"
	infrapay "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-storefront/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-storefront/internal/presentation/worker"
)

// App is the wired service. Start the bus before serving and stop it after the HTTP server.
type App struct {
	Services      httppresentation.Services
	Authenticator *auth.JWTAuthenticator
	Verifier      *infrapay.HMACVerifier
	Bus           *outbox.Bus
	Notifications *notification.Worker
	Stores        Stores

	tel observability.Observability
}

func New(cfg config.Config, stores Stores, locker lock.Locker, tel observability.Observability) (*App, error) {
	if tel == nil {
		tel = observability.Nop()
	}

	authn, err := auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, stores.Scopes)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	verifier, err := infrapay.NewHMACVerifier(cfg.Payment.Secret)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	bus := outbox.NewBus(tel, outbox.Options{
		QueueSize:      cfg.Outbox.QueueSize,
		Concurrency:    cfg.Outbox.Concurrency,
		HandlerTimeout: cfg.Outbox.HandlerTimeout,
	})
	ids := id.NewUUIDGenerator()
	writer := appaudit.NewWriter(stores.Audit, ids, tel)
	locks := reservation.NewManager(locker, reservation.Options{
		Retries:    cfg.Lock.Retries,
		RetryDelay: cfg.Lock.RetryDelay,
	}, tel)
	stock := appinv.NewService(stores.Ledger, locks, writer, cfg.Lock.TTL, tel)
	gate := apppay.NewGate(verifier, stores.Orders, tel)
	pricing := domorder.Pricing{
		TaxRate:          cfg.TaxRate(),
		FlatShipping:     cfg.Pricing.FlatShipping,
		FreeShippingOver: cfg.Pricing.FreeShippingOver,
	}

	return &App{
		Services: httppresentation.Services{
			CheckStock:       appinv.NewCheckStockUseCase(stores.Ledger, tel),
			AdjustStock:      appinv.NewAdjustStockUseCase(stores.Ledger, stores.Seeder, locks, writer, cfg.Lock.TTL, tel),
			PlaceOrder:       apporder.NewPlaceOrderUseCase(stores.Orders, stores.Catalog, stock, gate, pricing, ids, writer, bus, tel),
			TransitionOrder:  apporder.NewTransitionOrderUseCase(stores.Orders, stock, writer, bus, tel),
			Orders:           apporder.NewQueries(stores.Orders),
			CreateReturn:     appreturns.NewCreateReturnUseCase(stores.Returns, stores.Orders, locks, ids, writer, bus, tel),
			TransitionReturn: appreturns.NewTransitionReturnUseCase(stores.Returns, stores.Orders, locks, stock, writer, bus, tel),
			Returns:          appreturns.NewQueries(stores.Returns),
			Scopes:           access.NewScopeAdmin(stores.Scopes, writer, tel),
			Audit:            appaudit.NewQuery(stores.Audit),
		},
		Authenticator: authn,
		Verifier:      verifier,
		Bus:           bus,
		Notifications: notification.New(workerpresentation.ObservedSubscriber(bus, tel, "notifications"), infranotify.NewLogNotifier(tel.Logger()), tel),
		Stores:        stores,
		tel:           tel,
	}, nil
}

// Start subscribes the notification worker and starts event dispatch.
func (a *App) Start(ctx context.Context) {
	a.Notifications.Start()
	a.Bus.Start(ctx)
}

// Stop drains queued events. Call it after the HTTP server has shut down.
func (a *App) Stop(ctx context.Context) {
	a.Bus.Stop(ctx)
}

func (a *App) Handler(opts httppresentation.Options) http.Handler {
	return httppresentation.NewHandler(a.Services, a.Authenticator, opts, a.tel).Router()
}
