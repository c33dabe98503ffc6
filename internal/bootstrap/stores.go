package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	domreturns "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/postgres"
)

// Stores is one consistent set of persistence adapters.
type Stores struct {
	Ledger  dominv.Ledger
	Seeder  dominv.Seeder
	Catalog catalog.Catalog
	Prices  catalog.Writer
	Orders  domorder.Repository
	Returns domreturns.Repository
	Audit   domaudit.Store
	Scopes  access.ScopeStore
}

// MemoryStores keeps everything in process. State is lost on restart.
func MemoryStores() Stores {
	ledger := memory.NewLedger()
	cat := memory.NewCatalog()
	return Stores{
		Ledger:  ledger,
		Seeder:  ledger,
		Catalog: cat,
		Prices:  cat,
		Orders:  memory.NewOrderRepository(),
		Returns: memory.NewReturnRepository(),
		Audit:   memory.NewAuditStore(),
		Scopes:  memory.NewScopeStore(),
	}
}

func PostgresStores(pool *pgxpool.Pool) Stores {
	ledger := postgres.NewLedger(pool)
	cat := postgres.NewCatalog(pool)
	return Stores{
		Ledger:  ledger,
		Seeder:  ledger,
		Catalog: cat,
		Prices:  cat,
		Orders:  postgres.NewOrderRepository(pool),
		Returns: postgres.NewReturnRepository(pool),
		Audit:   postgres.NewAuditStore(pool),
		Scopes:  postgres.NewScopeStore(pool),
	}
}
