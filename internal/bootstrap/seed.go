package bootstrap

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
)

// SeedFile is the catalog feed snapshot loaded by `storefront seed`.
type SeedFile struct {
	Items []SeedItem `yaml:"items"`
}

type SeedItem struct {
	ProductID string `yaml:"product_id"`
	Variant   string `yaml:"variant"`
	Name      string `yaml:"name"`
	UnitPrice int64  `yaml:"unit_price"`
	Quantity  int    `yaml:"quantity"`
}

func LoadSeed(path string) (SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return SeedFile{}, fmt.Errorf("seed: parse %s: %w", path, err)
	}
	return f, nil
}

// Seed sets absolute stock and prices for every item. It stops at the first invalid item;
// items before it stay applied, and re-running the file is safe.
func Seed(ctx context.Context, stores Stores, f SeedFile) (int, error) {
	for i, it := range f.Items {
		key, err := dominv.NewVariantKey(it.ProductID, it.Variant)
		if err != nil {
			return i, fmt.Errorf("seed: item %d: %w", i, err)
		}
		if it.Quantity < 0 || it.UnitPrice < 0 {
			return i, fmt.Errorf("seed: item %d (%s): quantity and price must not be negative", i, key)
		}
		if err := stores.Seeder.Seed(ctx, key, it.Quantity); err != nil {
			return i, fmt.Errorf("seed: stock %s: %w", key, err)
		}
		if err := stores.Prices.Put(ctx, catalog.Price{
			ProductID: key.ProductID,
			Variant:   key.Variant,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
		}); err != nil {
			return i, fmt.Errorf("seed: price %s: %w", key, err)
		}
	}
	return len(f.Items), nil
}
