// seed-fixtures writes the mock sites and August 2025 records to MySQL.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-fixtures
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/greenops/fieldops_backend/config"
	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
)

func main() {
	migrate := flag.Bool("migrate", true, "Run AutoMigrate before seeding")
	flushCache := flag.Bool("flush-cache", false, "Drop cached record lists in Redis (REDIS_ADDRESS) after seeding")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "SeedFixtures")
	ctx = utils.SetSkipClientScopeInContext(ctx, true)

	if err := models.SeedFixturesDB(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed fixtures: %v\n", err)
		os.Exit(1)
	}
	if *flushCache {
		config.ConnectRedisWithRetry()
		store := models.NewGormStore()
		for _, site := range models.FixtureData().Sites {
			for kind := range models.Schemas {
				store.Invalidate(site.ID, kind)
			}
		}
	}
	fmt.Printf("Seeded fixtures for client %q (%s, %s)\n", models.FixtureClientId, models.FixtureSiteAlpha, models.FixtureSiteBravo)
}
