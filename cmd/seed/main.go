package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"subscription-commerce/internal/config"
	"subscription-commerce/internal/domain/model"
	pg "subscription-commerce/internal/infra/db/postgres"
	"subscription-commerce/internal/infra/logging"
	"subscription-commerce/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, pg.Schema); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	fmt.Println("schema up to date")

	planRepo := pg.NewPlanRepo(pool)
	planUC := usecase.NewPlanUseCase(planRepo, logger)

	// If plans already exist, do nothing
	plans, err := planUC.List(ctx)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (%s) monthly=%s yearly=%s\n", p.Name, p.Slug,
				model.FormatMoney(p.PriceMonthly), model.FormatMoney(p.PriceYearly))
		}
		return
	}

	// Seed plans from the pricing catalog so plan lookup during captures
	// resolves without manual setup.
	catalog := usecase.DefaultCatalog()
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry := catalog[key]
		monthly, err := entry.Price.ForCycle(model.BillingCycleMonthly)
		if err != nil {
			log.Fatalf("catalog %s: %v", key, err)
		}
		yearly, err := entry.Price.ForCycle(model.BillingCycleYearly)
		if err != nil {
			log.Fatalf("catalog %s: %v", key, err)
		}
		p, err := planUC.Create(ctx, key, entry.Name, monthly, yearly)
		if err != nil {
			log.Fatalf("create plan %s: %v", key, err)
		}
		fmt.Printf("seeded plan %s (%s)\n", p.Name, p.Slug)
	}
	fmt.Printf("seeded %d plans\n", len(keys))
}
