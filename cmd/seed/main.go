package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"telegram-payment-links/internal/config"
	pg "telegram-payment-links/internal/infra/db/postgres"
	"telegram-payment-links/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	// Seeding never talks to Telegram or Razorpay, so credentials are not required.
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	catalog := usecase.NewCatalogUseCase(pg.NewPostgresProductRepo(pool))

	// Amounts are in paise.
	seed := []struct {
		ID     string
		Name   string
		Amount int64
		Days   int
	}{
		{"basic", "Basic Plan", 100_00, 30},
		{"premium", "Premium Plan", 500_00, 30},
		{"gold", "Gold Plan", 1000_00, 90},
	}

	for _, s := range seed {
		p, err := catalog.Upsert(ctx, s.ID, s.Name, s.Amount, s.Days)
		if err != nil {
			log.Fatalf("upsert product %q: %v", s.ID, err)
		}
		fmt.Printf("seeded: %s (%s, amount=%d, validity=%dd)\n", p.ID, p.Name, p.Amount, p.ValidityDays)
	}

	fmt.Println("✅ Seeding complete.")
}
