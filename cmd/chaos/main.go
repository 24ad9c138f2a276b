// cmd/chaos/main.go
package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"ledgerlib/internal/catalog"
	"ledgerlib/internal/chaos"
	"ledgerlib/internal/host"
	"ledgerlib/internal/journal"
	"ledgerlib/internal/storage"
	"ledgerlib/internal/storage/leveldb"
	"ledgerlib/internal/storage/memory"
	"ledgerlib/internal/telemetry"
)

func main() {
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "catalog-chaos", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	var backing storage.Port = memory.NewStore()
	if path := os.Getenv("LEVELDB_PATH"); path != "" {
		store, err := leveldb.Open(path, leveldb.DefaultPrefix)
		if err != nil {
			log.Fatalf("Failed to open leveldb: %v", err)
		}
		defer store.Close()
		backing = store
	}

	seed := time.Now().UnixNano()
	if s := os.Getenv("CHAOS_SEED"); s != "" {
		if seed, err = strconv.ParseInt(s, 10, 64); err != nil {
			log.Fatalf("Invalid CHAOS_SEED: %v", err)
		}
	}
	log.Printf("Fault seed %d", seed)

	port := chaos.NewFaultyPort(backing, seed)
	env := host.New(port, host.WithJournal(journal.NewMemoryJournal()))
	svc := catalog.NewService(env)

	engine := chaos.NewChaosEngine()
	gameDay := chaos.GameDay{
		Name:      "Catalog Chaos Game Day",
		Date:      time.Now(),
		Scenarios: chaos.CatalogExperiments(svc, port),
	}

	held, err := engine.ExecuteGameDay(ctx, gameDay)
	if err != nil {
		log.Fatalf("Chaos Game Day failed: %v", err)
	}
	if !held {
		log.Fatalf("Chaos Game Day finished with violated hypotheses")
	}
	log.Printf("All hypotheses held")
}
