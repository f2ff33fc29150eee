// ledger-replay folds the append-only audit ledger into the risk
// summary the autobet service would restore on startup. Useful for
// checking exposure and realized PnL without touching the live service.
//
// Usage:
//
//	go run ./cmd/tools/ledger-replay -config configs/production.yaml
//	go run ./cmd/tools/ledger-replay -sqlite betfuse.db -since 24h
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/nvoloshin/betfuse/internal/ledger"
	pkgconfig "github.com/nvoloshin/betfuse/internal/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to service config; its ledger section is used")
	sqlitePath := flag.String("sqlite", "", "Open this sqlite ledger directly, bypassing the config")
	since := flag.Duration("since", 0, "Only replay records from the last duration (0 = full history)")
	flag.Parse()

	ledgerCfg, err := resolveLedgerConfig(*configPath, *sqlitePath)
	if err != nil {
		log.Fatalf("Failed to resolve ledger config: %v", err)
	}

	led, err := ledger.Open(ledgerCfg)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer led.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var records []ledger.Record
	if *since > 0 {
		records, err = led.RecordsSince(ctx, time.Now().UTC().Add(-*since))
	} else {
		records, err = led.All(ctx)
	}
	if err != nil {
		log.Fatalf("Failed to read ledger: %v", err)
	}

	printSummary(records, ledger.Replay(records))
}

func resolveLedgerConfig(configPath, sqlitePath string) (pkgconfig.LedgerConfig, error) {
	if sqlitePath != "" {
		return pkgconfig.LedgerConfig{Backend: "sqlite", SQLitePath: sqlitePath}, nil
	}
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		return pkgconfig.LedgerConfig{}, fmt.Errorf("either -config or -sqlite is required")
	}
	cfg, err := pkgconfig.Load(configPath)
	if err != nil {
		return pkgconfig.LedgerConfig{}, err
	}
	return cfg.Ledger, nil
}

func printSummary(records []ledger.Record, s ledger.ReplaySummary) {
	fmt.Printf("Records replayed:   %d\n", len(records))
	fmt.Printf("Submitted:          %d\n", s.Submitted)
	fmt.Printf("Confirmed:          %d\n", s.Confirmed)
	fmt.Printf("Rejected:           %d\n", s.Rejected)
	fmt.Printf("Settled won:        %d\n", s.SettledWon)
	fmt.Printf("Settled lost:       %d\n", s.SettledLost)
	fmt.Printf("Settled void:       %d\n", s.SettledVoid)
	fmt.Printf("Open exposure:      %s\n", s.OpenExposure().StringFixed(2))
	fmt.Printf("Realized PnL:       %s\n", s.RealizedPnL.StringFixed(2))
	fmt.Printf("Loss streak:        %d\n", s.LossStreak)
	if !s.LastLossAt.IsZero() {
		fmt.Printf("Last loss at:       %s\n", s.LastLossAt.Format(time.RFC3339))
	}

	if len(s.SportExposure) > 0 {
		fmt.Println("\nOpen exposure by sport:")
		sports := make([]string, 0, len(s.SportExposure))
		for sport := range s.SportExposure {
			sports = append(sports, sport)
		}
		sort.Strings(sports)
		for _, sport := range sports {
			fmt.Printf("  %-16s %s\n", sport, s.SportExposure[sport].StringFixed(2))
		}
	}

	if len(s.OpenConditions) > 0 {
		fmt.Println("\nOpen conditions:")
		conditions := make([]string, 0, len(s.OpenConditions))
		for cond := range s.OpenConditions {
			conditions = append(conditions, cond)
		}
		sort.Strings(conditions)
		for _, cond := range conditions {
			fmt.Printf("  %s  decision=%s  stake=%s\n",
				cond, s.OpenConditions[cond], s.OpenStakes[s.OpenConditions[cond]].StringFixed(2))
		}
	}
}
