// Package main is a maintenance CLI that compares ledger pairs against
// snapshot rows and optionally queues repair jobs for the gaps.
//
// Usage:
//
//	reconcile -company <uuid> [-repair]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/ledger"
	"apotheca/internal/domain/refreshqueue"
	"apotheca/internal/domain/reports"
	"apotheca/internal/infrastructure/storage/postgres"
	"apotheca/internal/infrastructure/storage/postgres/catalog_repo"
	"apotheca/internal/infrastructure/storage/postgres/ledger_repo"
	"apotheca/internal/infrastructure/storage/postgres/queue_repo"
	"apotheca/internal/infrastructure/storage/postgres/report_repo"
)

func main() {
	companyFlag := flag.String("company", "", "company UUID (required)")
	repairFlag := flag.Bool("repair", false, "enqueue refresh jobs for missing pairs")
	flag.Parse()

	companyID, err := id.Parse(*companyFlag)
	if err != nil || id.IsNil(companyID) {
		fmt.Fprintln(os.Stderr, "reconcile: -company must be a valid UUID")
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      mustEnv("DATABASE_URL"),
		MaxConns: 4,
		MinConns: 1,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	reportRepo := report_repo.New(txManager)
	reportService := reports.NewService(reportRepo, ledger.NewService(ledger_repo.New(txManager)))

	rows, err := reportService.Reconcile(ctx, companyID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BRANCH\tEXPECTED\tACTUAL\tMISSING")
	totalMissing := 0
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", row.BranchID, row.Expected, row.Actual, row.Missing)
		totalMissing += row.Missing
	}
	w.Flush()

	if totalMissing == 0 {
		fmt.Println("snapshots consistent with ledger")
		return
	}

	if !*repairFlag {
		fmt.Printf("%d pairs missing snapshot rows; run with -repair to queue fixes\n", totalMissing)
		return
	}

	queueService := refreshqueue.NewService(queue_repo.New(txManager), txManager, catalog_repo.NewItemRepo(txManager))
	repaired := 0
	for _, row := range rows {
		if row.Missing == 0 {
			continue
		}
		itemIDs, err := reportService.MissingPairs(ctx, companyID, row.BranchID, row.Missing)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list missing pairs for branch %s: %v\n", row.BranchID, err)
			os.Exit(1)
		}
		if err := queueService.EnqueueItems(ctx, companyID, row.BranchID, itemIDs); err != nil {
			fmt.Fprintf(os.Stderr, "enqueue repairs for branch %s: %v\n", row.BranchID, err)
			os.Exit(1)
		}
		repaired += len(itemIDs)
	}
	fmt.Printf("queued %d repair jobs\n", repaired)
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Fprintf(os.Stderr, "required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
