// Package main provides a standalone load simulator for observing expansion
// behavior outside the test suite.
//
// The simulator seeds an account pool, sustains concurrent apply traffic
// against a manager with automatic expansion enabled, and prints the topology
// and utilization as the table grows. On exit it verifies that the final
// ledger totals match the traffic it generated, so a run doubles as an
// end-to-end conservation check.
//
// Example:
//
//	go run ./test/cmd/loadsim -accounts 50000 -writers 16 -duration 60s
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/arloliu/sharder"
	"github.com/arloliu/sharder/logging"
)

func main() {
	var (
		initialShards = flag.Uint64("shards", 4, "initial shard count")
		maxShards     = flag.Uint64("max-shards", 256, "maximum shard count")
		capacity      = flag.Uint64("capacity", 5000, "per-shard capacity per epoch")
		threshold     = flag.Float64("threshold", 0.80, "expansion load threshold")
		accounts      = flag.Uint64("accounts", 10000, "account pool size")
		writers       = flag.Int("writers", 8, "concurrent writer goroutines")
		duration      = flag.Duration("duration", 30*time.Second, "how long to sustain load")
		verbose       = flag.Bool("verbose", false, "log at debug level")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := logging.NewSlog(slog.New(handler))

	cfg := sharder.DefaultConfig()
	cfg.InitialShardCount = *initialShards
	cfg.MaxShardCount = *maxShards
	cfg.CapacityPerShard = *capacity
	cfg.ExpansionLoadThreshold = *threshold
	cfg.MonitorInterval = 100 * time.Millisecond
	cfg.ApplyRetryAttempts = 200
	cfg.ApplyRetryInterval = 1 * time.Millisecond

	mgr, err := sharder.NewManager(&cfg, sharder.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating manager: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	fmt.Printf("seeding %d accounts across %d shards...\n", *accounts, mgr.CurrentShardCount())
	for seq := range *accounts {
		if err := mgr.Seed(ctx, simAddr(seq), sharder.NewAccount(0)); err != nil {
			fmt.Fprintf(os.Stderr, "seeding account %d: %v\n", seq, err)
			os.Exit(1)
		}
	}

	if err := mgr.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "starting manager: %v\n", err)
		os.Exit(1)
	}

	// Stop on the duration expiring or on Ctrl-C, whichever comes first
	loadCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\ninterrupted, draining...")
		cancel()
	}()

	var applied atomic.Uint64
	var wg sync.WaitGroup
	for w := range *writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWriter(loadCtx, mgr, uint64(w), uint64(*writers), *accounts, &applied)
		}()
	}

	printProgress(loadCtx, mgr, &applied)
	wg.Wait()

	// Let an in-flight migration settle before the final accounting
	if err := <-mgr.WaitState(sharder.StateIdle, 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "waiting for idle: %v\n", err)
	}
	if err := mgr.Stop(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "stopping manager: %v\n", err)
	}

	printSummary(mgr, applied.Load(), *accounts)
}

// simAddr builds the address for one simulated account.
func simAddr(seq uint64) sharder.Address {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq+1)

	return sharder.BytesToAddress(b[:])
}

// runWriter applies balance increments until the context ends, walking the
// pool with a stride so writers cover it without coordinating.
func runWriter(ctx context.Context, mgr *sharder.Manager, writer, stride, accounts uint64, applied *atomic.Uint64) {
	one := big.NewInt(1)
	seq := writer

	for ctx.Err() == nil {
		addr := simAddr(seq % accounts)
		seq += stride

		_, err := mgr.Apply(ctx, addr, func(current sharder.Account) (sharder.Account, error) {
			current.Balance.Add(current.Balance, one)
			current.Nonce++
			return current, nil
		})
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "writer %d: %v\n", writer, err)
		}
		if err == nil {
			applied.Add(1)
		}
	}
}

// printProgress reports the topology once a second until the load ends.
func printProgress(ctx context.Context, mgr *sharder.Manager, applied *atomic.Uint64) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := mgr.Stats()
			fmt.Printf("epoch %-3d shards %-4d healthy %-4d max-util %5.2f applies %d\n",
				stats.Epoch, stats.ShardCount, stats.HealthyShards,
				stats.MaxUtilization, applied.Load())
		}
	}
}

// printSummary prints the final topology, per-shard utilization, and the
// conservation check.
func printSummary(mgr *sharder.Manager, applied, accounts uint64) {
	stats := mgr.Stats()

	fmt.Println("\n=== Simulation Summary ===")
	fmt.Printf("Final topology: epoch %d, %d shards (%d healthy)\n",
		stats.Epoch, stats.ShardCount, stats.HealthyShards)
	fmt.Printf("Accounts: %d, Applies committed: %d\n", stats.TotalAccounts, applied)
	fmt.Printf("Total balance: %s\n", stats.TotalBalance)

	report := mgr.UtilizationReport()
	var maxActivity uint64
	for _, shard := range report {
		if shard.Activity > maxActivity {
			maxActivity = shard.Activity
		}
	}
	fmt.Printf("Hottest shard this epoch: %d ops\n", maxActivity)

	want := new(big.Int).SetUint64(applied)
	if stats.TotalAccounts != accounts || stats.TotalBalance.Cmp(want) != 0 {
		fmt.Printf("CONSERVATION FAILED: want %d accounts with total %s, got %d with %s\n",
			accounts, want, stats.TotalAccounts, stats.TotalBalance)
		os.Exit(1)
	}
	fmt.Println("Conservation check passed: every committed apply is accounted for.")
}
