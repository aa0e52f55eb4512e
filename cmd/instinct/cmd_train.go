package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"instinct/internal/audit"
	"instinct/internal/policy"
	"instinct/internal/store"
	"instinct/internal/transparency"
)

var (
	trainRounds     int
	trainEpisodeLen int
	trainThompson   bool
	trainNoStore    bool
	trainShowEvents bool
	trainAuditPath  string
	trainSeed       int64
)

// trainCmd runs a simulated workload against the engine so a policy can
// be bootstrapped (and inspected) without a live caller.
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the policy on a simulated task workload",
	Long: `Runs a synthetic workload: a handful of task states, each with
strategies of different hidden success rates. Every round the engine
selects a strategy, the simulator rolls an outcome, and the shaped
reward feeds the Q-update. The learned policy is saved on exit.

Example:
  instinct train --rounds 2000 --thompson --events`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().IntVar(&trainRounds, "rounds", 1000, "number of simulated rounds")
	trainCmd.Flags().IntVar(&trainEpisodeLen, "episode-len", 20, "rounds per episode")
	trainCmd.Flags().BoolVar(&trainThompson, "thompson", false, "select actions via Thompson sampling instead of epsilon-greedy")
	trainCmd.Flags().BoolVar(&trainNoStore, "no-store", false, "run in memory only, skip snapshot persistence")
	trainCmd.Flags().BoolVar(&trainShowEvents, "events", false, "print policy events as they occur")
	trainCmd.Flags().StringVar(&trainAuditPath, "audit", "", "append decision audit records to this JSONL file")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 0, "random seed for the simulator (0 = time-based)")
}

// simTask is one state in the synthetic workload. Each strategy has a
// hidden success probability and a latency range the simulator draws from.
type simTask struct {
	state      string
	strategies map[string]simStrategy
}

type simStrategy struct {
	successRate float64
	minLatency  time.Duration
	maxLatency  time.Duration
}

func simWorkload() []simTask {
	return []simTask{
		{
			state: "task:compile",
			strategies: map[string]simStrategy{
				"incremental": {successRate: 0.9, minLatency: 200 * time.Millisecond, maxLatency: 800 * time.Millisecond},
				"clean":       {successRate: 0.95, minLatency: 8 * time.Second, maxLatency: 20 * time.Second},
				"cached":      {successRate: 0.6, minLatency: 50 * time.Millisecond, maxLatency: 300 * time.Millisecond},
			},
		},
		{
			state: "task:test",
			strategies: map[string]simStrategy{
				"changed-only": {successRate: 0.8, minLatency: 500 * time.Millisecond, maxLatency: 3 * time.Second},
				"full-suite":   {successRate: 0.92, minLatency: 12 * time.Second, maxLatency: 30 * time.Second},
				"smoke":        {successRate: 0.5, minLatency: 100 * time.Millisecond, maxLatency: 900 * time.Millisecond},
			},
		},
		{
			state: "task:review",
			strategies: map[string]simStrategy{
				"diff-scan":  {successRate: 0.7, minLatency: 300 * time.Millisecond, maxLatency: 2 * time.Second},
				"deep-audit": {successRate: 0.85, minLatency: 5 * time.Second, maxLatency: 15 * time.Second},
			},
		},
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	seed := trainSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	simRng := rand.New(rand.NewSource(seed))

	opts := []policy.Option{}

	var snapshots *store.SnapshotStore
	if !trainNoStore {
		var err error
		snapshots, err = store.NewSnapshotStore(cfg.Store.DatabasePath, cfg.Store.KeepVersions)
		if err != nil {
			return fmt.Errorf("failed to open snapshot store: %w", err)
		}
		defer snapshots.Close()
		opts = append(opts, policy.WithStore(snapshots))
	}

	if trainAuditPath != "" {
		auditLog, err := audit.Open(trainAuditPath)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer auditLog.Close()
		opts = append(opts, policy.WithAuditSink(auditLog))
	}

	bus := transparency.NewEventBus()
	bus.Enable()
	defer bus.Close()
	opts = append(opts, policy.WithEventSink(bus))

	var watcher sync.WaitGroup
	if trainShowEvents {
		events := bus.Subscribe()
		watcher.Add(1)
		go func() {
			defer watcher.Done()
			dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
			for ev := range events {
				fmt.Println(dim.Render(fmt.Sprintf("  [%06d] %s %v", ev.ID, ev.Name, ev.Payload)))
			}
		}()
	}

	engine, err := policy.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := engine.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	tasks := simWorkload()
	mode := "epsilon-greedy"
	if trainThompson {
		mode = "thompson"
	}
	fmt.Printf("Training: rounds=%d mode=%s seed=%d store=%v\n\n", trainRounds, mode, seed, !trainNoStore)

	var successes int
	for round := 0; round < trainRounds; round++ {
		if ctx.Err() != nil {
			fmt.Println("\nInterrupted, saving policy...")
			break
		}

		task := tasks[simRng.Intn(len(tasks))]
		candidates := make([]string, 0, len(task.strategies))
		for name := range task.strategies {
			candidates = append(candidates, name)
		}

		var action string
		if trainThompson {
			sel, err := engine.SelectActionThompson(task.state, candidates)
			if err != nil {
				return err
			}
			action = sel.Action
		} else {
			sel, err := engine.SelectAction(task.state, candidates)
			if err != nil {
				return err
			}
			action = sel.Action
		}

		strat := task.strategies[action]
		outcome := rollOutcome(simRng, strat)
		reward := engine.CalculateReward(outcome)
		if outcome.Success {
			successes++
		}

		if _, err := engine.Update(ctx, task.state, action, reward, nil); err != nil {
			return err
		}

		if (round+1)%trainEpisodeLen == 0 {
			engine.EndEpisode()
		}
	}
	engine.EndEpisode()

	if err := engine.Shutdown(context.Background()); err != nil {
		return err
	}
	if trainShowEvents {
		bus.Close()
		watcher.Wait()
	}

	fmt.Println()
	renderStats(engine)
	fmt.Printf("\nSimulated success rate: %.1f%%\n", 100*float64(successes)/float64(trainRounds))
	return nil
}

// rollOutcome draws a synthetic task outcome from a strategy profile.
func rollOutcome(rng *rand.Rand, strat simStrategy) policy.Outcome {
	latency := strat.minLatency + time.Duration(rng.Int63n(int64(strat.maxLatency-strat.minLatency)+1))
	success := rng.Float64() < strat.successRate

	o := policy.Outcome{
		Success:  success,
		Duration: latency,
	}
	if !success {
		// A slice of failures are slow-path timeouts.
		o.Timeout = rng.Float64() < 0.3
		o.Partial = !o.Timeout && rng.Float64() < 0.5
	}
	if success {
		q := 0.6 + 0.4*rng.Float64()
		o.Quality = &q
	}
	return o
}
