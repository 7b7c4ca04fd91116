// Command calvinrt runs the dataflow runtime scheduler standalone, wiring
// together the reference in-memory actor manager, the event monitor, one
// of the scheduling strategies, and the debug/metrics HTTP surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/KimMachineGun/automemlimit/memlimit"

	"github.com/nodeflow/calvinrt/internal/actor"
	"github.com/nodeflow/calvinrt/internal/async"
	"github.com/nodeflow/calvinrt/internal/config"
	"github.com/nodeflow/calvinrt/internal/debugapi"
	"github.com/nodeflow/calvinrt/internal/monitor"
	"github.com/nodeflow/calvinrt/internal/node"
	"github.com/nodeflow/calvinrt/internal/rtlog"
	"github.com/nodeflow/calvinrt/internal/scheduler"
	"github.com/nodeflow/calvinrt/internal/store"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var log zerolog.Logger

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "calvinrt",
	Short: "calvinrt runs the dataflow actor platform's runtime scheduler",
	Long: `calvinrt is the standalone runtime scheduler for a dataflow / actor
platform: it fires actors, pumps endpoint communication through the event
monitor, and drives periodic replication and migration maintenance.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"calvinrt version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(strategyCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log = rtlog.New(rtlog.Config{Level: level, JSONOutput: jsonOut})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("calvinrt %s (%s, built %s)\n", Version, Commit, BuildTime)
		return nil
	},
}

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "List the available scheduling strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, s := range []scheduler.Strategy{scheduler.Simple, scheduler.RoundRobin, scheduler.NonPreemptive} {
			fmt.Println(s.String())
		}
		fmt.Println("baseline (legacy, use --strategy=baseline with run)")
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := rootCmd.PersistentFlags().GetString("config")
		strategyOverride, _ := cmd.Flags().GetString("strategy")
		traceMonitor, _ := cmd.Flags().GetBool("trace-monitor")
		return runScheduler(configPath, strategyOverride, traceMonitor)
	},
}

func init() {
	runCmd.Flags().String("strategy", "", "Override the configured strategy (simple, round_robin, non_preemptive, baseline)")
	runCmd.Flags().Bool("trace-monitor", false, "Log every monitor operation at debug level")
}

// runScheduler wires every internal package into a running scheduler and
// blocks until SIGINT/SIGTERM.
func runScheduler(configPath, strategyOverride string, traceMonitor bool) error {
	// automaxprocs/automemlimit tune GOMAXPROCS and GOMEMLIMIT to the
	// container's actual cgroup quota before anything else starts.
	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Warn().Err(err).Msg("automaxprocs: failed to set GOMAXPROCS")
	}
	if _, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err != nil {
		log.Warn().Err(err).Msg("automemlimit: failed to set GOMEMLIMIT")
	}

	log = rtlog.WithNode(log, hostname())

	rt, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strategyOverride != "" {
		tag, ok := scheduler.ParseStrategy(strategyOverride)
		if !ok && strategyOverride != "baseline" {
			return fmt.Errorf("unknown strategy %q", strategyOverride)
		}
		rt.Strategy = tag
	}

	dataDir := rt.DataDir
	if dataDir == "" {
		dataDir = "./calvinrt-data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	catalog, err := store.OpenLocalCatalog(dataDir)
	if err != nil {
		return fmt.Errorf("open local catalog: %w", err)
	}
	defer catalog.Close()

	var migrationStore actor.MigrationStore
	if rt.PostgresDSN != "" {
		pg, err := store.NewPostgresActorStore(context.Background(), rt.PostgresDSN)
		if err != nil {
			log.Warn().Err(err).Msg("postgres actor store unavailable, migrations will not be durably recorded")
		} else {
			defer pg.Close()
			migrationStore = pg
		}
	}

	actorMgr := actor.NewInMemoryManager(migrationStore)
	for _, rec := range mustLoadRoster(catalog, log) {
		a := actor.NewRefActor(rec.ID, rec.Type, nil)
		if rec.Denied {
			a.Deny()
		}
		actorMgr.Add(a)
	}

	var mon monitor.Monitor = monitor.New(rtlog.WithComponent(log, "monitor"))
	if rt.TraceMonitor || traceMonitor {
		mon = monitor.Trace(mon, log)
	}

	var rm node.ReplicationManager = node.NoopReplicationManager{}
	if rt.RedisAddr != "" {
		coord, err := store.NewRedisCoordinator(rt.RedisAddr, "", 0)
		if err != nil {
			log.Warn().Err(err).Msg("redis coordinator unavailable, replication runs in single-node no-op mode")
		} else {
			defer coord.Close()
			rm = node.NewLeaseReplicationManager(coord, hostname(), 10*time.Second, rtlog.WithComponent(log, "replication"))
		}
	}
	nd := node.New(hostname(), rm)

	driver := async.NewLoopDriver()

	var sched interface {
		Run()
		Stop()
	}
	var queueSched *scheduler.Scheduler
	if strategyOverride == "baseline" {
		sched = scheduler.NewBaseline(driver, mon, actorMgr, nd, rt.Scheduler, log)
	} else {
		queueSched = scheduler.New(driver, mon, actorMgr, nd, rt.Scheduler, rt.Strategy, log)
		sched = queueSched
	}

	var debugSrv *http.Server
	if rt.DebugAddr != "" {
		hub := debugapi.NewHub(rtlog.WithComponent(log, "debugapi"))
		if queueSched != nil {
			queueSched.SetEventSink(hubSink{hub: hub})
		}
		snapshot := func() debugapi.Snapshot {
			s := debugapi.Snapshot{
				Time:      time.Now(),
				Strategy:  rt.Strategy.String(),
				Endpoints: len(mon.Endpoints()),
			}
			if queueSched != nil {
				s.QueueDepth = queueSched.QueueLen()
			}
			return s
		}
		debugSrv = debugapi.NewServer(rt.DebugAddr, hub, snapshot, rtlog.WithComponent(log, "debugapi"))
		go func() {
			if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("debug server error")
			}
		}()
		log.Info().Str("addr", rt.DebugAddr).Msg("debug/metrics server listening")
	}

	go sched.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	sched.Stop()
	if debugSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		debugSrv.Shutdown(ctx)
	}
	return nil
}

// hubSink forwards scheduler decisions to the debug stream's WebSocket
// hub.
type hubSink struct {
	hub *debugapi.Hub
}

func (s hubSink) SchedulerEvent(kind, actorID, endpointID string) {
	s.hub.Publish(debugapi.Event{
		Time:     time.Now(),
		Kind:     kind,
		ActorID:  actorID,
		Endpoint: endpointID,
	})
}

func mustLoadRoster(catalog *store.LocalCatalog, log zerolog.Logger) []store.ActorRecord {
	recs, err := catalog.List()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load local actor roster, starting empty")
		return nil
	}
	return recs
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "calvinrt-node"
	}
	return h
}
