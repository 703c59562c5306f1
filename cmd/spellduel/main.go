package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spellduel/server/internal/collision"
	"github.com/spellduel/server/internal/config"
	"github.com/spellduel/server/internal/core/event"
	coresys "github.com/spellduel/server/internal/core/system"
	"github.com/spellduel/server/internal/data"
	"github.com/spellduel/server/internal/diag"
	"github.com/spellduel/server/internal/handler"
	gonet "github.com/spellduel/server/internal/net"
	"github.com/spellduel/server/internal/net/command"
	"github.com/spellduel/server/internal/persist"
	"github.com/spellduel/server/internal/scripting"
	"github.com/spellduel/server/internal/sim"
	"github.com/spellduel/server/internal/spell"
	"github.com/spellduel/server/internal/system"
	"github.com/spellduel/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var printer = message.NewPrinter(language.English)

func printBanner(serverName string, serverID int, runID string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             spellduel  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       pooled spell projectile server      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id %d, run %s)\033[0m\n\n", serverName, serverID, runID)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := printer.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	defaultCfg := "config/server.toml"
	if p := os.Getenv("SPELLDUEL_CONFIG"); p != "" {
		defaultCfg = p
	}
	fs := flag.NewFlagSet("spellduel", flag.ExitOnError)
	cfgPath := fs.String("config", defaultCfg, "server config file")
	hashPassword := fs.String("hash-password", "", "print the console.password_hash value for a password and exit")
	_ = fs.Parse(os.Args[1:])

	if *hashPassword != "" {
		hash, err := handler.HashPassword(*hashPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Println(hash)
		return nil
	}

	// 1. Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	runID := uuid.NewV4()
	printBanner(cfg.Server.Name, cfg.Server.ID, runID.String())
	log = log.With(zap.String("run", runID.String()))

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// 3. Load data
	printSection("data")
	spells, err := data.LoadSpellTable(cfg.Data.SpellList)
	if err != nil {
		return fmt.Errorf("spell list: %w", err)
	}
	printStat("spell templates", spells.Count())
	tmpl, ok := spells.Get(cfg.Pool.Spell)
	if !ok {
		return fmt.Errorf("pool.spell %q not in %s (have %s)", cfg.Pool.Spell, cfg.Data.SpellList, strings.Join(spells.Names(), ", "))
	}

	arena, err := data.LoadArena(cfg.Data.Arena)
	if err != nil {
		return fmt.Errorf("arena: %w", err)
	}
	printStat("spawn areas", len(arena.Areas))
	printStat("obstacles", len(arena.Obstacles))

	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	if engine.HasFunc("wizard_ai") {
		printOK("wizard_ai script loaded")
	}
	fmt.Println()

	// 4. Simulation state
	printSection("simulation")
	bus := event.NewBus()
	gates := sim.NewGates(cfg.Gates)
	clock := sim.NewClock(gates)

	pool := spell.NewPool(tmpl, spell.Options{
		InitialSize: cfg.Pool.InitialSize,
		MaxSize:     cfg.Pool.MaxSize,
		Expand:      cfg.Pool.Expand,
	}, clock, log)
	pool.SetListener(func(n spell.Notice) { event.FromNotice(bus, n) })
	printStat("spells pre-warmed", pool.FreeLen())

	ws := world.NewState(cfg.Wizard.GroundY)
	world.SpawnAreas(ws, arena.Areas, cfg.Wizard.Radius, rng, log)
	printStat("fire wizards", ws.CountFaction(spell.FactionFire))
	printStat("ice wizards", ws.CountFaction(spell.FactionIce))
	fmt.Println()

	// 5. Optional journal
	var journal *system.JournalSystem
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, cfg.Server.Name+"/"+runID.String()[:8], log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.RunMigrations(ctx, db.Pool, log)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("schema at version %d", version))
		fmt.Println()

		flushTicks := int(cfg.Database.FlushInterval / cfg.Simulation.TickRate)
		journal = system.NewJournalSystem(bus, persist.NewJournalRepo(db, runID), pool, clock,
			flushTicks, cfg.Database.SnapshotEvery, log)
	}

	// 6. Systems
	runner := coresys.NewRunner()
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewProjectileSystem(pool))
	runner.Register(coresys.Every(cfg.Simulation.AIUpdateInterval,
		system.NewWizardAISystem(ws, pool, gates, engine, cfg.Wizard, rng, log)))
	collisionSys := system.NewCollisionSystem(collision.NewFeed(arena.Obstacles, log), ws, pool)
	runner.Register(collisionSys)
	runner.Register(coresys.Every(cfg.Simulation.StatsLogInterval, system.NewPoolStatsSystem(pool, log)))
	if journal != nil {
		runner.Register(journal)
	}
	runner.Register(system.NewCleanupSystem(ws, log))

	// 7. Console
	printSection("ready")
	var (
		consoleSrv *gonet.Server
		consoleSys *system.ConsoleSystem
	)
	if cfg.Console.Enabled {
		consoleSrv, err = gonet.NewServer(cfg.Console.BindAddress, cfg.Console.InQueueSize, cfg.Console.OutQueueSize,
			cfg.Console.PasswordHash != "", log)
		if err != nil {
			return fmt.Errorf("console listen: %w", err)
		}
		go consoleSrv.AcceptLoop()

		deps := &handler.Deps{
			PasswordHash: cfg.Console.PasswordHash,
			Pool:         pool,
			Gates:        gates,
			Clock:        clock,
			World:        ws,
			Bus:          bus,
			Printer:      printer,
			RunID:        runID.String(),
			Log:          log,
		}
		reg := command.NewRegistry(log)
		handler.RegisterAll(reg, deps)
		consoleSys = system.NewConsoleSystem(consoleSrv.NewSessions(), reg, gonet.NewSessionStore(), deps,
			cfg.Console.MaxLinesPerTick, fmt.Sprintf("%s console, run %s", cfg.Server.Name, runID), log)
		runner.Register(consoleSys)
		printReady(fmt.Sprintf("console on %s", consoleSrv.Addr()))
	}

	// 8. Diagnostics
	var (
		hub     *diag.Hub
		diagSrv *diag.Server
	)
	if cfg.Diag.Enabled {
		hub = diag.NewHub(log)
		diagSrv, err = diag.NewServer(cfg.Diag.BindAddress, hub, log)
		if err != nil {
			return fmt.Errorf("diag listen: %w", err)
		}
		go diagSrv.Serve()
		runner.Register(system.NewDiagSystem(hub, pool, gates, clock, ws, collisionSys, runID.String(), cfg.Diag.PublishEvery))
		printReady(fmt.Sprintf("diagnostics on http://%s", diagSrv.Addr()))
	}

	// 9. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()

	printReady(fmt.Sprintf("game loop running (tick %s, %d systems)", cfg.Simulation.TickRate, runner.Len()))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(clock.Advance(cfg.Simulation.TickRate))
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))

			pool.ReleaseAll()
			pool.Shutdown()
			runner.TickPhase(coresys.PhasePreUpdate, 0)
			if journal != nil {
				if err := journal.Flush(); err != nil {
					log.Error("final journal flush failed", zap.Error(err), zap.Int("rows", journal.Pending()))
				}
			}

			if consoleSys != nil {
				consoleSys.Close()
				consoleSrv.Shutdown()
			}
			if diagSrv != nil {
				hub.Close()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := diagSrv.Shutdown(ctx); err != nil {
					log.Warn("diag shutdown", zap.Error(err))
				}
				cancel()
			}
			log.Info("server stopped", zap.Uint64("frames", clock.Frames()))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
