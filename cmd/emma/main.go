// Package main is the EMMA CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/emma/internal/cli"
	"github.com/hyperjump/emma/internal/conceptindex"
	"github.com/hyperjump/emma/internal/config"
	"github.com/hyperjump/emma/internal/controller"
	"github.com/hyperjump/emma/internal/export"
	"github.com/hyperjump/emma/internal/format"
	"github.com/hyperjump/emma/internal/models"
	"github.com/hyperjump/emma/internal/server"
	"github.com/hyperjump/emma/internal/storage"
	"github.com/hyperjump/emma/internal/watcher"
	"github.com/hyperjump/emma/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/emma/config.yaml"

// unset marks -bg/-fg/-row flags that were not given.
const unset = -1

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "server":
		runServer(args)
	case "terms":
		err = runTerms(args, os.Stdout)
	case "abstracts":
		err = runAbstracts(args, os.Stdout)
	case "queries":
		err = runQueries(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("emma version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage(os.Stdout)
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, cache fills, file events)")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	cfg.Debug = debugMode
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv, err := server.NewServer(components.Storage, cfg, logger,
		server.WithConceptIndex(components.Concepts),
		server.WithMetrics(components.Metrics),
	)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled && cfg.Database.Driver == "sqlite3" {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(cfg.Database.Path, func(path string, op fsnotify.Op) {
			srv.DatabaseChanged(path, op)
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Warn("database watcher not started", zap.Error(err))
		} else {
			defer watchSvc.Stop()
		}
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument, so "emma abstracts C0004096 -fg 2" would otherwise
// leave -fg unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// queryFlags are shared by the commands that read one ranked table.
type queryFlags struct {
	configPath *string
	bg         *int
	fg         *int
	output     *string
}

func addQueryFlags(fs *flag.FlagSet) queryFlags {
	return queryFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		bg:         fs.Int("bg", unset, "background query id (default from config)"),
		fg:         fs.Int("fg", unset, "foreground query id (default from config)"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
}

// resolve fills unset query ids from the dashboard defaults.
func (q queryFlags) resolve(cfg *config.Config) (bg, fg int) {
	bg, fg = *q.bg, *q.fg
	if bg == unset {
		bg = cfg.Dashboard.DefaultBackground
	}
	if fg == unset {
		fg = cfg.Dashboard.DefaultForeground
	}
	return bg, fg
}

func openStorage(ctx context.Context, configPath string) (*config.Config, *storage.SQLStorage, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewSQLStorage(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func runTerms(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("terms", flag.ContinueOnError)
	fs.SetOutput(stdout)
	qf := addQueryFlags(fs)
	limit := fs.Int("limit", 25, "number of rows to print (0 = all)")
	xlsxPath := fs.String("xlsx", "", "also write the full table to this spreadsheet")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	outFormat, err := cli.ParseOutputFormat(*qf.output)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cfg, store, err := openStorage(ctx, *qf.configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	bg, fg := qf.resolve(cfg)
	terms, err := store.RankedTerms(ctx, bg, fg)
	if err != nil {
		return err
	}
	if *xlsxPath != "" {
		if err := writeTermsWorkbook(store, *xlsxPath, bg, fg, terms); err != nil {
			return err
		}
	}
	return cli.WriteTerms(stdout, terms, *limit, outFormat)
}

func writeTermsWorkbook(store storage.Storage, path string, bg, fg int, terms []models.RankedTerm) error {
	background, err := store.QueryRow(bg)
	if err != nil {
		return err
	}
	foreground, err := store.QueryRow(fg)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteTerms(f, export.Meta{Background: *background, Foreground: *foreground}, terms); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func runAbstracts(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("abstracts", flag.ContinueOnError)
	fs.SetOutput(stdout)
	qf := addQueryFlags(fs)
	conceptID := fs.String("concept", "", "concept id (CUI); may also be given as an argument")
	row := fs.Int("row", unset, "row of the ranked table, instead of -concept")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	if *conceptID == "" && fs.NArg() > 0 {
		*conceptID = strings.TrimSpace(fs.Arg(0))
	}
	if (*conceptID == "") == (*row == unset) {
		return errors.New("give exactly one of -concept or -row")
	}
	outFormat, err := cli.ParseOutputFormat(*qf.output)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cfg, store, err := openStorage(ctx, *qf.configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	bg, fg := qf.resolve(cfg)
	selected := *row
	if *conceptID != "" {
		found, ok, err := format.NewFormatter(store).FindRowMatching(ctx, *conceptID, bg, fg)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("concept %s is not ranked for background %d and foreground %d", *conceptID, bg, fg)
		}
		selected = found
	}

	state := controller.Apply(controller.State{}, controller.BackgroundChanged{Query: controller.Int(bg)})
	state = controller.Apply(state, controller.ForegroundChanged{Query: controller.Int(fg)})
	state = controller.Apply(state, controller.RowSelected{Row: controller.Int(selected)})
	view, err := controller.Derive(ctx, store, state)
	if err != nil {
		return err
	}
	return cli.WriteAbstracts(stdout, view.SelectionInfo, view.Abstracts, outFormat)
}

func runQueries(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("queries", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	outFormat, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	_, store, err := openStorage(context.Background(), *configPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return cli.WriteQueries(stdout, store.AllQueries(), outFormat)
}

// Components holds the long-lived dependencies of the server.
type Components struct {
	Storage  *storage.SQLStorage
	Concepts *conceptindex.Index
	Metrics  *server.Metrics
}

func (c *Components) Close() {
	if c.Concepts != nil {
		_ = c.Concepts.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	metrics := server.NewMetrics()
	storeOpts := []storage.Option{storage.WithCacheObserver(metrics)}
	if cfg.Debug {
		storeOpts = append(storeOpts, storage.WithLogger(logger))
	}
	store, err := storage.NewSQLStorage(ctx, cfg.Database, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	concepts, err := conceptindex.New(store.Concepts())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize concept index: %w", err)
	}
	logger.Info("concept index built", zap.Int("concepts", concepts.Size()))

	return &Components{
		Storage:  store,
		Concepts: concepts,
		Metrics:  metrics,
	}, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `emma - Explore MetaMap Annotations

Usage:
  emma server [flags]               Start the dashboard and JSON API
  emma terms [flags]                Print the ranked concepts for a query pair
  emma abstracts [flags] [CUI]      Print the abstracts mentioning a concept
  emma queries [flags]              List the saved queries
  emma version                      Show version
  emma help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/emma/config.yaml)
  --debug            Enable debug logging

Terms Flags:
  --config string    Config file path
  --bg int           Background query id (default from config)
  --fg int           Foreground query id (default from config)
  --limit int        Number of rows to print, 0 for all (default: 25)
  --xlsx string      Also write the full table to a spreadsheet
  --output string    Output format: text or json (default: text)

Abstracts Flags:
  --config, --bg, --fg, --output as for terms
  --concept string   Concept id (CUI); may also be given as an argument
  --row int          Row of the ranked table, instead of --concept

Concept mentions are marked [[like this]] in text output.

Examples:
  emma server
  emma terms --fg 2 --limit 10
  emma terms --fg 1 --xlsx vaping.xlsx
  emma abstracts --fg 1 C0004096
  emma abstracts --fg 1 --row 0 --output json
  emma queries`)
}
