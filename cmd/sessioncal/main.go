package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"sessioncal/internal/capture"
	"sessioncal/internal/config"
	"sessioncal/internal/ics"
	appLog "sessioncal/internal/log"
	"sessioncal/internal/store"
	"sessioncal/internal/tui"
	"sessioncal/internal/web"
)

const version = "0.3.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	tui        bool
	importPath string
	exportPath string
	snapshot   string
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetFormat(conf.LogFormat)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		appLog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		appLog.Error("failed to set GOMAXPROCS", err)
	}

	appLog.Info("sessioncal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"db_path", conf.DBPath,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"drag_drop", conf.Calendar.EnableDragDrop,
		"resize", conf.Calendar.EnableResize,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("sessioncal failed", err)
		os.Exit(1)
	}
	appLog.Info("sessioncal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	db, err := store.Open(conf.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.NewSQLiteStore(db)

	// One-shot actions exit when done.
	switch {
	case flags.importPath != "":
		return importFile(ctx, st, flags.importPath)
	case flags.exportPath != "":
		return exportFile(ctx, st, flags.exportPath)
	case flags.snapshot != "":
		return snapshot(ctx, conf, st, flags.snapshot)
	}

	fetcher := ics.NewFetcher(filepath.Join(filepath.Dir(conf.DBPath), "ics-cache"), nil)
	sources := ics.SourcesFromConfig(conf.ICS)

	if flags.tui {
		logPath := filepath.Join(filepath.Dir(conf.DBPath), "sessioncal.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		appLog.SetOutput(f)

		go runRefresher(ctx, ics.NewRefresher(fetcher, st, sources, nil), conf.RefreshCron)
		return tui.Run(ctx, tui.New(ctx, st, conf, nil))
	}

	server := web.NewServer(conf, st)
	go runRefresher(ctx, ics.NewRefresher(fetcher, st, sources, server.Invalidate), conf.RefreshCron)
	return server.Serve(ctx)
}

func runRefresher(ctx context.Context, r *ics.Refresher, spec string) {
	if err := r.Run(ctx, spec); err != nil {
		appLog.Error("ics refresher stopped", err)
	}
}

// importFile loads one .ics file as its own source, so re-importing the
// same file replaces what it brought in last time.
func importFile(ctx context.Context, st *store.SQLiteStore, path string) error {
	body, err := ics.ReadFile(path)
	if err != nil {
		return err
	}
	base := filepath.Base(path)
	src := ics.Source{
		ID:   "import:" + base,
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		URL:  path,
	}
	events, err := ics.ParseICS(src, body)
	if err != nil {
		return err
	}
	n, err := st.ReplaceSource(ctx, src.ID, events)
	if err != nil {
		return err
	}
	appLog.Info("ics import done", "path", path, "parsed", len(events), "stored", n)
	return nil
}

func exportFile(ctx context.Context, st *store.SQLiteStore, path string) error {
	events, err := st.List(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	n, err := ics.Export(f, events, time.Now())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	appLog.Info("ics export done", "path", path, "sessions", n)
	return nil
}

// snapshot serves the calendar just long enough for headless Chromium to
// render /calendar into a PNG.
func snapshot(ctx context.Context, conf *config.Config, st *store.SQLiteStore, out string) error {
	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	server := web.NewServer(conf, st, web.WithPreview(out))
	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(srvCtx) }()

	base := "http://" + conf.Listen
	if err := waitHealthy(ctx, base+"/health", errCh); err != nil {
		return err
	}

	opts := capture.Options{BaseURL: base, OutputPath: out}
	if conf.BasicAuth != nil {
		opts.Username, opts.Password = conf.BasicAuth.Username, conf.BasicAuth.Password
	}
	if err := capture.CalendarPNG(ctx, opts); err != nil {
		return err
	}
	stop()
	return <-errCh
}

func waitHealthy(ctx context.Context, url string, errCh <-chan error) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-errCh:
			if err == nil {
				err = errors.New("server exited early")
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server at %s did not become healthy", url)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/sessioncal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.tui, "tui", false, "Run the terminal calendar instead of the web server")
	flag.StringVar(&cfg.importPath, "import", "", "Import an .ics file into the store and exit")
	flag.StringVar(&cfg.exportPath, "export", "", "Export all sessions to an .ics file and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Render /calendar to this PNG with headless Chromium and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
