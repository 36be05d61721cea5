package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/okian/critreview/internal/adapters/http/api"
	"github.com/okian/critreview/internal/adapters/remote"
	"github.com/okian/critreview/internal/adapters/storage"
	service "github.com/okian/critreview/internal/app"
	"github.com/okian/critreview/internal/annotation"
	"github.com/okian/critreview/internal/config"
	"github.com/okian/critreview/internal/domain/request"
	"github.com/okian/critreview/internal/domain/types"
	"github.com/okian/critreview/pkg/logger"
	"gopkg.in/yaml.v3"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 45 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// app bundles what every networked command needs.
type app struct {
	cfg   *config.Config
	log   logger.Logger
	store storage.Storage
	svc   *service.Service
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn(context.Background(), "closing storage failed", logger.Error(err))
	}
}

// setup loads configuration, initializes logging to stderr and wires the
// storage backend, review API client and score service.
func setup(ctx context.Context) (*app, error) {
	if cfgFile != "" {
		if err := os.Setenv(config.EnvConfigFile, cfgFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitWith(logger.Options{Format: cfg.LogFormat, Output: os.Stderr}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := storage.New(cfg.StorageDriver,
		storage.WithSQLitePath(cfg.SQLitePath),
		storage.WithRedisAddr(cfg.RedisAddr),
		storage.WithRedisDB(cfg.RedisDB),
	)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client := remote.New(
		remote.WithBaseURL(cfg.APIBaseURL),
		remote.WithTimeout(cfg.HTTPTimeout()),
		remote.WithRateLimit(cfg.RateLimitRPS),
		remote.WithLogger(log.Named("remote")),
	)
	svc := service.New(store, client,
		service.WithLogger(log.Named("service")),
		service.WithScoreField(cfg.ScoreField),
	)

	log.Debug(ctx, "configured",
		logger.String("storage_driver", cfg.StorageDriver),
		logger.String("api_base_url", cfg.APIBaseURL),
		logger.String("session_id", svc.SessionID()))

	return &app{cfg: cfg, log: log, store: store, svc: svc}, nil
}

func runServe(ctx context.Context, addr string) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr == "" {
		addr = a.cfg.Addr
	}

	mux := http.NewServeMux()
	api.NewServer(a.svc, a.svc).Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}

	a.log.Info(ctx, "server stopped")
	return nil
}

func runScores(ctx context.Context, w io.Writer, id, field, format string) error {
	if !slices.Contains([]string{formatText, formatJSON, formatYAML}, format) {
		return fmt.Errorf("unknown format %q: want text, json or yaml", format)
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var entries []types.ScoreEntry
	if id != "" {
		e, err := a.svc.Entry(ctx, id, field)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	} else if entries, err = a.svc.Entries(ctx, field); err != nil {
		return err
	}

	return printEntries(w, entries, format)
}

// yamlEntry carries the record as a decoded value so YAML output is
// readable instead of a byte list.
type yamlEntry struct {
	types.ScoreEntry `yaml:",inline"`
	Scores           any `yaml:"scores"`
}

func printEntries(w io.Writer, entries []types.ScoreEntry, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case formatYAML:
		out := make([]yamlEntry, 0, len(entries))
		for _, e := range entries {
			ye := yamlEntry{ScoreEntry: e}
			if len(e.Scores) > 0 {
				if err := json.Unmarshal(e.Scores, &ye.Scores); err != nil {
					return err
				}
			}
			out = append(out, ye)
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRAW\tINTENSITY\tCOLOR\tSCORES")
	for _, e := range entries {
		raw, i := "-", "-"
		if e.Raw != nil {
			raw = fmt.Sprintf("%.2f", *e.Raw)
			i = fmt.Sprintf("%.3f", *e.Intensity)
		}
		color := e.Color
		if color == "" {
			color = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, raw, i, color, e.Scores)
	}
	return tw.Flush()
}

func runReviews(ctx context.Context, w io.Writer, courses []string) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reviews, err := a.svc.GetReviews(ctx, courses...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reviews)
}

func runRequest(w io.Writer, kind string, courses []string) error {
	k, err := request.ParseKind(kind)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, request.Serialize(k, courses...))
	return err
}

func runCacheClear(ctx context.Context, w io.Writer) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.Invalidate(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "cleared %q from %s storage\n", service.CacheKey, a.cfg.StorageDriver)
	return err
}

func runVerify(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	rep, verr := annotation.Verify(doc)
	fmt.Fprintf(w, "courses: %d\nprofs: %d\n", rep.Courses, rep.Profs)
	for _, v := range rep.Violations {
		fmt.Fprintf(w, "  %s\n", v)
	}
	return verr
}
