// Package engine drives the scan pipeline: collect candidate files,
// decode them, apply triage rules, write the report, and feed the
// configured sinks (case database, history ledger, Slack, audit log).
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kmorell/pfscan/pkg/casedb"
	internalconfig "github.com/kmorell/pfscan/pkg/config"
	"github.com/kmorell/pfscan/pkg/engine/history"
	"github.com/kmorell/pfscan/pkg/engine/notifier"
	"github.com/kmorell/pfscan/pkg/engine/triage"
	"github.com/kmorell/pfscan/pkg/storage"
	"github.com/kmorell/pfscan/pkg/telemetry"
	"github.com/kmorell/pfscan/pkg/version"
)

// ErrInvalidPath indicates the input directory does not exist or is not
// a directory.
var ErrInvalidPath = errors.New("invalid input path")

// ErrPartialResult indicates the scan completed but some files were
// skipped. Only surfaced in strict mode; the report is still written.
var ErrPartialResult = errors.New("scan completed with partial results")

// Config carries everything one scan needs.
type Config struct {
	InputDir   string
	OutputDir  string
	OutputName string // report file name inside OutputDir
	Recursive  bool
	Extensions []string // empty means every regular file is attempted
	Workers    int      // decode concurrency; <=1 is sequential
	WriteJSON  bool     // also write the report as JSON

	RulesFile  string // triage rules YAML, empty disables triage
	CaseDBPath string // sqlite case file, empty disables the sink
	LedgerURL  string // ledger path or "s3://bucket/key"; empty uses the default
	NoLedger   bool
	Webhook    string // Slack incoming-webhook URL

	// StrictMode forces a non-zero exit code on partial failures.
	StrictMode bool

	Verbose  bool
	JsonLogs bool

	// Telemetry.
	OtelEndpoint  string // "http://localhost:4318" or via env
	SkipTelemetry bool   // set true when embedding in an app that already has OTEL

	// Injected dependencies.
	Logger *slog.Logger
}

// Engine runs scans and owns the sinks they feed.
type Engine struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	// Replaceable sinks, exported for embedding callers.
	History  *history.Client
	Notifier *notifier.SlackClient

	config  Config
	decoder Decoder

	rules   *triage.Engine
	caseDB  *casedb.DB
	metrics *telemetry.Metrics

	store       storage.BlobStore
	storePrefix string

	shutdownTelemetry func(context.Context) error
}

// Option adjusts an Engine during New.
type Option func(*Engine)

// New builds an Engine and opens the configured sinks.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		Tracer:  otel.Tracer("pfscan/engine"),
		decoder: NewSCCADecoder(),
	}
	e.config.OutputName = internalconfig.DefaultOutputName
	e.config.Workers = internalconfig.DefaultScanConfig().Workers

	for _, opt := range opts {
		opt(e)
	}

	if e.Logger == nil {
		e.Logger = newLogger(e.config)
	}
	slog.SetDefault(e.Logger)

	if !e.config.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, e.config.OtelEndpoint)
		if err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		} else {
			e.shutdownTelemetry = shutdown
		}
	}

	metrics, err := telemetry.NewMetrics("pfscan/engine")
	if err != nil {
		e.Logger.Warn("Metrics unavailable", "error", err)
	} else {
		e.metrics = metrics
	}

	if e.config.RulesFile != "" && e.rules == nil {
		rules, err := triage.Load(e.Logger, e.config.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load triage rules: %w", err)
		}
		e.rules = rules
	}

	if e.History == nil && !e.config.NoLedger {
		backend, err := resolveLedgerBackend(ctx, e.config.LedgerURL)
		if err != nil {
			return nil, err
		}
		e.History = history.NewClient(backend)
	}

	if e.config.CaseDBPath != "" && e.caseDB == nil {
		db, err := casedb.Open(e.config.CaseDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open case database: %w", err)
		}
		e.caseDB = db
	}

	if e.Notifier == nil {
		e.Notifier = notifier.NewSlackClient(e.config.Webhook)
	}

	return e, nil
}

// Close flushes telemetry and releases the case database.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if e.caseDB != nil {
		if err := e.caseDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.shutdownTelemetry != nil {
		if err := e.shutdownTelemetry(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithConfig applies a full configuration in one go.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.OutputName == "" {
			cfg.OutputName = internalconfig.DefaultOutputName
		}
		if cfg.Workers < 1 {
			cfg.Workers = 1
		}
		e.config = cfg
		if cfg.Logger != nil {
			e.Logger = cfg.Logger
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.Logger = l
	}
}

// WithDecoder swaps the artifact decoder.
func WithDecoder(d Decoder) Option {
	return func(e *Engine) {
		if d != nil {
			e.decoder = d
		}
	}
}

// WithHistory sets the ledger client, overriding the configured backend.
func WithHistory(c *history.Client) Option {
	return func(e *Engine) {
		e.History = c
	}
}

// WithStore presets the archive destination.
func WithStore(s storage.BlobStore, prefix string) Option {
	return func(e *Engine) {
		e.store = s
		e.storePrefix = prefix
	}
}

func resolveLedgerBackend(ctx context.Context, ledgerURL string) (history.Backend, error) {
	switch {
	case strings.HasPrefix(ledgerURL, "s3://"):
		backend, err := history.NewS3Backend(ctx, ledgerURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open s3 ledger: %w", err)
		}
		return backend, nil
	case ledgerURL != "":
		return history.NewLocalBackend(ledgerURL), nil
	default:
		// Empty path resolves to ~/.pfscan/ledger.jsonl lazily.
		return history.NewLocalBackend(""), nil
	}
}

func newLogger(cfg Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSensitiveData,
	}
	if cfg.JsonLogs {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"webhook": true, "password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "credential": true,
	}

	if sensitiveKeys[a.Key] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}

// recoverPanic records a pipeline panic on its own span, then logs it.
func (e *Engine) recoverPanic(ctx context.Context) {
	if r := recover(); r != nil {
		stack := debug.Stack()

		_, span := otel.Tracer("pfscan/engine").Start(ctx, "ScanPanic")
		span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, "scan panicked")
		span.SetAttributes(
			attribute.String("crash.reason", fmt.Sprintf("%v", r)),
			attribute.String("crash.stack", string(stack)),
		)
		span.End()

		e.Logger.Error("Panic during scan", "error", r, "stack", string(stack))
	}
}

// reportPath returns the CSV destination inside the output directory.
func (e *Engine) reportPath() string {
	return filepath.Join(e.config.OutputDir, e.config.OutputName)
}

// jsonPath derives the JSON report destination from the CSV name.
func (e *Engine) jsonPath() string {
	name := e.config.OutputName
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return filepath.Join(e.config.OutputDir, name+".json")
}
