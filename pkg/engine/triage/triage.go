// Package triage tags report records using user-defined CEL rules.
package triage

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"gopkg.in/yaml.v3"

	"github.com/kmorell/pfscan/pkg/engine/report"
)

// Rule is one user-defined triage rule, usually loaded from YAML.
type Rule struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Expr is a CEL expression over the record's fields, e.g.
	// `run_count > 100 && exe.contains("POWERSHELL")`.
	Expr string `yaml:"expr" json:"expr"`
	// Tag is attached to matching records; defaults to the rule ID.
	Tag string `yaml:"tag,omitempty" json:"tag,omitempty"`
}

// Engine manages the compilation and execution of triage rules.
type Engine struct {
	log      *slog.Logger
	env      *cel.Env
	rules    []Rule
	programs map[string]cel.Program
}

// New initializes the CEL environment with the record fields as top-level
// variables.
func New(log *slog.Logger) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("source", decls.String),
			decls.NewVar("exe", decls.String),
			decls.NewVar("hash", decls.String),
			decls.NewVar("version", decls.Int),
			decls.NewVar("run_count", decls.Int),
			decls.NewVar("last_run", decls.String),
			decls.NewVar("volume_paths", decls.NewListType(decls.String)),
			decls.NewVar("accessed", decls.NewListType(decls.String)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	return &Engine{
		log:      log,
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile compiles the rules into executable programs. A single bad
// expression fails the whole set so broken rule files are caught up front.
func (e *Engine) Compile(rules []Rule) error {
	for _, r := range rules {
		ast, issues := e.env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %s compilation error: %w", r.ID, issues.Err())
		}

		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("rule %s program creation error: %w", r.ID, err)
		}

		e.programs[r.ID] = prg
	}
	e.rules = append(e.rules, rules...)
	return nil
}

// Rules returns the compiled rule set.
func (e *Engine) Rules() []Rule { return e.rules }

// Evaluate runs every rule against one record and returns the tags of the
// rules that matched, in rule order, deduplicated. A rule whose evaluation
// fails at runtime is logged and treated as a non-match.
func (e *Engine) Evaluate(rec report.Record) []string {
	vars := map[string]interface{}{
		"source":       rec.SourceFile,
		"exe":          rec.ExecutableName,
		"hash":         rec.PrefetchHash,
		"version":      rec.FormatVersion,
		"run_count":    rec.RunCount,
		"last_run":     rec.LastRun(),
		"volume_paths": rec.VolumePaths,
		"accessed":     rec.AccessedFiles,
	}

	var tags []string
	seen := make(map[string]bool)
	for _, r := range e.rules {
		prg, ok := e.programs[r.ID]
		if !ok {
			continue
		}
		out, _, err := prg.Eval(vars)
		if err != nil {
			e.log.Error("Rule evaluation failed", "rule_id", r.ID, "source", rec.SourceFile, "error", err)
			continue
		}
		match, ok := out.Value().(bool)
		if !ok || !match {
			continue
		}
		tag := r.Tag
		if tag == "" {
			tag = r.ID
		}
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// Load reads a YAML rules file and returns a compiled engine.
func Load(log *slog.Logger, path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var config struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse rules yaml: %w", err)
	}
	if len(config.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}

	e, err := New(log)
	if err != nil {
		return nil, err
	}
	if err := e.Compile(config.Rules); err != nil {
		return nil, err
	}
	return e, nil
}
