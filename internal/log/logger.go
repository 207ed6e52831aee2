// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log configures structured logging for the CLI: the run
// command builds its logger here and passes it to the interpreter,
// which takes a *slog.Logger as an optional collaborator and logs
// nothing without one. The compiler, loader and RPC wrapper do not log.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the log output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Standard field keys, kept consistent across packages.
const (
	RunIDKey      = "run_id"
	StepIDKey     = "step_id"
	LoopIDKey     = "loop_id"
	WorkflowKey   = "workflow_id"
	EventKey      = "event"
	IterationKey  = "iteration"
	DurationMsKey = "duration_ms"
)

// Config holds logging configuration.
type Config struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string
	// Format is json or text. Default: json.
	Format Format
	// Output is the destination writer. Default: os.Stderr.
	Output io.Writer
	// AddSource adds file:line to each record. Default: false.
	AddSource bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: os.Stderr,
	}
}

// FromEnv builds a Config from environment variables:
//   - STEPKERNEL_DEBUG: true/1 enables debug level and source info
//   - STEPKERNEL_LOG_LEVEL / LOG_LEVEL: debug, info, warn, error
//   - LOG_FORMAT: json, text
//   - LOG_SOURCE: 1 enables source info
func FromEnv() *Config {
	cfg := DefaultConfig()

	debug := os.Getenv("STEPKERNEL_DEBUG")
	if debug == "true" || debug == "1" {
		cfg.Level = "debug"
		cfg.AddSource = true
	}
	if debug == "" {
		if level := os.Getenv("STEPKERNEL_LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		} else if level := os.Getenv("LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		}
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}
	if os.Getenv("LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}
	return cfg
}

// New builds a *slog.Logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRunContext returns a logger carrying run_id and workflow_id fields.
func WithRunContext(logger *slog.Logger, runID, workflowID string) *slog.Logger {
	return logger.With(slog.String(RunIDKey, runID), slog.String(WorkflowKey, workflowID))
}

// WithStepContext returns a logger carrying run_id and step_id fields.
func WithStepContext(logger *slog.Logger, runID, stepID string) *slog.Logger {
	return logger.With(slog.String(RunIDKey, runID), slog.String(StepIDKey, stepID))
}

// WithLoopContext returns a logger carrying loop_id and iteration fields.
func WithLoopContext(logger *slog.Logger, loopID string, iteration int) *slog.Logger {
	return logger.With(slog.String(LoopIDKey, loopID), slog.Int(IterationKey, iteration))
}
