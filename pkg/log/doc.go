// Package log provides apnsd's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// typed Field for structured context. Output goes through a pluggable
// Formatter (text or JSON) and one or more Outputs (console by default).
// A slog.Handler adapter is available for code that wants a *slog.Logger
// backed by the same pipeline.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	)
//	l = l.With(log.Component("dispatch"))
//	l.Info("worker started", log.Int("index", 2))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config (level and
// format strings, typically sourced from flags or APNSD_* environment
// variables).
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by Pebble)
// through a Logger so all process output shares one format.
package log
