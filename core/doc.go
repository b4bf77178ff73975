// Package core defines the domain model shared across the SNSM backend.
//
// # Architecture Overview
//
// The core package provides:
//   - Domain types (Alert, Flow, ThreatScore, AnomalyBaseline, BlocklistEntry)
//   - Scoring constants, source weights, and classification thresholds
//   - IP normalization helpers used on every ingest path
//   - The shared Redis cache wrapper and its key namespace
//
// Higher layers depend on core; core depends on nothing above it. Scoring
// math that needs storage coordination (max-merge, Welford updates) lives
// here as pure functions so both the SQLite store and the in-memory test
// doubles apply identical semantics.
package core
