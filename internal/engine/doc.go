// Package engine implements the paperfig run orchestrator.
//
// The orchestrator turns a document into a run directory: a figure plan,
// one generate/critique loop per figure, and a fixed finalization pipeline.
// Every collaborator (parser, planner, generator, critic, architecture
// critic, auditor, docs drift checker, exporter) is injected through Deps.
//
// RUN LIFECYCLE:
//
//  1. run.json, sections.json and plan.json are written before any figure.
//  2. Each plan entry runs up to MaxIterations generate/critique rounds.
//     The first passing round is promoted to final/; if none passes, the
//     last critiqued round is promoted instead (fallback).
//  3. captions.txt and the aggregated traceability.json are written.
//  4. Finalization runs in order: inspect.json, docs drift gate,
//     inline architecture critique gate, reproducibility audit gate.
//     Each stage reads only files already on disk.
//
// A gate failure is returned as a RunError after its report is persisted,
// so callers can inspect the run directory to see why.
//
// CRITICAL PATTERNS:
//
// Persisted plan is authoritative:
// Rerun never consults the Planner. The source run's plan.json is copied
// verbatim into the new run, so figure requests are identical across reruns.
//
// Read-side operations never write to source runs:
// Inspect recomputes from disk. Diff persists lazily built snapshots inside
// its own diff directory. Audit and CritiqueArchitecture overwrite only
// their own report file.
//
// Explicit configuration:
// Config is a value held by each Orchestrator. Orchestrators with different
// settings can run concurrently against one run root; run ids carry a
// random suffix and no lock is taken.
package engine
