// Package ir defines the persisted data model of a paperfig run.
//
// Every artifact that lands in a run directory (plan.json, critique.json,
// run.json, the gate reports) is described by a type in this package, and
// every other internal package imports ir. ir imports nothing internal.
//
// Key design constraints:
//   - All JSON tags use snake_case and match the on-disk file format
//   - Slices are normalised to empty (never null) before persistence
//   - Canonical JSON (MarshalCanonical) is the only serialisation used for
//     content-addressed hashes and the config fingerprint
package ir
