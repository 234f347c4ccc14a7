// Package store keeps a SQLite index of paperfig runs.
//
// Every generate and rerun records a row when the run starts and updates it
// when the run finishes. Run directories stay the source of truth: the
// index can be deleted and nothing but `paperfig runs` notices.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads while a run writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - a single open connection serialises writers
//
// Listings are ordered by created_at DESC, run_id DESC COLLATE BINARY so two
// runs started in the same second still list deterministically.
package store
