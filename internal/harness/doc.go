// Package harness runs paperfig scenarios described in YAML against the
// real orchestrator with scripted collaborators.
//
// # Scenario Format
//
//	name: retry_then_accept
//	description: "A figure fails once and is accepted on iteration 2"
//	config:
//	  max_iterations: 3
//	  block_severity: critical
//	  audit_mode: soft
//	plan:
//	  - figure_id: a
//	    title: Figure A
//	critic:
//	  a:
//	    - { score: 0.4, failed: [readability] }
//	    - { score: 0.9, passed: true }
//	expect:
//	  outcome: success
//	assertions:
//	  - type: call_count
//	    call: generate
//	    figure: a
//	    count: 2
//	  - type: figure_state
//	    figure: a
//	    expect: { accepted: true, iterations_attempted: 2 }
//
// # Assertion Types
//
//   - call_contains: a collaborator call with the given figure/iteration happened
//   - call_order: calls appear in the given order (gaps allowed)
//   - call_count: a call kind happened exactly N times (optionally per figure)
//   - figure_state: fields of the figure's inspect summary match
//   - file_exists / file_absent: a path relative to the run directory
//
// # Deterministic Testing
//
// Every scenario runs with a fixed clock (testutil.Epoch) and a fixed run id
// ("run-scenario" unless the scenario sets run_id), so call traces and run
// directories are reproducible and can be compared with golden files.
package harness
