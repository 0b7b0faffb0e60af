// Package workflow implements the annotation pipeline state machine:
// detection ingestion, assignment scheduling, annotation revision chains,
// verification decisions, and batch progress recomputation.
//
// Every point mutation re-checks its precondition against stored state via
// a compare-and-swap on the status column, so concurrent writers lose
// cleanly instead of overwriting each other. Batch counters are never
// accumulated; they are always recomputed from current child image states.
package workflow
