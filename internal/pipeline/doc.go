// Package pipeline runs the per-company acquisition state machine.
//
// A target moves through
//
//	start -> fetched -> (rendered) -> extracted -> synced -> done
//
// and ends in failed when a step returns an error it cannot record and
// move past (bad configuration, a held lock, an unusable directory, no
// reachable seed page). Each transition is a Step; the Orchestrator wires
// the steps for one target and turns the finished Run into an immutable
// FetchReport.
//
// BatchProcessor runs many targets concurrently with a bound, using
// errgroup. A failing target never affects another one.
package pipeline
