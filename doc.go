// Package ace is a Go implementation of Agentic Context Engineering: a
// feedback loop in which an LLM-based agent accumulates and refines a
// playbook of strategy notes across repeated task attempts.
//
// Three roles drive the loop. A Generator answers questions using the
// current playbook, a Reflector diagnoses the attempt against ground truth
// or environment feedback, and a Curator turns that diagnosis into a small
// batch of delta operations. The playbook engine applies those deltas with
// validated, conflict-free semantics: unique section-scoped bullet ids,
// monotonic counters that survive removal and reload, skip-and-continue
// handling of stale references, and optional embedding-based deduplication.
//
// Key packages:
//
//   - playbook: the core data model and mutation engine: Bullet, Playbook,
//     DeltaOperation/DeltaBatch, ApplyDelta, deduplication, and JSON or
//     SQLite persistence.
//
//   - roles: Generator, Reflector and Curator orchestrators that call an
//     LLM and produce the structured outputs the engine consumes.
//
//   - adapters: offline (training over a sample set) and online (per-sample,
//     test-time) loops wiring roles, task environments and the playbook
//     together.
//
//   - llm / llms: the minimal completion client contract, a scripted dummy
//     client for tests, and an Anthropic-backed provider.
//
// A minimal offline run:
//
//	pb := playbook.New()
//	adapter := adapters.NewOfflineAdapter(client, pb)
//	result, err := adapter.Run(ctx, samples, env, 1)
//
// See examples/quickstart for a complete runnable program.
//
// This implementation follows the ACE paper (arXiv:2510.04618).
package ace
