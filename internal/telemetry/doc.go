// Package telemetry manages periodic device telemetry: the per-interface
// sampling schedule, the runtime overrides the platform pushes, and the
// sampling loop that produces payloads for publication.
//
// # Architecture
//
//	config defaults ──► Telemetry ◄── ConfigEvent (platform overrides)
//	                       │  RWMutex-guarded schedule
//	                       ▼
//	                 Run(ctx) sampler ──► payload queue ──► publish task
//
// The schedule is guarded by an RWMutex behind narrow accessors; neither the
// lock nor the schedule map ever leaves the package. The sampling loop holds
// the lock only for schedule bookkeeping, never while collecting or while
// pushing onto the queue.
//
// # Overrides
//
// The platform overrides one interface at a time through ConfigEvent with
// endpoint "enable" (bool) or "periodSeconds" (number). An unset value
// reverts that field to its configured default.
//
// # Collectors
//
// System status sampling and the one-shot OS, hardware and runtime
// inventories collect through gopsutil, so the package stays portable across
// the glibc/musl targets the agent ships on.
package telemetry
