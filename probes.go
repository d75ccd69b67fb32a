package glowroot

import "runtime"

// ThreadInfoComponent captures a best-effort stand-in for the JVM's
// per-thread CPU/blocked/waited time and allocated bytes (spec §3).
// Go exposes no per-goroutine equivalent of java.lang.management's
// ThreadMXBean, so this samples process-wide runtime.MemStats at
// start and finish and reports only the allocation delta; the
// CPU/blocked/waited fields are always nil, which is the documented
// behavior for an unsupported probe (spec §7: "Probe faults ...
// silently omit the corresponding snapshot fields").
type ThreadInfoComponent struct {
	startAllocated uint64
	endAllocated   uint64
	finished       bool
}

// NewThreadInfoComponent starts sampling.
func NewThreadInfoComponent() *ThreadInfoComponent {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &ThreadInfoComponent{startAllocated: m.TotalAlloc}
}

// Finish stops sampling. Finish is idempotent.
func (c *ThreadInfoComponent) Finish() {
	if c.finished {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.endAllocated = m.TotalAlloc
	c.finished = true
}

// AllocatedBytes returns the process-wide bytes allocated between
// start and finish, or nil if Finish has not been called yet.
func (c *ThreadInfoComponent) AllocatedBytes() *uint64 {
	if !c.finished {
		return nil
	}
	delta := c.endAllocated - c.startAllocated
	return &delta
}

// CPUMicros, BlockedMicros, WaitedMicros are always nil: Go has no
// portable per-goroutine equivalent of these JVM counters.
func (c *ThreadInfoComponent) CPUMicros() *int64     { return nil }
func (c *ThreadInfoComponent) BlockedMicros() *int64 { return nil }
func (c *ThreadInfoComponent) WaitedMicros() *int64  { return nil }

// GcInfoComponent captures JVM-style GC counter deltas. Go's garbage
// collector is not generational the way the spec's source JVM is, so
// this reports the delta of runtime.MemStats.NumGC (collection count)
// and PauseTotalNs (pause time) as the closest faithful analogue.
type GcInfoComponent struct {
	startCount uint32
	startPause uint64
	endCount   uint32
	endPause   uint64
	finished   bool
}

// NewGcInfoComponent starts sampling.
func NewGcInfoComponent() *GcInfoComponent {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &GcInfoComponent{startCount: m.NumGC, startPause: m.PauseTotalNs}
}

// Finish stops sampling. Finish is idempotent.
func (c *GcInfoComponent) Finish() {
	if c.finished {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.endCount = m.NumGC
	c.endPause = m.PauseTotalNs
	c.finished = true
}

// CollectionCount returns the number of GC cycles observed during the
// transaction, or nil if Finish has not been called.
func (c *GcInfoComponent) CollectionCount() *uint32 {
	if !c.finished {
		return nil
	}
	delta := c.endCount - c.startCount
	return &delta
}

// CollectionMicros returns total GC pause time observed during the
// transaction in microseconds, or nil if Finish has not been called.
func (c *GcInfoComponent) CollectionMicros() *int64 {
	if !c.finished {
		return nil
	}
	delta := int64((c.endPause - c.startPause) / 1000)
	return &delta
}
