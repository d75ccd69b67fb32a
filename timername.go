package glowroot

import "sync"

// TimerName is an opaque handle identifying one named measurement
// site. Two TimerName values obtained from the same TimerNameCache key
// compare equal. Timer.Start matches a nested start against an
// existing child by display name, so repeated starts of one name reuse
// that child rather than creating a duplicate sibling.
type TimerName struct {
	name string
	// multipleRootTimers makes Timer.Start create a separate child node
	// on every start of this name instead of reusing an existing child
	// of the same name; the flag exists for advice that fires from
	// multiple independent call sites that are not nested (e.g. async
	// callbacks sharing one timer name).
	multipleRootTimers bool
}

// Name returns the timer's display name.
func (n TimerName) Name() string { return n.name }

// TimerNameCache interns TimerName values by instrumentation advice
// identity, so that repeated calls to GetTimerName for the same advice
// site return the identical TimerName without re-allocating or
// re-registering it.
type TimerNameCache struct {
	mu   sync.Mutex
	byID map[interface{}]TimerName
}

// NewTimerNameCache returns an empty cache.
func NewTimerNameCache() *TimerNameCache {
	return &TimerNameCache{byID: make(map[interface{}]TimerName)}
}

// Intern returns the TimerName for adviceKey, registering `name` the
// first time adviceKey is seen. adviceKey must be comparable; advice
// implementations typically pass a package-level sentinel (e.g. a
// *int or the advice type itself) so that identity, not name spelling,
// determines interning.
func (c *TimerNameCache) Intern(adviceKey interface{}, name string) TimerName {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tn, ok := c.byID[adviceKey]; ok {
		return tn
	}
	tn := TimerName{name: name}
	c.byID[adviceKey] = tn
	return tn
}

// InternExtended is like Intern but marks the timer name as allowing
// multiple concurrent root-level instances on one transaction.
func (c *TimerNameCache) InternExtended(adviceKey interface{}, name string) TimerName {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tn, ok := c.byID[adviceKey]; ok {
		return tn
	}
	tn := TimerName{name: name, multipleRootTimers: true}
	c.byID[adviceKey] = tn
	return tn
}
