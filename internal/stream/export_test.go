package stream

// LockCount reports how many per-key locks the registry currently holds.
func (registry *Registry) LockCount() int {
	return len(registry.locks.Values())
}
