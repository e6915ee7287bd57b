package sync

import "sync"

// TypedSyncMap is a thin generic wrapper around sync.Map so that
// callers are not forced to type-assert every value they load.
type TypedSyncMap[K comparable, V any] struct {
	m sync.Map
}

func (m *TypedSyncMap[K, V]) Delete(key K) { m.m.Delete(key) }

func (m *TypedSyncMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return *new(V), false
	}

	vv, ok := v.(V)
	return vv, ok
}

// LoadOrStore returns the existing value for the key if present,
// otherwise it stores and returns the given value. The loaded result
// is true if the value was loaded, false if stored.
func (m *TypedSyncMap[K, V]) LoadOrStore(key K, value V) (V, bool) {
	actual, loaded := m.m.LoadOrStore(key, value)
	if av, ok := actual.(V); ok {
		return av, loaded
	}

	return *new(V), loaded
}

// CompareAndDelete deletes the entry for key only if its current
// value is old. Values must be comparable (pointers, in practice).
func (m *TypedSyncMap[K, V]) CompareAndDelete(key K, old V) bool {
	return m.m.CompareAndDelete(key, old)
}

func (m *TypedSyncMap[K, V]) Store(key K, value V) { m.m.Store(key, value) }

// Range calls fn for each key/value in the map. Iteration stops
// as soon as fn returns false.
func (m *TypedSyncMap[K, V]) Range(fn func(K, V) bool) {
	m.m.Range(func(k, v any) bool {
		kk, okK := k.(K)
		vv, okV := v.(V)
		if !okK || !okV {
			return true
		}

		return fn(kk, vv)
	})
}

// Values returns a snapshot of all values currently in the map.
func (m *TypedSyncMap[K, V]) Values() []V {
	out := make([]V, 0)
	m.Range(func(_ K, v V) bool {
		out = append(out, v)
		return true
	})

	return out
}
