package stream

import (
	gosync "sync"

	"github.com/hbomb79/hlsgate/pkg/sync"
)

type (
	// JobFactory creates the job for a key which is not yet registered. Returning
	// a nil job registers nothing; returning a job alongside an error registers
	// the job (which is expected to be Failed) and reports the error.
	JobFactory func() (*Job, error)

	// Registry holds the jobs known to the gateway, keyed by content key. Creation
	// of a job is serialised per key, so concurrent requests for the same source
	// never create more than one job, while different keys proceed independently.
	Registry struct {
		jobs  *sync.TypedSyncMap[string, *Job]
		locks *sync.TypedSyncMap[string, *gosync.Mutex]
	}
)

func NewRegistry() *Registry {
	return &Registry{
		jobs:  new(sync.TypedSyncMap[string, *Job]),
		locks: new(sync.TypedSyncMap[string, *gosync.Mutex]),
	}
}

// GetOrCreate returns the job for the key if one exists. Otherwise the factory
// is invoked while holding the lock for this key. The boolean result is true
// only for the caller whose factory produced the job.
func (registry *Registry) GetOrCreate(key string, factory JobFactory) (*Job, bool, error) {
	if job, ok := registry.jobs.Load(key); ok {
		return job, false, nil
	}

	lock := registry.acquire(key)

	// Another caller may have created the job while we waited for the lock
	if job, ok := registry.jobs.Load(key); ok {
		registry.release(key, lock, false)
		return job, false, nil
	}

	job, err := factory()
	if job == nil {
		registry.release(key, lock, true)
		return nil, false, err
	}

	registry.jobs.Store(key, job)
	registry.release(key, lock, false)
	return job, true, err
}

func (registry *Registry) Get(key string) (*Job, bool) {
	return registry.jobs.Load(key)
}

// Evict removes the job for the key from the registry and runs cleanup for it
// before the lock for the key is released. A concurrent GetOrCreate for the same
// key waits until cleanup has finished, so it never observes the output of the
// job being evicted. ErrJobNotFound is returned if no job is registered.
func (registry *Registry) Evict(key string, cleanup func(*Job) error) (*Job, error) {
	lock := registry.acquire(key)
	defer registry.release(key, lock, true)

	job, ok := registry.jobs.Load(key)
	if !ok {
		return nil, ErrJobNotFound
	}

	registry.jobs.CompareAndDelete(key, job)
	if cleanup == nil {
		return job, nil
	}

	return job, cleanup(job)
}

// All returns a snapshot of every registered job, in no particular order.
func (registry *Registry) All() []*Job {
	return registry.jobs.Values()
}

// acquire locks the mutex for the key. A mutex may be dropped from the lock map
// by its holder, in which case anyone who was waiting on it retries with the
// mutex now stored for the key.
func (registry *Registry) acquire(key string) *gosync.Mutex {
	for {
		lock, _ := registry.locks.LoadOrStore(key, &gosync.Mutex{})
		lock.Lock()
		if current, ok := registry.locks.Load(key); ok && current == lock {
			return lock
		}

		lock.Unlock()
	}
}

// release unlocks the mutex for the key, first removing it from the lock map
// when drop is set. Must only be called by the holder of the lock.
func (registry *Registry) release(key string, lock *gosync.Mutex, drop bool) {
	if drop {
		registry.locks.CompareAndDelete(key, lock)
	}

	lock.Unlock()
}
