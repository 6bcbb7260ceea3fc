package mutex

import "sync"

// KeyedMutex serializes work per string key. The forwarder uses it to keep
// media-group assembly atomic: all updates sharing a media group ID pass
// through the same lock, so a group is always flushed as a single unit.
type KeyedMutex struct {
	muMap sync.Map
}

func (km *KeyedMutex) Lock(key string) {
	mu, _ := km.muMap.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
}

func (km *KeyedMutex) Unlock(key string) {
	mu, ok := km.muMap.Load(key)
	if ok {
		mu.(*sync.Mutex).Unlock()
	}
}

// Forget drops the lock for a key once its group has been flushed, so the
// map does not grow with every media group ever seen.
func (km *KeyedMutex) Forget(key string) {
	km.muMap.Delete(key)
}
