package eventhub

import "sync"

// Registry 维护事件键到订阅者集合的双向索引。
// 每个 Bus 独立持有一个实例；读取均返回副本，发射迭代不受并发改动影响。
type Registry struct {
	mu    sync.RWMutex
	byKey map[Key]map[*Subscriber]struct{}
	bySub map[*Subscriber]map[Key]struct{}
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[Key]map[*Subscriber]struct{}),
		bySub: make(map[*Subscriber]map[Key]struct{}),
	}
}

// insert 将订阅者挂入全部键；键条目按需懒创建。
func (r *Registry) insert(sub *Subscriber, keys ...Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ks := r.bySub[sub]
	if ks == nil {
		ks = make(map[Key]struct{}, len(keys))
		r.bySub[sub] = ks
	}
	for _, k := range keys {
		set := r.byKey[k]
		if set == nil {
			set = make(map[*Subscriber]struct{})
			r.byKey[k] = set
		}
		set[sub] = struct{}{}
		ks[k] = struct{}{}
	}
}

// remove 将订阅者从指定键移除；键集合清空则删除键条目。
func (r *Registry) remove(sub *Subscriber, keys ...Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.removeLocked(sub, k)
	}
}

func (r *Registry) removeLocked(sub *Subscriber, k Key) {
	if set, ok := r.byKey[k]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(r.byKey, k)
		}
	}
	if ks, ok := r.bySub[sub]; ok {
		delete(ks, k)
		if len(ks) == 0 {
			delete(r.bySub, sub)
		}
	}
}

// removeListener 将订阅者从其注册的全部键移除。
func (r *Registry) removeListener(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.bySub[sub] {
		if set, ok := r.byKey[k]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(r.byKey, k)
			}
		}
	}
	delete(r.bySub, sub)
}

// RemoveEvent 删除键的整个条目，返回其是否存在。
func (r *Registry) RemoveEvent(k Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byKey[k]
	if !ok {
		return false
	}
	for sub := range set {
		ks := r.bySub[sub]
		delete(ks, k)
		if len(ks) == 0 {
			delete(r.bySub, sub)
		}
	}
	delete(r.byKey, k)
	return true
}

// RemoveAll 清空注册表。
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[Key]map[*Subscriber]struct{})
	r.bySub = make(map[*Subscriber]map[Key]struct{})
}

// Subscribers 返回键当前订阅者集合的快照。
func (r *Registry) Subscribers(k Key) []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byKey[k]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Subscriber, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

// KeysOf 返回订阅者注册的全部键。
func (r *Registry) KeysOf(sub *Subscriber) []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ks := r.bySub[sub]
	if len(ks) == 0 {
		return nil
	}
	out := make([]Key, 0, len(ks))
	for k := range ks {
		out = append(out, k)
	}
	return out
}

// Events 返回当前存在订阅的全部键。
func (r *Registry) Events() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Key, 0, len(r.byKey))
	for k := range r.byKey {
		out = append(out, k)
	}
	return out
}
