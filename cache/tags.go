package cache

import "sync"

// tagIndex maps a tag to the set of keys stored under it. The index is
// advisory: it never blocks a get/set/delete, and a member pointing at an
// already-expired key is tolerated and cleaned up on the next invalidation.
// Process-local; the remote tier carries no tag state.
type tagIndex struct {
	mu   sync.Mutex
	tags map[string]map[string]struct{}
}

func newTagIndex() *tagIndex {
	return &tagIndex{tags: make(map[string]map[string]struct{})}
}

// add registers key under each tag
func (t *tagIndex) add(key string, tags ...string) {
	if len(tags) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tag := range tags {
		keys, ok := t.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			t.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// removeKey detaches a deleted key from every tag it was registered under
func (t *tagIndex) removeKey(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for tag, keys := range t.tags {
		delete(keys, key)
		if len(keys) == 0 {
			delete(t.tags, tag)
		}
	}
}

// keysFor returns a snapshot of the keys currently indexed under tag
func (t *tagIndex) keysFor(tag string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := t.tags[tag]
	out := make([]string, 0, len(keys))
	for key := range keys {
		out = append(out, key)
	}
	return out
}

// dropTag removes a tag and all its members from the index
func (t *tagIndex) dropTag(tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tags, tag)
}

// clear empties the whole index
func (t *tagIndex) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tags = make(map[string]map[string]struct{})
}
