package annotation

// KeySet is a set of keys that remembers insertion order
type KeySet struct {
	keys  []string
	index map[string]struct{}
}

func newKeySet() *KeySet {
	return &KeySet{index: make(map[string]struct{})}
}

// Add appends key unless it is already present
func (s *KeySet) Add(key string) {
	if _, ok := s.index[key]; ok {
		return
	}
	s.index[key] = struct{}{}
	s.keys = append(s.keys, key)
}

// Remove drops key, keeping the order of the rest
func (s *KeySet) Remove(key string) {
	if _, ok := s.index[key]; !ok {
		return
	}
	delete(s.index, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

func (s *KeySet) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// HasAny reports whether any of keys is in the set
func (s *KeySet) HasAny(keys []string) bool {
	for _, k := range keys {
		if s.Has(k) {
			return true
		}
	}
	return false
}

func (s *KeySet) Len() int {
	return len(s.keys)
}

// Keys returns a copy of the keys in insertion order
func (s *KeySet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}
