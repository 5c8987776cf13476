package cache

// ScopedKeyer wraps a Keyer with a prefix so that several viewers can share
// one backend (typically Redis) without reading each other's entries.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "evdisplay:v1:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ExtractKey generates a prefixed key for extract caching.
func (k *ScopedKeyer) ExtractKey(geometryHash string, opts ExtractKeyOpts) string {
	return k.prefix + k.inner.ExtractKey(geometryHash, opts)
}

// IndexKey generates a prefixed key for event index caching.
func (k *ScopedKeyer) IndexKey(sourceID string) string {
	return k.prefix + k.inner.IndexKey(sourceID)
}
