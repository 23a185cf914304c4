package column

// DictionaryState holds the LowCardinality dictionaries of one result stream.
//
// A dictionary is keyed by the column's position in the block plus the nested
// path of the LowCardinality wrapper within the column's type, so a
// LowCardinality under Map or Tuple keeps an independent dictionary from its
// siblings. Dictionaries grow additively across blocks and never shrink
// within one stream.
//
// A DictionaryState must be confined to a single stream, fed blocks strictly
// in arrival order, and discarded at stream end. It must not be shared across
// concurrent streams; with pipelined queries, each in-flight query owns its
// own state. The zero value is not usable; call NewDictionaryState.
type DictionaryState struct {
	dicts map[string]*dictionary
}

type dictionary struct {
	values []Value
}

// NewDictionaryState returns an empty state for one result stream.
func NewDictionaryState() *DictionaryState {
	return &DictionaryState{dicts: make(map[string]*dictionary)}
}

// Reset discards all dictionaries, making the state reusable for a new
// stream.
func (s *DictionaryState) Reset() {
	s.dicts = make(map[string]*dictionary)
}

// Clone returns an independent deep copy. Callers that may retry a failed
// decode, for example after receiving more bytes of a split block, must
// decode into a clone and install it on success so the retained dictionaries
// only ever reflect fully decoded blocks.
func (s *DictionaryState) Clone() *DictionaryState {
	c := NewDictionaryState()
	for key, d := range s.dicts {
		values := make([]Value, len(d.values))
		copy(values, d.values)
		c.dicts[key] = &dictionary{values: values}
	}
	return c
}

// lookup returns the dictionary at key, if one has been established.
func (s *DictionaryState) lookup(key string) (*dictionary, bool) {
	d, ok := s.dicts[key]
	return d, ok
}

// replace installs a fresh dictionary at key, discarding any previous one.
func (s *DictionaryState) replace(key string, values []Value) *dictionary {
	d := &dictionary{values: values}
	s.dicts[key] = d
	return d
}
