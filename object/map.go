package object

// Map is a mutable, shared hash table Object->Object. Entries
// are kept in insertion order via a parallel key slice so `items()`/
// `keys()`/`values()` iterate deterministically instead of following Go's
// randomized map order.
type Map struct {
	keys   []string
	index  map[string]int
	keyObj map[string]Object
	vals   map[string]Object
	Frozen bool
}

func NewMap() *Map {
	return &Map{
		index:  make(map[string]int),
		keyObj: make(map[string]Object),
		vals:   make(map[string]Object),
	}
}

func (m *Map) Type() Type { return TMap }
func (m *Map) String() string {
	s := "{"
	for i, k := range m.keys {
		if i > 0 {
			s += ", "
		}
		s += Repr(m.keyObj[k]) + ": " + Repr(m.vals[k])
	}
	return s + "}"
}

func (m *Map) Get(keyObj Object) (Object, bool) {
	k, ok := HashKey(keyObj)
	if !ok {
		return nil, false
	}
	v, ok := m.vals[k]
	return v, ok
}

// Set inserts or overwrites key -> value ("update" semantics).
func (m *Map) Set(keyObj, val Object) error {
	if m.Frozen {
		return FrozenError{}
	}
	k, ok := HashKey(keyObj)
	if !ok {
		return UnhashableError{Value: keyObj}
	}
	if _, exists := m.vals[k]; !exists {
		m.index[k] = len(m.keys)
		m.keys = append(m.keys, k)
		m.keyObj[k] = keyObj
	}
	m.vals[k] = val
	return nil
}

// Extend inserts only keys absent from m.
func (m *Map) Extend(other *Map) error {
	if m.Frozen {
		return FrozenError{}
	}
	for _, k := range other.keys {
		if _, exists := m.vals[k]; exists {
			continue
		}
		m.index[k] = len(m.keys)
		m.keys = append(m.keys, k)
		m.keyObj[k] = other.keyObj[k]
		m.vals[k] = other.vals[k]
	}
	return nil
}

func (m *Map) Remove(keyObj Object) error {
	if m.Frozen {
		return FrozenError{}
	}
	k, ok := HashKey(keyObj)
	if !ok {
		return nil
	}
	i, exists := m.index[k]
	if !exists {
		return nil
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	delete(m.index, k)
	delete(m.keyObj, k)
	delete(m.vals, k)
	for j := i; j < len(m.keys); j++ {
		m.index[m.keys[j]] = j
	}
	return nil
}

func (m *Map) Clear() error {
	if m.Frozen {
		return FrozenError{}
	}
	m.keys = nil
	m.index = make(map[string]int)
	m.keyObj = make(map[string]Object)
	m.vals = make(map[string]Object)
	return nil
}

func (m *Map) Size() int { return len(m.keys) }

func (m *Map) Keys() *List {
	out := make([]Object, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.keyObj[k]
	}
	return &List{Elems: out}
}

func (m *Map) Values() *List {
	out := make([]Object, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.vals[k]
	}
	return &List{Elems: out}
}

// Items returns a List of two-element [key, value] Lists, in insertion
// order.
func (m *Map) Items() *List {
	out := make([]Object, len(m.keys))
	for i, k := range m.keys {
		out[i] = &List{Elems: []Object{m.keyObj[k], m.vals[k]}}
	}
	return &List{Elems: out}
}

// UnhashableError is raised as a type-error when a key cannot be hashed
// (Function, Interface, Table values used as Map keys).
type UnhashableError struct{ Value Object }

func (e UnhashableError) Error() string { return "unhashable type: " + TypeName(e.Value) }
