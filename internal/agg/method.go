package agg

import (
	"encoding/binary"

	"github.com/cockroachdb/swiss"
	"github.com/dchest/siphash"

	"github.com/Henry2SS/granitetree/internal/column"
)

// MethodKind identifies which of the six key strategies an Aggregator
// picked for a particular query (spec §4.2 "Method selection").
type MethodKind int

const (
	MethodWithoutKey MethodKind = iota
	MethodKey64
	MethodKeys128
	MethodKeyString
	MethodKeyFixedString
	MethodHashed
)

// method is the internal hash-table abstraction each MethodKind
// implements: probe-or-insert a group by its key columns, and iterate
// groups in hash order to reconstruct key columns during result
// production (spec §4.2 "The chosen method owns a hash table keyed by its
// native key, value = pointer to state region").
type method interface {
	kind() MethodKind
	// lookup returns the state region for row's key, allocating a new one
	// via newState() if the key is unseen. err is newState's error when it
	// declines to allocate (no_more_keys / overflow routing is handled by
	// the Aggregator, not the method).
	lookup(keyCols []column.Column, row int, newState func() ([]byte, error)) (state []byte, isNew bool, err error)
	len() int
	// iterate calls fn once per group with its state region and the means
	// to reconstruct the key columns (emitKey).
	iterate(fn func(emitKey func(out []column.Column), state []byte))
}

func selectMethod(keyCols []column.Column) MethodKind {
	if len(keyCols) == 0 {
		return MethodWithoutKey
	}
	if len(keyCols) == 1 {
		switch keyCols[0].Kind() {
		case column.KindInt8, column.KindInt16, column.KindInt32, column.KindInt64,
			column.KindUint8, column.KindUint16, column.KindUint32, column.KindUint64,
			column.KindDate, column.KindDateTime:
			return MethodKey64
		case column.KindString:
			return MethodKeyString
		case column.KindFixedString:
			return MethodKeyFixedString
		}
	}
	allFixedWidthSmall := true
	total := 0
	for _, c := range keyCols {
		switch c.Kind() {
		case column.KindInt8, column.KindInt16, column.KindInt32, column.KindInt64,
			column.KindUint8, column.KindUint16, column.KindUint32, column.KindUint64,
			column.KindDate, column.KindDateTime, column.KindFixedString:
			if c.Len() > 0 {
				total += len(c.GetDataAt(0))
			}
		default:
			allFixedWidthSmall = false
		}
	}
	if allFixedWidthSmall && total <= 16 {
		return MethodKeys128
	}
	return MethodHashed
}

// --- WITHOUT_KEY ---

type withoutKeyMethod struct {
	state []byte
	has   bool
}

func newWithoutKeyMethod() *withoutKeyMethod { return &withoutKeyMethod{} }
func (m *withoutKeyMethod) kind() MethodKind { return MethodWithoutKey }
func (m *withoutKeyMethod) len() int {
	if m.has {
		return 1
	}
	return 0
}

func (m *withoutKeyMethod) lookup(_ []column.Column, _ int, newState func() ([]byte, error)) ([]byte, bool, error) {
	if !m.has {
		s, err := newState()
		if err != nil {
			return nil, false, err
		}
		m.state = s
		m.has = true
		return m.state, true, nil
	}
	return m.state, false, nil
}

func (m *withoutKeyMethod) iterate(fn func(func([]column.Column), []byte)) {
	if !m.has {
		return
	}
	fn(func(out []column.Column) {}, m.state)
}

// --- KEY_64 ---

type key64Method struct {
	table *swiss.Map[uint64, []byte]
	keys  map[uint64]column.Column // one-row column snapshot per key, for emitKey
}

func newKey64Method() *key64Method {
	m := &key64Method{table: &swiss.Map[uint64, []byte]{}, keys: make(map[uint64]column.Column)}
	m.table.Init(16)
	return m
}
func (m *key64Method) kind() MethodKind { return MethodKey64 }
func (m *key64Method) len() int         { return m.table.Len() }

func key64Of(col column.Column, row int) uint64 {
	b := col.GetDataAt(row)
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

func (m *key64Method) lookup(keyCols []column.Column, row int, newState func() ([]byte, error)) ([]byte, bool, error) {
	k := key64Of(keyCols[0], row)
	if s, ok := m.table.Get(k); ok {
		return s, false, nil
	}
	s, err := newState()
	if err != nil {
		return nil, false, err
	}
	m.table.Put(k, s)
	snap := column.Snapshot(keyCols[0], row)
	m.keys[k] = snap
	return s, true, nil
}

func (m *key64Method) iterate(fn func(func([]column.Column), []byte)) {
	m.table.All(func(k uint64, state []byte) bool {
		fn(func(out []column.Column) { out[0].InsertFrom(m.keys[k], 0) }, state)
		return true
	})
}

// --- KEYS_128 ---

type keys128Method struct {
	table *swiss.Map[[16]byte, []byte]
	keys  map[[16]byte][]column.Column
}

func newKeys128Method() *keys128Method {
	m := &keys128Method{table: &swiss.Map[[16]byte, []byte]{}, keys: make(map[[16]byte][]column.Column)}
	m.table.Init(16)
	return m
}
func (m *keys128Method) kind() MethodKind { return MethodKeys128 }
func (m *keys128Method) len() int         { return m.table.Len() }

func pack128(keyCols []column.Column, row int) [16]byte {
	var out [16]byte
	pos := 0
	for _, c := range keyCols {
		b := c.GetDataAt(row)
		pos += copy(out[pos:], b)
	}
	return out
}

func (m *keys128Method) lookup(keyCols []column.Column, row int, newState func() ([]byte, error)) ([]byte, bool, error) {
	k := pack128(keyCols, row)
	if s, ok := m.table.Get(k); ok {
		return s, false, nil
	}
	s, err := newState()
	if err != nil {
		return nil, false, err
	}
	m.table.Put(k, s)
	snaps := make([]column.Column, len(keyCols))
	for i, c := range keyCols {
		snaps[i] = column.Snapshot(c, row)
	}
	m.keys[k] = snaps
	return s, true, nil
}

func (m *keys128Method) iterate(fn func(func([]column.Column), []byte)) {
	m.table.All(func(k [16]byte, state []byte) bool {
		fn(func(out []column.Column) {
			for i, snap := range m.keys[k] {
				out[i].InsertFrom(snap, 0)
			}
		}, state)
		return true
	})
}

// --- KEY_STRING / KEY_FIXED_STRING ---

type keyStringMethod struct {
	table *swiss.Map[string, []byte]
	keys  map[string]string
}

func newKeyStringMethod() *keyStringMethod {
	m := &keyStringMethod{table: &swiss.Map[string, []byte]{}, keys: make(map[string]string)}
	m.table.Init(16)
	return m
}
func (m *keyStringMethod) kind() MethodKind { return MethodKeyString }
func (m *keyStringMethod) len() int         { return m.table.Len() }

func (m *keyStringMethod) lookup(keyCols []column.Column, row int, newState func() ([]byte, error)) ([]byte, bool, error) {
	k := string(keyCols[0].GetDataAt(row))
	if s, ok := m.table.Get(k); ok {
		return s, false, nil
	}
	s, err := newState()
	if err != nil {
		return nil, false, err
	}
	m.table.Put(k, s)
	m.keys[k] = k
	return s, true, nil
}

func (m *keyStringMethod) iterate(fn func(func([]column.Column), []byte)) {
	m.table.All(func(k string, state []byte) bool {
		fn(func(out []column.Column) {
			bs := out[0].(*column.ByteString)
			bs.Append([]byte(k))
		}, state)
		return true
	})
}

// KeyFixedStringMethod reuses keyStringMethod's string-keyed table; the
// only difference from KEY_STRING is how the result column is rebuilt
// (fixed-width append rather than variable-length append).
type keyFixedStringMethod struct {
	*keyStringMethod
	width int
}

func newKeyFixedStringMethod(width int) *keyFixedStringMethod {
	return &keyFixedStringMethod{keyStringMethod: newKeyStringMethod(), width: width}
}
func (m *keyFixedStringMethod) kind() MethodKind { return MethodKeyFixedString }

func (m *keyFixedStringMethod) iterate(fn func(func([]column.Column), []byte)) {
	m.table.All(func(k string, state []byte) bool {
		fn(func(out []column.Column) {
			fs := out[0].(*column.FixedString)
			fs.Append([]byte(k))
		}, state)
		return true
	})
}

// --- HASHED ---

type hashedMethod struct {
	table *swiss.Map[[16]byte, []byte]
	keys  map[[16]byte][]column.Column
}

func newHashedMethod() *hashedMethod {
	m := &hashedMethod{table: &swiss.Map[[16]byte, []byte]{}, keys: make(map[[16]byte][]column.Column)}
	m.table.Init(16)
	return m
}
func (m *hashedMethod) kind() MethodKind { return MethodHashed }
func (m *hashedMethod) len() int         { return m.table.Len() }

func hash128Of(keyCols []column.Column, row int) [16]byte {
	var buf []byte
	for _, c := range keyCols {
		buf = append(buf, c.GetDataAt(row)...)
		buf = append(buf, 0)
	}
	lo, hi := siphash.Hash128(0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9, buf)
	var out [16]byte
	binary.LittleEndian.PutUint64(out[:8], lo)
	binary.LittleEndian.PutUint64(out[8:], hi)
	return out
}

func (m *hashedMethod) lookup(keyCols []column.Column, row int, newState func() ([]byte, error)) ([]byte, bool, error) {
	k := hash128Of(keyCols, row)
	if s, ok := m.table.Get(k); ok {
		return s, false, nil
	}
	s, err := newState()
	if err != nil {
		return nil, false, err
	}
	m.table.Put(k, s)
	snaps := make([]column.Column, len(keyCols))
	for i, c := range keyCols {
		snaps[i] = column.Snapshot(c, row)
	}
	m.keys[k] = snaps
	return s, true, nil
}

func (m *hashedMethod) iterate(fn func(func([]column.Column), []byte)) {
	m.table.All(func(k [16]byte, state []byte) bool {
		fn(func(out []column.Column) {
			for i, snap := range m.keys[k] {
				out[i].InsertFrom(snap, 0)
			}
		}, state)
		return true
	})
}

func newMethod(kind MethodKind, keyCols []column.Column) method {
	switch kind {
	case MethodWithoutKey:
		return newWithoutKeyMethod()
	case MethodKey64:
		return newKey64Method()
	case MethodKeys128:
		return newKeys128Method()
	case MethodKeyString:
		return newKeyStringMethod()
	case MethodKeyFixedString:
		width := keyCols[0].(*column.FixedString).Width
		return newKeyFixedStringMethod(width)
	default:
		return newHashedMethod()
	}
}
