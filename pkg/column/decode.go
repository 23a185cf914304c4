package column

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/chnative/pkg/chtype"
	"github.com/ajitpratap0/chnative/pkg/errors"
	"github.com/ajitpratap0/chnative/pkg/wire"
)

var epoch = time.Unix(0, 0).UTC()

// LowCardinality serialization constants.
//
// The meta word carries the index width in its low bits and feature flags
// above: bit 9 signals additional keys stored before the indexes, bit 10
// signals that the previous block's dictionary must be replaced.
const (
	lcKeyVersion = 1 // shared dictionaries with additional keys

	lcWidthUInt8  = 0
	lcWidthUInt16 = 1
	lcWidthUInt32 = 2
	lcWidthUInt64 = 3

	lcHasAdditionalKeys = 1 << 9
	lcNeedsUpdate       = 1 << 10
	lcUpdateAll         = lcHasAdditionalKeys | lcNeedsUpdate
)

// maxDictionarySize bounds a declared dictionary so a corrupt length prefix
// cannot drive allocation.
const maxDictionarySize = 1 << 30

// Decode reads rows values of type t from r.
//
// state carries LowCardinality dictionaries across the blocks of one stream
// and may be nil when t contains no LowCardinality wrapper (or when
// single-block decoding is acceptable). key is the dictionary key prefix for
// this column, conventionally its position in the block; Block passes it
// automatically.
//
// On any wire inconsistency Decode returns an error and the partially read
// buffer must be discarded by the caller.
func Decode(r *wire.Reader, t chtype.Type, rows int, state *DictionaryState, key string) ([]Value, error) {
	if rows < 0 {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "negative row count %d", rows)
	}
	if state == nil {
		state = NewDictionaryState()
	}
	d := &decoder{r: r, state: state}
	return d.decode(t, rows, key)
}

type decoder struct {
	r     *wire.Reader
	state *DictionaryState
}

// decode dispatches on the descriptor variant. This is the single central
// recursion; every wire shape bottoms out here.
func (d *decoder) decode(t chtype.Type, rows int, key string) ([]Value, error) {
	switch t.Kind() {
	case chtype.KindUInt8:
		return d.fixedWidth(rows, 1, func(b []byte) Value { return b[0] })
	case chtype.KindUInt16:
		return d.fixedWidth(rows, 2, func(b []byte) Value { return binary.LittleEndian.Uint16(b) })
	case chtype.KindUInt32:
		return d.fixedWidth(rows, 4, func(b []byte) Value { return binary.LittleEndian.Uint32(b) })
	case chtype.KindUInt64:
		return d.fixedWidth(rows, 8, func(b []byte) Value { return binary.LittleEndian.Uint64(b) })
	case chtype.KindInt8:
		return d.fixedWidth(rows, 1, func(b []byte) Value { return int8(b[0]) })
	case chtype.KindInt16:
		return d.fixedWidth(rows, 2, func(b []byte) Value { return int16(binary.LittleEndian.Uint16(b)) })
	case chtype.KindInt32:
		return d.fixedWidth(rows, 4, func(b []byte) Value { return int32(binary.LittleEndian.Uint32(b)) })
	case chtype.KindInt64:
		return d.fixedWidth(rows, 8, func(b []byte) Value { return int64(binary.LittleEndian.Uint64(b)) })
	case chtype.KindFloat32:
		return d.fixedWidth(rows, 4, func(b []byte) Value { return math.Float32frombits(binary.LittleEndian.Uint32(b)) })
	case chtype.KindFloat64:
		return d.fixedWidth(rows, 8, func(b []byte) Value { return math.Float64frombits(binary.LittleEndian.Uint64(b)) })
	case chtype.KindBool:
		return d.fixedWidth(rows, 1, func(b []byte) Value { return b[0] != 0 })
	case chtype.KindDate:
		return d.fixedWidth(rows, 2, func(b []byte) Value {
			days := binary.LittleEndian.Uint16(b)
			return time.Unix(int64(days)*86400, 0).UTC()
		})
	case chtype.KindDateTime:
		return d.fixedWidth(rows, 4, func(b []byte) Value {
			return time.Unix(int64(binary.LittleEndian.Uint32(b)), 0).UTC()
		})
	case chtype.KindDateTime64:
		ticksPerSecond := pow10[t.Precision()]
		nsPerTick := pow10[9-t.Precision()]
		return d.fixedWidth(rows, 8, func(b []byte) Value {
			ticks := int64(binary.LittleEndian.Uint64(b))
			return time.Unix(ticks/ticksPerSecond, (ticks%ticksPerSecond)*nsPerTick).UTC()
		})
	case chtype.KindDecimal32:
		return d.fixedWidth(rows, 4, func(b []byte) Value { return int32(binary.LittleEndian.Uint32(b)) })
	case chtype.KindDecimal64:
		return d.fixedWidth(rows, 8, func(b []byte) Value { return int64(binary.LittleEndian.Uint64(b)) })
	case chtype.KindDecimal128:
		return d.fixedWidth(rows, 16, func(b []byte) Value { return decimal128FromWire(b) })
	case chtype.KindUUID:
		return d.fixedWidth(rows, 16, func(b []byte) Value {
			var u uuid.UUID
			binary.BigEndian.PutUint64(u[0:8], binary.LittleEndian.Uint64(b[0:8]))
			binary.BigEndian.PutUint64(u[8:16], binary.LittleEndian.Uint64(b[8:16]))
			return u
		})
	case chtype.KindString:
		return d.strings(rows)
	case chtype.KindFixedString:
		return d.fixedStrings(rows, t.FixedLen())
	case chtype.KindEnum8:
		return d.enum8(t, rows)
	case chtype.KindEnum16:
		return d.enum16(t, rows)
	case chtype.KindNullable:
		return d.nullable(t, rows, key)
	case chtype.KindArray:
		return d.array(t, rows, key)
	case chtype.KindMap:
		return d.mapped(t, rows, key)
	case chtype.KindTuple:
		return d.tuple(t, rows, key)
	case chtype.KindLowCardinality:
		return d.lowCardinality(t, rows, key)
	default:
		return nil, errors.Newf(errors.ErrorTypeUnknownType, "cannot decode type %s", t.String())
	}
}

// fixedWidth is the hot path: rows fixed-width values packed contiguously
// with no delimiters, pulled in one bulk read.
func (d *decoder) fixedWidth(rows, size int, conv func([]byte) Value) ([]Value, error) {
	raw, err := d.r.Fixed(rows * size)
	if err != nil {
		return nil, err
	}
	out := make([]Value, rows)
	for i := 0; i < rows; i++ {
		out[i] = conv(raw[i*size : (i+1)*size])
	}
	return out, nil
}

func (d *decoder) strings(rows int) ([]Value, error) {
	out := make([]Value, rows)
	for i := 0; i < rows; i++ {
		s, err := d.r.String()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// fixedStrings reads rows n-byte values. Values are preserved exactly,
// including embedded and trailing zero bytes; ClickHouse does not trim.
func (d *decoder) fixedStrings(rows, n int) ([]Value, error) {
	raw, err := d.r.Fixed(rows * n)
	if err != nil {
		return nil, err
	}
	out := make([]Value, rows)
	for i := 0; i < rows; i++ {
		v := make([]byte, n)
		copy(v, raw[i*n:(i+1)*n])
		out[i] = v
	}
	return out, nil
}

func (d *decoder) enum8(t chtype.Type, rows int) ([]Value, error) {
	raw, err := d.r.Fixed(rows)
	if err != nil {
		return nil, err
	}
	out := make([]Value, rows)
	for i := 0; i < rows; i++ {
		name, ok := t.EnumName(int16(int8(raw[i])))
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeMalformed, "unknown enum value %d", int8(raw[i])).WithRow(i)
		}
		out[i] = name
	}
	return out, nil
}

func (d *decoder) enum16(t chtype.Type, rows int) ([]Value, error) {
	raw, err := d.r.Fixed(rows * 2)
	if err != nil {
		return nil, err
	}
	out := make([]Value, rows)
	for i := 0; i < rows; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		name, ok := t.EnumName(v)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeMalformed, "unknown enum value %d", v).WithRow(i)
		}
		out[i] = name
	}
	return out, nil
}

// nullable reads a byte-per-row null bitmap, then the fully populated nested
// stream. Null rows still occupy space in the nested stream; their
// placeholder values are discarded here.
func (d *decoder) nullable(t chtype.Type, rows int, key string) ([]Value, error) {
	nulls, err := d.r.Fixed(rows)
	if err != nil {
		return nil, err
	}
	nested, err := d.decode(t.Inner(0), rows, key)
	if err != nil {
		return nil, err
	}
	out := make([]Value, rows)
	for i := 0; i < rows; i++ {
		if nulls[i] != 0 {
			out[i] = nil
		} else {
			out[i] = nested[i]
		}
	}
	return out, nil
}

// readOffsets reads rows cumulative UInt64 offsets and validates
// monotonicity. Non-monotonic offsets are rejected, never clamped.
func (d *decoder) readOffsets(rows int) ([]int, error) {
	raw, err := d.r.Fixed(rows * 8)
	if err != nil {
		return nil, err
	}
	offsets := make([]int, rows)
	var prev uint64
	for i := 0; i < rows; i++ {
		off := binary.LittleEndian.Uint64(raw[i*8 : (i+1)*8])
		if off < prev {
			return nil, errors.Newf(errors.ErrorTypeMalformed, "non-monotonic array offset %d after %d", off, prev).WithRow(i)
		}
		if off > math.MaxInt32 {
			return nil, errors.Newf(errors.ErrorTypeMalformed, "array offset %d exceeds sane block size", off).WithRow(i)
		}
		offsets[i] = int(off)
		prev = off
	}
	return offsets, nil
}

// array reads rows cumulative offsets, the flattened element column, then
// splits it back into per-row segments. A row whose offset repeats the
// previous one yields an empty (non-nil) sequence.
func (d *decoder) array(t chtype.Type, rows int, key string) ([]Value, error) {
	offsets, err := d.readOffsets(rows)
	if err != nil {
		return nil, err
	}
	total := 0
	if rows > 0 {
		total = offsets[rows-1]
	}
	elems, err := d.decode(t.Inner(0), total, key+".[]")
	if err != nil {
		return nil, err
	}
	out := make([]Value, rows)
	start := 0
	for i := 0; i < rows; i++ {
		end := offsets[i]
		row := make([]Value, end-start)
		copy(row, elems[start:end])
		out[i] = row
		start = end
	}
	return out, nil
}

// mapped reads Map(K, V), which is wire-identical to Array(Tuple(K, V)):
// offsets, the flattened key column, then the flattened value column.
func (d *decoder) mapped(t chtype.Type, rows int, key string) ([]Value, error) {
	offsets, err := d.readOffsets(rows)
	if err != nil {
		return nil, err
	}
	total := 0
	if rows > 0 {
		total = offsets[rows-1]
	}
	keys, err := d.decode(t.Inner(0), total, key+".key")
	if err != nil {
		return nil, err
	}
	vals, err := d.decode(t.Inner(1), total, key+".val")
	if err != nil {
		return nil, err
	}
	out := make([]Value, rows)
	start := 0
	for i := 0; i < rows; i++ {
		end := offsets[i]
		pairs := make([]KV, end-start)
		for j := start; j < end; j++ {
			pairs[j-start] = KV{Key: keys[j], Value: vals[j]}
		}
		out[i] = pairs
		start = end
	}
	return out, nil
}

// tuple reads each element column independently, back to back, each over all
// rows, then zips them into per-row tuples.
func (d *decoder) tuple(t chtype.Type, rows int, key string) ([]Value, error) {
	args := t.Args()
	columns := make([][]Value, len(args))
	for i, arg := range args {
		col, err := d.decode(arg, rows, key+"."+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}
	out := make([]Value, rows)
	for i := 0; i < rows; i++ {
		elems := make([]Value, len(args))
		for j := range args {
			elems[j] = columns[j][i]
		}
		out[i] = elems
	}
	return out, nil
}

// lowCardinality is the stateful case: a header, an optional dictionary
// section, then per-row indices resolved through the stream's retained
// dictionary.
func (d *decoder) lowCardinality(t chtype.Type, rows int, key string) ([]Value, error) {
	if rows == 0 {
		return []Value{}, nil
	}

	keyVersion, err := d.r.UInt64()
	if err != nil {
		return nil, err
	}
	if keyVersion != lcKeyVersion {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "unsupported low cardinality key version %d", keyVersion)
	}

	meta, err := d.r.UInt64()
	if err != nil {
		return nil, err
	}
	width := meta & 0xff
	if width > lcWidthUInt64 {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "invalid low cardinality index width selector %d", width)
	}

	// The dictionary update is staged in entries and committed to the state
	// only after the whole column decodes, so a truncated or corrupt column
	// leaves the retained dictionary untouched and a retry cannot apply the
	// same additional keys twice.
	dict, hasDict := d.state.lookup(key)
	var entries []Value
	if hasDict {
		entries = dict.values
	}
	if meta&(lcHasAdditionalKeys|lcNeedsUpdate) != 0 {
		size, err := d.r.Int64()
		if err != nil {
			return nil, err
		}
		if size < 0 || size > maxDictionarySize {
			return nil, errors.Newf(errors.ErrorTypeMalformed, "invalid dictionary size %d", size)
		}
		values, err := d.decode(t.Inner(0), int(size), key+".dict")
		if err != nil {
			return nil, err
		}
		if meta&lcNeedsUpdate != 0 || !hasDict {
			// Fresh dictionary for this stream position.
			entries = values
		} else {
			// Additional keys extend the retained dictionary; it only grows.
			combined := make([]Value, 0, len(entries)+len(values))
			combined = append(combined, entries...)
			combined = append(combined, values...)
			entries = combined
		}
	} else if !hasDict {
		// Indices with no dictionary ever provided: either corruption or
		// blocks decoded out of order.
		return nil, errors.New(errors.ErrorTypeDictionary, "low cardinality indices without a dictionary; blocks decoded out of order?")
	}

	keysCount, err := d.r.Int64()
	if err != nil {
		return nil, err
	}
	if keysCount != int64(rows) {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "low cardinality keys count %d does not match row count %d", keysCount, rows)
	}

	indices, err := d.readIndices(rows, int(width))
	if err != nil {
		return nil, err
	}
	out := make([]Value, rows)
	for i, idx := range indices {
		if idx >= uint64(len(entries)) {
			return nil, errors.Newf(errors.ErrorTypeDictionary, "dictionary index %d out of range (dictionary has %d entries)", idx, len(entries)).WithRow(i)
		}
		out[i] = entries[idx]
	}
	d.state.replace(key, entries)
	return out, nil
}

func (d *decoder) readIndices(rows, width int) ([]uint64, error) {
	size := 1 << width
	raw, err := d.r.Fixed(rows * size)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, rows)
	for i := 0; i < rows; i++ {
		b := raw[i*size : (i+1)*size]
		switch width {
		case lcWidthUInt8:
			out[i] = uint64(b[0])
		case lcWidthUInt16:
			out[i] = uint64(binary.LittleEndian.Uint16(b))
		case lcWidthUInt32:
			out[i] = uint64(binary.LittleEndian.Uint32(b))
		default:
			out[i] = binary.LittleEndian.Uint64(b)
		}
	}
	return out, nil
}
