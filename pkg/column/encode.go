package column

import (
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/chnative/pkg/chtype"
	"github.com/ajitpratap0/chnative/pkg/errors"
	"github.com/ajitpratap0/chnative/pkg/wire"
)

// Encode appends the wire encoding of values, a full column of type t, to w.
//
// The whole column is validated against t before any bytes are written, so a
// shape mismatch never leaves a partial encoding behind.
func Encode(w *wire.Writer, t chtype.Type, values []Value) error {
	if err := Validate(t, values); err != nil {
		return err
	}
	e := &encoder{w: w}
	e.encode(t, values)
	return nil
}

// Validate checks that every value matches the shape demanded by t. It is
// called by Encode; exposing it separately lets callers vet insert payloads
// up front.
func Validate(t chtype.Type, values []Value) error {
	for i, v := range values {
		if err := validateValue(t, v); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTypeMismatch, "row "+strconv.Itoa(i)).WithRow(i)
		}
	}
	return nil
}

func validateValue(t chtype.Type, v Value) error {
	switch t.Kind() {
	case chtype.KindUInt8:
		return wantType[uint8](t, v)
	case chtype.KindUInt16:
		return wantType[uint16](t, v)
	case chtype.KindUInt32:
		return wantType[uint32](t, v)
	case chtype.KindUInt64:
		return wantType[uint64](t, v)
	case chtype.KindInt8:
		return wantType[int8](t, v)
	case chtype.KindInt16:
		return wantType[int16](t, v)
	case chtype.KindInt32, chtype.KindDecimal32:
		return wantType[int32](t, v)
	case chtype.KindInt64, chtype.KindDecimal64:
		return wantType[int64](t, v)
	case chtype.KindFloat32:
		return wantType[float32](t, v)
	case chtype.KindFloat64:
		return wantType[float64](t, v)
	case chtype.KindBool:
		return wantType[bool](t, v)
	case chtype.KindString:
		return wantType[string](t, v)
	case chtype.KindFixedString:
		b, ok := v.([]byte)
		if !ok {
			return shapeError(t, v)
		}
		if len(b) > t.FixedLen() {
			return errors.Newf(errors.ErrorTypeTypeMismatch, "FixedString(%d) value is %d bytes", t.FixedLen(), len(b))
		}
		return nil
	case chtype.KindDate:
		tv, ok := v.(time.Time)
		if !ok {
			return shapeError(t, v)
		}
		days := tv.Unix() / 86400
		if days < 0 || days > math.MaxUint16 {
			return errors.Newf(errors.ErrorTypeTypeMismatch, "Date value %s outside representable range", tv)
		}
		return nil
	case chtype.KindDateTime:
		tv, ok := v.(time.Time)
		if !ok {
			return shapeError(t, v)
		}
		if tv.Unix() < 0 || tv.Unix() > math.MaxUint32 {
			return errors.Newf(errors.ErrorTypeTypeMismatch, "DateTime value %s outside representable range", tv)
		}
		return nil
	case chtype.KindDateTime64:
		return wantType[time.Time](t, v)
	case chtype.KindUUID:
		return wantType[uuid.UUID](t, v)
	case chtype.KindDecimal128:
		b, ok := v.(*big.Int)
		if !ok || b == nil {
			return shapeError(t, v)
		}
		if b.Cmp(decimal128Min) < 0 || b.Cmp(decimal128Max) > 0 {
			return errors.Newf(errors.ErrorTypeTypeMismatch, "value %s does not fit in Decimal128", b.String())
		}
		return nil
	case chtype.KindEnum8, chtype.KindEnum16:
		name, ok := v.(string)
		if !ok {
			return shapeError(t, v)
		}
		if _, ok := t.EnumValue(name); !ok {
			return errors.Newf(errors.ErrorTypeTypeMismatch, "name %q is not declared by %s", name, t.String())
		}
		return nil
	case chtype.KindNullable:
		if v == nil {
			return nil
		}
		return validateValue(t.Inner(0), v)
	case chtype.KindArray:
		elems, ok := v.([]Value)
		if !ok {
			return shapeError(t, v)
		}
		for _, e := range elems {
			if err := validateValue(t.Inner(0), e); err != nil {
				return err
			}
		}
		return nil
	case chtype.KindMap:
		pairs, ok := v.([]KV)
		if !ok {
			return shapeError(t, v)
		}
		for _, p := range pairs {
			if err := validateValue(t.Inner(0), p.Key); err != nil {
				return err
			}
			if err := validateValue(t.Inner(1), p.Value); err != nil {
				return err
			}
		}
		return nil
	case chtype.KindTuple:
		elems, ok := v.([]Value)
		if !ok {
			return shapeError(t, v)
		}
		if len(elems) != len(t.Args()) {
			return errors.Newf(errors.ErrorTypeTypeMismatch, "tuple arity %d, want %d", len(elems), len(t.Args()))
		}
		for i, arg := range t.Args() {
			if err := validateValue(arg, elems[i]); err != nil {
				return err
			}
		}
		return nil
	case chtype.KindLowCardinality:
		return validateValue(t.Inner(0), v)
	default:
		return errors.Newf(errors.ErrorTypeUnknownType, "cannot encode type %s", t.String())
	}
}

func wantType[T any](t chtype.Type, v Value) error {
	if _, ok := v.(T); !ok {
		return shapeError(t, v)
	}
	return nil
}

func shapeError(t chtype.Type, v Value) error {
	return errors.Newf(errors.ErrorTypeTypeMismatch, "cannot encode %T into %s", v, t.String())
}

type encoder struct {
	w *wire.Writer
}

// encode assumes values already passed Validate; assertions are unchecked.
func (e *encoder) encode(t chtype.Type, values []Value) {
	switch t.Kind() {
	case chtype.KindUInt8:
		for _, v := range values {
			e.w.UInt8(v.(uint8))
		}
	case chtype.KindUInt16:
		for _, v := range values {
			e.w.UInt16(v.(uint16))
		}
	case chtype.KindUInt32:
		for _, v := range values {
			e.w.UInt32(v.(uint32))
		}
	case chtype.KindUInt64:
		for _, v := range values {
			e.w.UInt64(v.(uint64))
		}
	case chtype.KindInt8:
		for _, v := range values {
			e.w.Int8(v.(int8))
		}
	case chtype.KindInt16:
		for _, v := range values {
			e.w.Int16(v.(int16))
		}
	case chtype.KindInt32, chtype.KindDecimal32:
		for _, v := range values {
			e.w.Int32(v.(int32))
		}
	case chtype.KindInt64, chtype.KindDecimal64:
		for _, v := range values {
			e.w.Int64(v.(int64))
		}
	case chtype.KindFloat32:
		for _, v := range values {
			e.w.Float32(v.(float32))
		}
	case chtype.KindFloat64:
		for _, v := range values {
			e.w.Float64(v.(float64))
		}
	case chtype.KindBool:
		for _, v := range values {
			e.w.Bool(v.(bool))
		}
	case chtype.KindString:
		for _, v := range values {
			e.w.String(v.(string))
		}
	case chtype.KindFixedString:
		n := t.FixedLen()
		for _, v := range values {
			b := v.([]byte)
			e.w.Fixed(b)
			for pad := len(b); pad < n; pad++ {
				e.w.UInt8(0)
			}
		}
	case chtype.KindDate:
		for _, v := range values {
			e.w.UInt16(uint16(v.(time.Time).Unix() / 86400))
		}
	case chtype.KindDateTime:
		for _, v := range values {
			e.w.UInt32(uint32(v.(time.Time).Unix()))
		}
	case chtype.KindDateTime64:
		ticksPerSecond := pow10[t.Precision()]
		nsPerTick := pow10[9-t.Precision()]
		for _, v := range values {
			tv := v.(time.Time)
			ticks := tv.Unix()*ticksPerSecond + int64(tv.Nanosecond())/nsPerTick
			e.w.Int64(ticks)
		}
	case chtype.KindUUID:
		for _, v := range values {
			e.encodeUUID(v.(uuid.UUID))
		}
	case chtype.KindDecimal128:
		for _, v := range values {
			// Range was validated; conversion cannot fail here.
			b, _ := decimal128ToWire(v.(*big.Int))
			e.w.Fixed(b)
		}
	case chtype.KindEnum8:
		for _, v := range values {
			ev, _ := t.EnumValue(v.(string))
			e.w.Int8(int8(ev))
		}
	case chtype.KindEnum16:
		for _, v := range values {
			ev, _ := t.EnumValue(v.(string))
			e.w.Int16(ev)
		}
	case chtype.KindNullable:
		e.nullable(t, values)
	case chtype.KindArray:
		e.array(t, values)
	case chtype.KindMap:
		e.mapped(t, values)
	case chtype.KindTuple:
		e.tuple(t, values)
	case chtype.KindLowCardinality:
		e.lowCardinality(t, values)
	}
}

// encodeUUID writes the two UInt64 halves: the high word carries the first
// three hyphen groups of the canonical form, the low word the last two.
func (e *encoder) encodeUUID(u uuid.UUID) {
	hi := uint64(u[0])<<56 | uint64(u[1])<<48 | uint64(u[2])<<40 | uint64(u[3])<<32 |
		uint64(u[4])<<24 | uint64(u[5])<<16 | uint64(u[6])<<8 | uint64(u[7])
	lo := uint64(u[8])<<56 | uint64(u[9])<<48 | uint64(u[10])<<40 | uint64(u[11])<<32 |
		uint64(u[12])<<24 | uint64(u[13])<<16 | uint64(u[14])<<8 | uint64(u[15])
	e.w.UInt64(hi)
	e.w.UInt64(lo)
}

// nullable writes the null bitmap, then the fully populated nested stream
// with placeholders standing in for null rows.
func (e *encoder) nullable(t chtype.Type, values []Value) {
	inner := t.Inner(0)
	for _, v := range values {
		if v == nil {
			e.w.UInt8(1)
		} else {
			e.w.UInt8(0)
		}
	}
	nested := make([]Value, len(values))
	placeholder := zeroValue(inner)
	for i, v := range values {
		if v == nil {
			nested[i] = placeholder
		} else {
			nested[i] = v
		}
	}
	e.encode(inner, nested)
}

func (e *encoder) array(t chtype.Type, values []Value) {
	var flattened []Value
	var total uint64
	for _, v := range values {
		elems := v.([]Value)
		total += uint64(len(elems))
		e.w.UInt64(total)
		flattened = append(flattened, elems...)
	}
	e.encode(t.Inner(0), flattened)
}

// mapped writes Map(K, V) wire-identically to Array(Tuple(K, V)).
func (e *encoder) mapped(t chtype.Type, values []Value) {
	var keys, vals []Value
	var total uint64
	for _, v := range values {
		pairs := v.([]KV)
		total += uint64(len(pairs))
		e.w.UInt64(total)
		for _, p := range pairs {
			keys = append(keys, p.Key)
			vals = append(vals, p.Value)
		}
	}
	e.encode(t.Inner(0), keys)
	e.encode(t.Inner(1), vals)
}

func (e *encoder) tuple(t chtype.Type, values []Value) {
	for i, arg := range t.Args() {
		col := make([]Value, len(values))
		for j, v := range values {
			col[j] = v.([]Value)[i]
		}
		e.encode(arg, col)
	}
}

// lowCardinality builds the dictionary for this column, always advertising a
// fresh dictionary with additional keys, the way every known writer does.
func (e *encoder) lowCardinality(t chtype.Type, values []Value) {
	if len(values) == 0 {
		return
	}
	inner := t.Inner(0)

	// Dictionary membership is keyed by each value's own wire encoding, so
	// non-comparable inner values (arrays, tuples) work too.
	seen := make(map[string]int)
	var dictValues []Value
	indices := make([]int, len(values))
	scratch := wire.NewWriter(32)
	sub := &encoder{w: scratch}
	for i, v := range values {
		scratch.Reset()
		sub.encode(inner, []Value{v})
		fp := string(scratch.Bytes())
		idx, ok := seen[fp]
		if !ok {
			idx = len(dictValues)
			seen[fp] = idx
			dictValues = append(dictValues, v)
		}
		indices[i] = idx
	}

	var width uint64
	switch {
	case len(dictValues) <= math.MaxUint8+1:
		width = lcWidthUInt8
	case len(dictValues) <= math.MaxUint16+1:
		width = lcWidthUInt16
	case int64(len(dictValues)) <= math.MaxUint32+1:
		width = lcWidthUInt32
	default:
		width = lcWidthUInt64
	}

	e.w.UInt64(lcKeyVersion)
	e.w.UInt64(lcUpdateAll | width)
	e.w.Int64(int64(len(dictValues)))
	e.encode(inner, dictValues)
	e.w.Int64(int64(len(values)))
	for _, idx := range indices {
		switch width {
		case lcWidthUInt8:
			e.w.UInt8(uint8(idx))
		case lcWidthUInt16:
			e.w.UInt16(uint16(idx))
		case lcWidthUInt32:
			e.w.UInt32(uint32(idx))
		default:
			e.w.UInt64(uint64(idx))
		}
	}
}
