// Package chtype models ClickHouse column types as a closed, recursively
// defined descriptor. A descriptor is constructed once, when a column's type
// is declared or parsed off the wire, and is immutable and shareable
// afterwards.
//
// Equality is structural: two descriptors parsed from differently formatted
// type strings compare equal when they describe the same type.
package chtype

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/chnative/pkg/errors"
)

// Kind identifies the variant of a type descriptor.
type Kind int

const (
	KindUInt8 Kind = iota
	KindUInt16
	KindUInt32
	KindUInt64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindFixedString
	KindDate
	KindDateTime
	KindDateTime64
	KindUUID
	KindDecimal32
	KindDecimal64
	KindDecimal128
	KindBool
	KindNullable
	KindArray
	KindLowCardinality
	KindMap
	KindTuple
	KindEnum8
	KindEnum16
)

var kindNames = map[Kind]string{
	KindUInt8:          "UInt8",
	KindUInt16:         "UInt16",
	KindUInt32:         "UInt32",
	KindUInt64:         "UInt64",
	KindInt8:           "Int8",
	KindInt16:          "Int16",
	KindInt32:          "Int32",
	KindInt64:          "Int64",
	KindFloat32:        "Float32",
	KindFloat64:        "Float64",
	KindString:         "String",
	KindFixedString:    "FixedString",
	KindDate:           "Date",
	KindDateTime:       "DateTime",
	KindDateTime64:     "DateTime64",
	KindUUID:           "UUID",
	KindDecimal32:      "Decimal32",
	KindDecimal64:      "Decimal64",
	KindDecimal128:     "Decimal128",
	KindBool:           "Bool",
	KindNullable:       "Nullable",
	KindArray:          "Array",
	KindLowCardinality: "LowCardinality",
	KindMap:            "Map",
	KindTuple:          "Tuple",
	KindEnum8:          "Enum8",
	KindEnum16:         "Enum16",
}

// EnumPair associates an enum name with its wire integer. The value fits in
// int16 for both Enum8 and Enum16; Enum8 constructors reject values outside
// the int8 range.
type EnumPair struct {
	Name  string
	Value int16
}

// Type is a recursive ClickHouse type descriptor. The zero value is invalid;
// build descriptors through the constructors or Parse.
type Type struct {
	kind Kind
	args []Type
	n    int        // FixedString length, DateTime64 precision, Decimal scale
	enum []EnumPair // Enum8/Enum16 name=value pairs, declaration order
}

// Kind returns the descriptor's variant.
func (t Type) Kind() Kind {
	return t.kind
}

// Inner returns the i-th nested descriptor of a wrapper type. It panics on
// leaf types, matching slice indexing of Args.
func (t Type) Inner(i int) Type {
	return t.args[i]
}

// Args returns the nested descriptors of a wrapper type, nil for leaves. The
// returned slice must not be mutated.
func (t Type) Args() []Type {
	return t.args
}

// FixedLen returns the byte width of a FixedString descriptor.
func (t Type) FixedLen() int {
	return t.n
}

// Precision returns the sub-second precision of a DateTime64 descriptor.
func (t Type) Precision() int {
	return t.n
}

// Scale returns the scale of a Decimal descriptor.
func (t Type) Scale() int {
	return t.n
}

// EnumPairs returns the declared pairs of an Enum descriptor in declaration
// order. The returned slice must not be mutated.
func (t Type) EnumPairs() []EnumPair {
	return t.enum
}

// EnumName resolves a wire integer to its declared name.
func (t Type) EnumName(v int16) (string, bool) {
	for _, p := range t.enum {
		if p.Value == v {
			return p.Name, true
		}
	}
	return "", false
}

// EnumValue resolves a declared name to its wire integer.
func (t Type) EnumValue(name string) (int16, bool) {
	for _, p := range t.enum {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}

// simple constructs a parameterless leaf descriptor.
func simple(k Kind) Type {
	return Type{kind: k}
}

// UInt8 returns the UInt8 descriptor.
func UInt8() Type { return simple(KindUInt8) }

// UInt16 returns the UInt16 descriptor.
func UInt16() Type { return simple(KindUInt16) }

// UInt32 returns the UInt32 descriptor.
func UInt32() Type { return simple(KindUInt32) }

// UInt64 returns the UInt64 descriptor.
func UInt64() Type { return simple(KindUInt64) }

// Int8 returns the Int8 descriptor.
func Int8() Type { return simple(KindInt8) }

// Int16 returns the Int16 descriptor.
func Int16() Type { return simple(KindInt16) }

// Int32 returns the Int32 descriptor.
func Int32() Type { return simple(KindInt32) }

// Int64 returns the Int64 descriptor.
func Int64() Type { return simple(KindInt64) }

// Float32 returns the Float32 descriptor.
func Float32() Type { return simple(KindFloat32) }

// Float64 returns the Float64 descriptor.
func Float64() Type { return simple(KindFloat64) }

// String returns the String descriptor.
func String() Type { return simple(KindString) }

// Date returns the Date descriptor (UInt16 days since 1970-01-01).
func Date() Type { return simple(KindDate) }

// DateTime returns the DateTime descriptor (UInt32 seconds since epoch).
func DateTime() Type { return simple(KindDateTime) }

// UUID returns the UUID descriptor.
func UUID() Type { return simple(KindUUID) }

// Bool returns the Bool descriptor.
func Bool() Type { return simple(KindBool) }

// FixedString returns a FixedString(n) descriptor. n must be positive.
func FixedString(n int) (Type, error) {
	if n <= 0 {
		return Type{}, errors.Newf(errors.ErrorTypeValidation, "FixedString length must be positive, got %d", n)
	}
	return Type{kind: KindFixedString, n: n}, nil
}

// DateTime64 returns a DateTime64(precision) descriptor. Precision is the
// base-10 exponent of ticks per second and must be within [0, 9].
func DateTime64(precision int) (Type, error) {
	if precision < 0 || precision > 9 {
		return Type{}, errors.Newf(errors.ErrorTypeValidation, "DateTime64 precision must be within [0, 9], got %d", precision)
	}
	return Type{kind: KindDateTime64, n: precision}, nil
}

// Decimal32 returns a Decimal32(scale) descriptor.
func Decimal32(scale int) (Type, error) {
	return decimal(KindDecimal32, scale, 9)
}

// Decimal64 returns a Decimal64(scale) descriptor.
func Decimal64(scale int) (Type, error) {
	return decimal(KindDecimal64, scale, 18)
}

// Decimal128 returns a Decimal128(scale) descriptor.
func Decimal128(scale int) (Type, error) {
	return decimal(KindDecimal128, scale, 38)
}

func decimal(k Kind, scale, maxScale int) (Type, error) {
	if scale < 0 || scale > maxScale {
		return Type{}, errors.Newf(errors.ErrorTypeValidation, "%s scale must be within [0, %d], got %d", kindNames[k], maxScale, scale)
	}
	return Type{kind: k, n: scale}, nil
}

// Nullable wraps inner with a null bitmap. ClickHouse forbids
// Nullable(Nullable(T)); that shape is rejected here, at construction.
func Nullable(inner Type) (Type, error) {
	if inner.kind == KindNullable {
		return Type{}, errors.New(errors.ErrorTypeValidation, "Nullable cannot wrap another Nullable")
	}
	return Type{kind: KindNullable, args: []Type{inner}}, nil
}

// Array returns an Array(inner) descriptor.
func Array(inner Type) Type {
	return Type{kind: KindArray, args: []Type{inner}}
}

// LowCardinality returns a LowCardinality(inner) descriptor. Any inner type
// the codec can represent is accepted.
func LowCardinality(inner Type) Type {
	return Type{kind: KindLowCardinality, args: []Type{inner}}
}

// Map returns a Map(key, value) descriptor.
func Map(key, value Type) Type {
	return Type{kind: KindMap, args: []Type{key, value}}
}

// Tuple returns a Tuple(elems...) descriptor. At least one element is
// required.
func Tuple(elems ...Type) (Type, error) {
	if len(elems) == 0 {
		return Type{}, errors.New(errors.ErrorTypeValidation, "Tuple requires at least one element")
	}
	args := make([]Type, len(elems))
	copy(args, elems)
	return Type{kind: KindTuple, args: args}, nil
}

// Enum8 returns an Enum8 descriptor over the given pairs. Names must be
// unique, values must be unique and fit in int8.
func Enum8(pairs []EnumPair) (Type, error) {
	if err := validateEnum(pairs, -128, 127); err != nil {
		return Type{}, err
	}
	return Type{kind: KindEnum8, enum: copyPairs(pairs)}, nil
}

// Enum16 returns an Enum16 descriptor over the given pairs. Names and values
// must be unique.
func Enum16(pairs []EnumPair) (Type, error) {
	if err := validateEnum(pairs, -32768, 32767); err != nil {
		return Type{}, err
	}
	return Type{kind: KindEnum16, enum: copyPairs(pairs)}, nil
}

func copyPairs(pairs []EnumPair) []EnumPair {
	out := make([]EnumPair, len(pairs))
	copy(out, pairs)
	return out
}

func validateEnum(pairs []EnumPair, min, max int16) error {
	if len(pairs) == 0 {
		return errors.New(errors.ErrorTypeValidation, "enum requires at least one name=value pair")
	}
	names := make(map[string]struct{}, len(pairs))
	values := make(map[int16]struct{}, len(pairs))
	for _, p := range pairs {
		if p.Value < min || p.Value > max {
			return errors.Newf(errors.ErrorTypeValidation, "enum value %d out of range [%d, %d]", p.Value, min, max)
		}
		if _, dup := names[p.Name]; dup {
			return errors.Newf(errors.ErrorTypeValidation, "duplicate enum name %q", p.Name)
		}
		if _, dup := values[p.Value]; dup {
			return errors.Newf(errors.ErrorTypeValidation, "duplicate enum value %d", p.Value)
		}
		names[p.Name] = struct{}{}
		values[p.Value] = struct{}{}
	}
	return nil
}

// String renders the canonical wire name of the type, the form sent to the
// server when declaring insert columns.
func (t Type) String() string {
	var b strings.Builder
	t.writeName(&b)
	return b.String()
}

func (t Type) writeName(b *strings.Builder) {
	b.WriteString(kindNames[t.kind])
	switch t.kind {
	case KindFixedString, KindDateTime64, KindDecimal32, KindDecimal64, KindDecimal128:
		b.WriteByte('(')
		b.WriteString(strconv.Itoa(t.n))
		b.WriteByte(')')
	case KindNullable, KindArray, KindLowCardinality, KindMap, KindTuple:
		b.WriteByte('(')
		for i, arg := range t.args {
			if i > 0 {
				b.WriteString(", ")
			}
			arg.writeName(b)
		}
		b.WriteByte(')')
	case KindEnum8, KindEnum16:
		b.WriteByte('(')
		for i, p := range t.enum {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('\'')
			b.WriteString(escapeEnumName(p.Name))
			b.WriteString("' = ")
			b.WriteString(strconv.Itoa(int(p.Value)))
		}
		b.WriteByte(')')
	}
}

func escapeEnumName(name string) string {
	if !strings.ContainsAny(name, `\'`) {
		return name
	}
	var b strings.Builder
	for _, r := range name {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Equal reports structural equality.
func (t Type) Equal(other Type) bool {
	if t.kind != other.kind || t.n != other.n {
		return false
	}
	if len(t.args) != len(other.args) || len(t.enum) != len(other.enum) {
		return false
	}
	for i := range t.args {
		if !t.args[i].Equal(other.args[i]) {
			return false
		}
	}
	for i := range t.enum {
		if t.enum[i] != other.enum[i] {
			return false
		}
	}
	return true
}
