package chtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chnative/pkg/errors"
)

func mustParse(t *testing.T, s string) Type {
	t.Helper()
	typ, err := Parse(s)
	require.NoError(t, err, "parse %q", s)
	return typ
}

func TestParseLeaves(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
	}{
		{"UInt8", KindUInt8},
		{"UInt16", KindUInt16},
		{"UInt32", KindUInt32},
		{"UInt64", KindUInt64},
		{"Int8", KindInt8},
		{"Int16", KindInt16},
		{"Int32", KindInt32},
		{"Int64", KindInt64},
		{"Float32", KindFloat32},
		{"Float64", KindFloat64},
		{"String", KindString},
		{"Date", KindDate},
		{"DateTime", KindDateTime},
		{"UUID", KindUUID},
		{"Bool", KindBool},
	}

	for _, tt := range tests {
		typ := mustParse(t, tt.in)
		assert.Equal(t, tt.kind, typ.Kind())
		assert.Equal(t, tt.in, typ.String())
	}
}

func TestParseParameterizedLeaves(t *testing.T) {
	fs := mustParse(t, "FixedString(16)")
	assert.Equal(t, KindFixedString, fs.Kind())
	assert.Equal(t, 16, fs.FixedLen())

	dt := mustParse(t, "DateTime64(3)")
	assert.Equal(t, KindDateTime64, dt.Kind())
	assert.Equal(t, 3, dt.Precision())

	// Timezone arguments are accepted and ignored.
	dtz := mustParse(t, "DateTime64(6, 'Europe/Berlin')")
	assert.Equal(t, 6, dtz.Precision())
	_ = mustParse(t, "DateTime('UTC')")

	d32 := mustParse(t, "Decimal32(4)")
	assert.Equal(t, KindDecimal32, d32.Kind())
	assert.Equal(t, 4, d32.Scale())

	d64 := mustParse(t, "Decimal64(10)")
	assert.Equal(t, KindDecimal64, d64.Kind())

	d128 := mustParse(t, "Decimal128(20)")
	assert.Equal(t, KindDecimal128, d128.Kind())
}

func TestParseGenericDecimal(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
	}{
		{"Decimal(9, 4)", KindDecimal32},
		{"Decimal(18, 4)", KindDecimal64},
		{"Decimal(38, 10)", KindDecimal128},
	}
	for _, tt := range tests {
		typ := mustParse(t, tt.in)
		assert.Equal(t, tt.kind, typ.Kind(), tt.in)
	}

	_, err := Parse("Decimal(76, 10)")
	assert.Error(t, err)
}

func TestParseNested(t *testing.T) {
	typ := mustParse(t, "Array(Nullable(String))")
	assert.Equal(t, KindArray, typ.Kind())
	assert.Equal(t, KindNullable, typ.Inner(0).Kind())
	assert.Equal(t, KindString, typ.Inner(0).Inner(0).Kind())
	assert.Equal(t, "Array(Nullable(String))", typ.String())

	m := mustParse(t, "Map(LowCardinality(String), UInt64)")
	assert.Equal(t, KindMap, m.Kind())
	assert.Equal(t, KindLowCardinality, m.Inner(0).Kind())
	assert.Equal(t, KindUInt64, m.Inner(1).Kind())

	tu := mustParse(t, "Tuple(UInt8, Tuple(String, Array(UInt32)), Float64)")
	assert.Equal(t, KindTuple, tu.Kind())
	require.Len(t, tu.Args(), 3)
	assert.Equal(t, KindTuple, tu.Inner(1).Kind())
}

func TestParseDeepNesting(t *testing.T) {
	typ := mustParse(t, "Array(Array(Array(Array(UInt64))))")
	depth := 0
	for typ.Kind() == KindArray {
		typ = typ.Inner(0)
		depth++
	}
	assert.Equal(t, 4, depth)
	assert.Equal(t, KindUInt64, typ.Kind())
}

func TestParseEnum(t *testing.T) {
	typ := mustParse(t, "Enum8('a' = 1, 'b' = 2)")
	assert.Equal(t, KindEnum8, typ.Kind())
	name, ok := typ.EnumName(2)
	require.True(t, ok)
	assert.Equal(t, "b", name)
	v, ok := typ.EnumValue("a")
	require.True(t, ok)
	assert.Equal(t, int16(1), v)

	_, ok = typ.EnumName(3)
	assert.False(t, ok)

	assert.Equal(t, "Enum8('a' = 1, 'b' = 2)", typ.String())
}

func TestParseEnumCommaAndEscapesInLiterals(t *testing.T) {
	typ := mustParse(t, `Enum16('a,b' = 1, 'c(d' = 2, 'e\'f' = 3)`)
	pairs := typ.EnumPairs()
	require.Len(t, pairs, 3)
	assert.Equal(t, "a,b", pairs[0].Name)
	assert.Equal(t, "c(d", pairs[1].Name)
	assert.Equal(t, "e'f", pairs[2].Name)
}

func TestParseEnumInsideMap(t *testing.T) {
	typ := mustParse(t, "Map(String, Enum8('x, y' = 1, 'z' = 2))")
	assert.Equal(t, KindMap, typ.Kind())
	pairs := typ.Inner(1).EnumPairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, "x, y", pairs[0].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		in      string
		errType errors.ErrorType
	}{
		{"", errors.ErrorTypeUnknownType},
		{"Foo", errors.ErrorTypeUnknownType},
		{"Array(Foo)", errors.ErrorTypeUnknownType},
		{"UInt8(1)", errors.ErrorTypeUnknownType},
		{"Array(", errors.ErrorTypeUnknownType},
		{"Nullable(Nullable(UInt8))", errors.ErrorTypeValidation},
		{"Enum8('a' 1)", errors.ErrorTypeValidation},
		{"Enum8('a' = x)", errors.ErrorTypeValidation},
		{"Enum8('a = 1)", errors.ErrorTypeValidation},
		{"Enum8('a' = 1, 'a' = 2)", errors.ErrorTypeValidation},
		{"Enum8('a' = 1000)", errors.ErrorTypeValidation},
		{"FixedString(0)", errors.ErrorTypeValidation},
		{"DateTime64(12)", errors.ErrorTypeValidation},
		{"Map(String)", errors.ErrorTypeUnknownType},
	}

	for _, tt := range tests {
		_, err := Parse(tt.in)
		require.Error(t, err, "parse %q", tt.in)
		assert.True(t, errors.IsType(err, tt.errType), "parse %q: got %v", tt.in, err)
	}
}

func TestDoubleNullableRejectedAtConstruction(t *testing.T) {
	inner, err := Nullable(String())
	require.NoError(t, err)
	_, err = Nullable(inner)
	assert.Error(t, err)
}

func TestStructuralEquality(t *testing.T) {
	a := mustParse(t, "Map(LowCardinality(String),Array(Nullable(UInt64)))")
	b := mustParse(t, "Map( LowCardinality( String ) , Array( Nullable( UInt64 ) ) )")
	assert.True(t, a.Equal(b))

	c := mustParse(t, "Map(LowCardinality(String), Array(Nullable(UInt32)))")
	assert.False(t, a.Equal(c))

	e1 := mustParse(t, "Enum8('a' = 1, 'b' = 2)")
	e2 := mustParse(t, "Enum8('a'=1,'b'=2)")
	e3 := mustParse(t, "Enum8('a' = 1, 'b' = 3)")
	assert.True(t, e1.Equal(e2))
	assert.False(t, e1.Equal(e3))
}

func TestCanonicalRenderingRoundtrips(t *testing.T) {
	inputs := []string{
		"Array(Nullable(String))",
		"Map(LowCardinality(String), UInt64)",
		"Tuple(UInt8, String)",
		"Enum8('small' = 1, 'large' = 3)",
		"DateTime64(3)",
		"Decimal64(8)",
		"FixedString(32)",
		"Array(Array(Array(Array(UInt64))))",
	}
	for _, in := range inputs {
		typ := mustParse(t, in)
		again := mustParse(t, typ.String())
		assert.True(t, typ.Equal(again), "canonical form %q of %q did not reparse equal", typ.String(), in)
	}
}
