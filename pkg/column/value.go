package column

import (
	"math/big"

	"github.com/google/uuid"

	"github.com/ajitpratap0/chnative/pkg/chtype"
	"github.com/ajitpratap0/chnative/pkg/errors"
)

// Value is one cell of a column. Its dynamic type follows the column's type
// descriptor; see the package documentation for the full mapping.
type Value = interface{}

// KV is one ordered key-value pair of a Map value.
type KV struct {
	Key   Value
	Value Value
}

// pow10 has the powers of ten addressable by a DateTime64 precision or a
// nanosecond remainder exponent.
var pow10 = [10]int64{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000, 1000000000}

var (
	decimal128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	decimal128Min = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	two128        = new(big.Int).Lsh(big.NewInt(1), 128)
)

// decimal128FromWire interprets 16 little-endian bytes as a signed 128-bit
// two's complement integer.
func decimal128FromWire(b []byte) *big.Int {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = b[15-i]
	}
	v := new(big.Int).SetBytes(be)
	if b[15]&0x80 != 0 {
		v.Sub(v, two128)
	}
	return v
}

// decimal128ToWire renders v as 16 little-endian two's complement bytes.
func decimal128ToWire(v *big.Int) ([]byte, error) {
	if v.Cmp(decimal128Min) < 0 || v.Cmp(decimal128Max) > 0 {
		return nil, errors.Newf(errors.ErrorTypeTypeMismatch, "value %s does not fit in Decimal128", v.String())
	}
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, two128)
	}
	be := make([]byte, 16)
	u.FillBytes(be)
	le := make([]byte, 16)
	for i := 0; i < 16; i++ {
		le[i] = be[15-i]
	}
	return le, nil
}

// zeroValue returns the placeholder written into a nested stream for null
// rows of a Nullable column. The placeholder occupies wire space but is
// ignorable on decode.
func zeroValue(t chtype.Type) Value {
	switch t.Kind() {
	case chtype.KindUInt8:
		return uint8(0)
	case chtype.KindUInt16:
		return uint16(0)
	case chtype.KindUInt32:
		return uint32(0)
	case chtype.KindUInt64:
		return uint64(0)
	case chtype.KindInt8:
		return int8(0)
	case chtype.KindInt16:
		return int16(0)
	case chtype.KindInt32:
		return int32(0)
	case chtype.KindInt64:
		return int64(0)
	case chtype.KindFloat32:
		return float32(0)
	case chtype.KindFloat64:
		return float64(0)
	case chtype.KindString:
		return ""
	case chtype.KindFixedString:
		return make([]byte, t.FixedLen())
	case chtype.KindBool:
		return false
	case chtype.KindDate, chtype.KindDateTime, chtype.KindDateTime64:
		return epoch
	case chtype.KindUUID:
		return uuid.UUID{}
	case chtype.KindDecimal32:
		return int32(0)
	case chtype.KindDecimal64:
		return int64(0)
	case chtype.KindDecimal128:
		return big.NewInt(0)
	case chtype.KindEnum8, chtype.KindEnum16:
		return t.EnumPairs()[0].Name
	case chtype.KindNullable:
		return nil
	case chtype.KindArray:
		return []Value{}
	case chtype.KindMap:
		return []KV{}
	case chtype.KindTuple:
		elems := make([]Value, len(t.Args()))
		for i, arg := range t.Args() {
			elems[i] = zeroValue(arg)
		}
		return elems
	case chtype.KindLowCardinality:
		return zeroValue(t.Inner(0))
	default:
		return nil
	}
}
