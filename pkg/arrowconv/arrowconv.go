// Package arrowconv converts decoded blocks into Arrow records so result
// sets can feed Arrow-native pipelines (Parquet writers, Flight, dataframes)
// without copying through an intermediate row representation.
package arrowconv

import (
	"math/big"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"

	"github.com/ajitpratap0/chnative/pkg/block"
	"github.com/ajitpratap0/chnative/pkg/chtype"
	"github.com/ajitpratap0/chnative/pkg/column"
	"github.com/ajitpratap0/chnative/pkg/errors"
)

// Schema maps a block's columns to an Arrow schema.
func Schema(b *block.Block) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(b.Columns))
	for _, c := range b.Columns {
		f, err := field(c.Name, c.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return arrow.NewSchema(fields, nil), nil
}

func field(name string, t chtype.Type) (arrow.Field, error) {
	nullable := false
	if t.Kind() == chtype.KindNullable {
		nullable = true
		t = t.Inner(0)
	}
	dt, err := dataType(t)
	if err != nil {
		return arrow.Field{}, errors.Wrap(err, errors.ErrorTypeCapability, "column "+name).WithColumn(name)
	}
	return arrow.Field{Name: name, Type: dt, Nullable: nullable}, nil
}

func dataType(t chtype.Type) (arrow.DataType, error) {
	switch t.Kind() {
	case chtype.KindUInt8:
		return arrow.PrimitiveTypes.Uint8, nil
	case chtype.KindUInt16:
		return arrow.PrimitiveTypes.Uint16, nil
	case chtype.KindUInt32:
		return arrow.PrimitiveTypes.Uint32, nil
	case chtype.KindUInt64:
		return arrow.PrimitiveTypes.Uint64, nil
	case chtype.KindInt8:
		return arrow.PrimitiveTypes.Int8, nil
	case chtype.KindInt16:
		return arrow.PrimitiveTypes.Int16, nil
	case chtype.KindInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case chtype.KindInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case chtype.KindFloat32:
		return arrow.PrimitiveTypes.Float32, nil
	case chtype.KindFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case chtype.KindBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case chtype.KindString, chtype.KindEnum8, chtype.KindEnum16:
		return arrow.BinaryTypes.String, nil
	case chtype.KindFixedString:
		return &arrow.FixedSizeBinaryType{ByteWidth: t.FixedLen()}, nil
	case chtype.KindUUID:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}, nil
	case chtype.KindDate:
		return arrow.FixedWidthTypes.Date32, nil
	case chtype.KindDateTime:
		return &arrow.TimestampType{Unit: arrow.Second, TimeZone: "UTC"}, nil
	case chtype.KindDateTime64:
		return &arrow.TimestampType{Unit: timestampUnit(t.Precision()), TimeZone: "UTC"}, nil
	case chtype.KindDecimal32:
		return &arrow.Decimal128Type{Precision: 9, Scale: int32(t.Scale())}, nil
	case chtype.KindDecimal64:
		return &arrow.Decimal128Type{Precision: 18, Scale: int32(t.Scale())}, nil
	case chtype.KindDecimal128:
		return &arrow.Decimal128Type{Precision: 38, Scale: int32(t.Scale())}, nil
	case chtype.KindArray:
		inner, err := dataType(innerNonNullable(t.Inner(0)))
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(inner), nil
	case chtype.KindLowCardinality:
		return dataType(innerNonNullable(t.Inner(0)))
	default:
		return nil, errors.Newf(errors.ErrorTypeCapability, "type %s has no Arrow mapping", t.String())
	}
}

func innerNonNullable(t chtype.Type) chtype.Type {
	if t.Kind() == chtype.KindNullable {
		return t.Inner(0)
	}
	return t
}

func timestampUnit(precision int) arrow.TimeUnit {
	switch {
	case precision == 0:
		return arrow.Second
	case precision <= 3:
		return arrow.Millisecond
	case precision <= 6:
		return arrow.Microsecond
	default:
		return arrow.Nanosecond
	}
}

// ToRecord converts a block into an Arrow record. The caller owns the
// returned record and must Release it.
func ToRecord(b *block.Block) (arrow.Record, error) {
	schema, err := Schema(b)
	if err != nil {
		return nil, err
	}
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	for i, c := range b.Columns {
		fb := builder.Field(i)
		for _, v := range c.Data {
			if err := appendValue(fb, c.Type, v); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeInternal, "column "+c.Name).WithColumn(c.Name)
			}
		}
	}
	return builder.NewRecord(), nil
}

func appendValue(fb array.Builder, t chtype.Type, v column.Value) error {
	switch t.Kind() {
	case chtype.KindNullable:
		if v == nil {
			fb.AppendNull()
			return nil
		}
		return appendValue(fb, t.Inner(0), v)
	case chtype.KindLowCardinality:
		return appendValue(fb, t.Inner(0), v)
	case chtype.KindUInt8:
		fb.(*array.Uint8Builder).Append(v.(uint8))
	case chtype.KindUInt16:
		fb.(*array.Uint16Builder).Append(v.(uint16))
	case chtype.KindUInt32:
		fb.(*array.Uint32Builder).Append(v.(uint32))
	case chtype.KindUInt64:
		fb.(*array.Uint64Builder).Append(v.(uint64))
	case chtype.KindInt8:
		fb.(*array.Int8Builder).Append(v.(int8))
	case chtype.KindInt16:
		fb.(*array.Int16Builder).Append(v.(int16))
	case chtype.KindInt32:
		fb.(*array.Int32Builder).Append(v.(int32))
	case chtype.KindInt64:
		fb.(*array.Int64Builder).Append(v.(int64))
	case chtype.KindFloat32:
		fb.(*array.Float32Builder).Append(v.(float32))
	case chtype.KindFloat64:
		fb.(*array.Float64Builder).Append(v.(float64))
	case chtype.KindBool:
		fb.(*array.BooleanBuilder).Append(v.(bool))
	case chtype.KindString, chtype.KindEnum8, chtype.KindEnum16:
		fb.(*array.StringBuilder).Append(v.(string))
	case chtype.KindFixedString:
		fb.(*array.FixedSizeBinaryBuilder).Append(v.([]byte))
	case chtype.KindUUID:
		u := v.(uuid.UUID)
		fb.(*array.FixedSizeBinaryBuilder).Append(u[:])
	case chtype.KindDate:
		days := int32(v.(time.Time).Unix() / 86400)
		fb.(*array.Date32Builder).Append(arrow.Date32(days))
	case chtype.KindDateTime:
		fb.(*array.TimestampBuilder).Append(arrow.Timestamp(v.(time.Time).Unix()))
	case chtype.KindDateTime64:
		fb.(*array.TimestampBuilder).Append(arrow.Timestamp(timestampValue(v.(time.Time), t.Precision())))
	case chtype.KindDecimal32:
		fb.(*array.Decimal128Builder).Append(decimal128.FromI64(int64(v.(int32))))
	case chtype.KindDecimal64:
		fb.(*array.Decimal128Builder).Append(decimal128.FromI64(v.(int64)))
	case chtype.KindDecimal128:
		n := decimal128.FromBigInt(v.(*big.Int))
		fb.(*array.Decimal128Builder).Append(n)
	case chtype.KindArray:
		lb := fb.(*array.ListBuilder)
		lb.Append(true)
		vb := lb.ValueBuilder()
		for _, elem := range v.([]column.Value) {
			inner := t.Inner(0)
			if inner.Kind() == chtype.KindNullable && elem == nil {
				vb.AppendNull()
				continue
			}
			if err := appendValue(vb, innerNonNullable(inner), elem); err != nil {
				return err
			}
		}
	default:
		return errors.Newf(errors.ErrorTypeCapability, "type %s has no Arrow mapping", t.String())
	}
	return nil
}

func timestampValue(tv time.Time, precision int) int64 {
	switch timestampUnit(precision) {
	case arrow.Second:
		return tv.Unix()
	case arrow.Millisecond:
		return tv.UnixMilli()
	case arrow.Microsecond:
		return tv.UnixMicro()
	default:
		return tv.UnixNano()
	}
}
