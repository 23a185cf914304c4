package arrowconv

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chnative/pkg/block"
	"github.com/ajitpratap0/chnative/pkg/chtype"
	"github.com/ajitpratap0/chnative/pkg/column"
)

func mustType(t *testing.T, s string) chtype.Type {
	t.Helper()
	typ, err := chtype.Parse(s)
	require.NoError(t, err)
	return typ
}

func TestSchemaMapping(t *testing.T) {
	b := block.New()
	require.NoError(t, b.AppendColumn("id", mustType(t, "UInt64"), nil))
	require.NoError(t, b.AppendColumn("name", mustType(t, "Nullable(String)"), nil))
	require.NoError(t, b.AppendColumn("tags", mustType(t, "Array(String)"), nil))
	require.NoError(t, b.AppendColumn("status", mustType(t, "LowCardinality(String)"), nil))
	require.NoError(t, b.AppendColumn("ts", mustType(t, "DateTime64(3)"), nil))

	schema, err := Schema(b)
	require.NoError(t, err)
	require.Equal(t, 5, schema.NumFields())

	assert.Equal(t, arrow.PrimitiveTypes.Uint64, schema.Field(0).Type)
	assert.False(t, schema.Field(0).Nullable)
	assert.Equal(t, arrow.BinaryTypes.String, schema.Field(1).Type)
	assert.True(t, schema.Field(1).Nullable)
	assert.Equal(t, arrow.ListOf(arrow.BinaryTypes.String), schema.Field(2).Type)
	assert.Equal(t, arrow.BinaryTypes.String, schema.Field(3).Type)
	assert.Equal(t, &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}, schema.Field(4).Type)
}

func TestToRecord(t *testing.T) {
	b := block.New()
	require.NoError(t, b.AppendColumn("id", mustType(t, "UInt64"),
		[]column.Value{uint64(1), uint64(2), uint64(3)}))
	require.NoError(t, b.AppendColumn("name", mustType(t, "Nullable(String)"),
		[]column.Value{"a", nil, "c"}))
	require.NoError(t, b.AppendColumn("scores", mustType(t, "Array(Float64)"),
		[]column.Value{
			[]column.Value{1.5, 2.5},
			[]column.Value{},
			[]column.Value{3.0},
		}))
	require.NoError(t, b.AppendColumn("ts", mustType(t, "DateTime"),
		[]column.Value{
			time.Unix(100, 0).UTC(),
			time.Unix(200, 0).UTC(),
			time.Unix(300, 0).UTC(),
		}))

	rec, err := ToRecord(b)
	require.NoError(t, err)
	defer rec.Release()

	require.EqualValues(t, 3, rec.NumRows())
	require.EqualValues(t, 4, rec.NumCols())

	ids := rec.Column(0).(*array.Uint64)
	assert.Equal(t, []uint64{1, 2, 3}, ids.Uint64Values())

	names := rec.Column(1).(*array.String)
	assert.Equal(t, "a", names.Value(0))
	assert.True(t, names.IsNull(1))
	assert.Equal(t, "c", names.Value(2))

	scores := rec.Column(2).(*array.List)
	assert.EqualValues(t, 3, scores.Len())
	start, end := scores.ValueOffsets(0)
	assert.EqualValues(t, 0, start)
	assert.EqualValues(t, 2, end)
	start, end = scores.ValueOffsets(1)
	assert.Equal(t, start, end, "empty array")

	ts := rec.Column(3).(*array.Timestamp)
	assert.EqualValues(t, 200, ts.Value(1))
}

func TestUnsupportedType(t *testing.T) {
	b := block.New()
	require.NoError(t, b.AppendColumn("m", mustType(t, "Map(String, UInt64)"), nil))

	_, err := Schema(b)
	assert.Error(t, err)
}
