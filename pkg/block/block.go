// Package block assembles named, typed columns into the unit the native
// protocol ships: a header, a column count, a row count, then each column as
// name, type string, and data.
package block

import (
	"strconv"

	"github.com/ajitpratap0/chnative/pkg/chtype"
	"github.com/ajitpratap0/chnative/pkg/column"
	"github.com/ajitpratap0/chnative/pkg/errors"
	"github.com/ajitpratap0/chnative/pkg/proto"
	"github.com/ajitpratap0/chnative/pkg/wire"
)

// Sanity caps for counts read off the wire.
const (
	maxColumns = 1 << 16
	maxRows    = 1 << 30
)

// Column is one named, typed column and its decoded values.
type Column struct {
	Name string
	Type chtype.Type
	Data []column.Value
}

// Info is the BlockInfo preamble sent before the column data on revisions
// that carry it.
type Info struct {
	IsOverflows bool
	BucketNum   int32
}

// Block is an ordered set of columns sharing one row count.
type Block struct {
	Info    Info
	Columns []Column
}

// New returns an empty block with the default bucket number.
func New() *Block {
	return &Block{Info: Info{BucketNum: -1}}
}

// Rows returns the row count shared by every column, 0 for an empty block.
func (b *Block) Rows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return len(b.Columns[0].Data)
}

// AppendColumn adds a column. Every column of a block must carry the same
// number of rows; the first column establishes the count.
func (b *Block) AppendColumn(name string, t chtype.Type, data []column.Value) error {
	if len(b.Columns) > 0 && len(data) != b.Rows() {
		return errors.Newf(errors.ErrorTypeValidation,
			"column %q has %d rows, block has %d", name, len(data), b.Rows()).WithColumn(name)
	}
	b.Columns = append(b.Columns, Column{Name: name, Type: t, Data: data})
	return nil
}

// Column returns the column with the given name.
func (b *Block) Column(name string) (*Column, error) {
	for i := range b.Columns {
		if b.Columns[i].Name == name {
			return &b.Columns[i], nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeValidation, "no column named %q in block", name).WithColumn(name)
}

// Encode writes the block for the negotiated revision. Column data is
// validated before the first byte is written.
func (b *Block) Encode(w *wire.Writer, revision uint64) error {
	rows := b.Rows()
	for _, c := range b.Columns {
		if len(c.Data) != rows {
			return errors.Newf(errors.ErrorTypeValidation,
				"column %q has %d rows, block has %d", c.Name, len(c.Data), rows).WithColumn(c.Name)
		}
		if err := column.Validate(c.Type, c.Data); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTypeMismatch, "column "+c.Name).WithColumn(c.Name)
		}
	}

	if revision >= proto.DBMS_MIN_REVISION_WITH_BLOCK_INFO {
		b.Info.encode(w)
	}
	w.UVarint(uint64(len(b.Columns)))
	w.UVarint(uint64(rows))
	for _, c := range b.Columns {
		w.String(c.Name)
		w.String(c.Type.String())
		if revision >= proto.DBMS_MIN_REVISION_WITH_CUSTOM_SERIALIZATION {
			// No custom serialization; every column ships the default layout.
			w.UInt8(0)
		}
		if err := column.Encode(w, c.Type, c.Data); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "column "+c.Name).WithColumn(c.Name)
		}
	}
	return nil
}

// Decode reads one block for the negotiated revision. state retains
// LowCardinality dictionaries across the blocks of a stream; pass the same
// state for every block of one query and a fresh one per query.
func Decode(r *wire.Reader, revision uint64, state *column.DictionaryState) (*Block, error) {
	if state == nil {
		state = column.NewDictionaryState()
	}
	// Columns decode against a snapshot of the state, committed only when the
	// whole block parses. A caller may then retry a truncated decode with the
	// same state, say after more bytes of a split block arrive, without
	// dictionary updates from the failed attempt being applied twice.
	staged := state.Clone()

	b := New()
	if revision >= proto.DBMS_MIN_REVISION_WITH_BLOCK_INFO {
		if err := b.Info.decode(r); err != nil {
			return nil, err
		}
	}

	numColumns, err := r.UVarint()
	if err != nil {
		return nil, err
	}
	if numColumns > maxColumns {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "implausible column count %d", numColumns)
	}
	numRows, err := r.UVarint()
	if err != nil {
		return nil, err
	}
	if numRows > maxRows {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "implausible row count %d", numRows)
	}

	b.Columns = make([]Column, 0, numColumns)
	for i := 0; i < int(numColumns); i++ {
		name, err := r.String()
		if err != nil {
			return nil, err
		}
		typeStr, err := r.String()
		if err != nil {
			return nil, err
		}
		t, err := chtype.Parse(typeStr)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeUnknownType, "column "+name).WithColumn(name)
		}
		if revision >= proto.DBMS_MIN_REVISION_WITH_CUSTOM_SERIALIZATION {
			custom, err := r.UInt8()
			if err != nil {
				return nil, err
			}
			if custom != 0 {
				return nil, errors.Newf(errors.ErrorTypeCapability,
					"column %q declares a custom serialization, which is not supported", name).WithColumn(name)
			}
		}
		data, err := column.Decode(r, t, int(numRows), staged, strconv.Itoa(i))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeMalformed, "column "+name).WithColumn(name)
		}
		b.Columns = append(b.Columns, Column{Name: name, Type: t, Data: data})
	}
	*state = *staged
	return b, nil
}

// BlockInfo is written as tagged fields: marker 1 carries the overflow flag,
// marker 2 the bucket number, and marker 0 terminates the list.
func (i Info) encode(w *wire.Writer) {
	w.UVarint(1)
	w.Bool(i.IsOverflows)
	w.UVarint(2)
	w.Int32(i.BucketNum)
	w.UVarint(0)
}

func (i *Info) decode(r *wire.Reader) error {
	for {
		field, err := r.UVarint()
		if err != nil {
			return err
		}
		switch field {
		case 0:
			return nil
		case 1:
			v, err := r.UInt8()
			if err != nil {
				return err
			}
			i.IsOverflows = v != 0
		case 2:
			v, err := r.Int32()
			if err != nil {
				return err
			}
			i.BucketNum = v
		default:
			return errors.Newf(errors.ErrorTypeMalformed, "unknown block info field %d", field)
		}
	}
}
