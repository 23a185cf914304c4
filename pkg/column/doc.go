// Package column implements the columnar codec at the heart of the ClickHouse
// native protocol: the bidirectional mapping between wire bytes and in-memory
// column values, one case per type descriptor variant.
//
// # Value model
//
// A column is a []Value of exactly the block's row count. Each Value's dynamic
// type follows its descriptor:
//
//	UInt8..UInt64            uint8..uint64
//	Int8..Int64              int8..int64
//	Float32, Float64         float32, float64
//	String                   string
//	FixedString(n)           []byte of exactly n bytes (never trimmed)
//	Bool                     bool
//	Date, DateTime           time.Time (UTC)
//	DateTime64(p)            time.Time (UTC)
//	UUID                     uuid.UUID
//	Decimal32(s)             int32 raw scaled integer
//	Decimal64(s)             int64 raw scaled integer
//	Decimal128(s)            *big.Int raw scaled integer
//	Enum8, Enum16            string (the declared name)
//	Nullable(T)              nil, or T's value
//	Array(T)                 []Value
//	Tuple(T1..Tn)            []Value of arity n
//	Map(K, V)                []KV, ordered, not deduplicated
//	LowCardinality(T)        T's value
//
// Decimal values are exposed as raw scaled integers; applying the declared
// scale is the caller's concern.
//
// # Dictionary state
//
// LowCardinality columns carry their dictionary across successive blocks of
// one result stream. DictionaryState is the explicit, caller owned object
// holding those dictionaries; it must be scoped to a single stream and fed
// blocks in arrival order. See DictionaryState.
//
// Decode and Encode are pure CPU transforms over in-memory buffers. Any wire
// inconsistency is fatal for the block and is returned, never papered over
// with a default value.
package column
