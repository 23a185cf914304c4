// Package chnative implements the ClickHouse native TCP protocol as a
// columnar client library: wire primitives, the recursive type grammar,
// column codecs, block framing, checksummed compression, and a streaming
// query client.
//
// # Architecture
//
// The packages layer bottom-up:
//
//   - pkg/wire: varint and little-endian primitives over byte buffers
//   - pkg/chtype: parsed type descriptors (Array, Nullable, Map, Tuple,
//     Enum, Decimal, LowCardinality and the scalar types)
//   - pkg/column: recursive encode/decode between Go values and the
//     native columnar layout, including cross-block dictionary state
//   - pkg/block: block headers, BlockInfo, and whole-block codecs
//   - pkg/compress: CityHash128-checksummed LZ4/ZSTD framing
//   - pkg/proto: handshake, query, and server packet codecs
//   - pkg/client: the connection, query streaming, and inserts
//   - pkg/arrowconv: conversion of decoded blocks to Arrow records
//
// # Quick Start
//
//	cfg := config.New()
//	cfg.Connection.Address = "127.0.0.1:9000"
//	c, err := client.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	rows, err := c.Query(ctx, "SELECT number FROM system.numbers LIMIT 5")
//	if err != nil {
//		return err
//	}
//	defer rows.Close()
//	for rows.Next() {
//		fmt.Println(rows.Value(0))
//	}
//	return rows.Err()
//
// Runnable examples live under examples/.
package chnative
