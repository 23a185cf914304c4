// Package proto defines the ClickHouse native TCP protocol: packet codes,
// revision capability gates, and the handshake and control packets exchanged
// around data blocks.
package proto

// Client packet codes.
const (
	ClientHello  = 0
	ClientQuery  = 1
	ClientData   = 2
	ClientCancel = 3
	ClientPing   = 4
)

// Server packet codes.
const (
	ServerHello        = 0
	ServerData         = 1
	ServerException    = 2
	ServerProgress     = 3
	ServerPong         = 4
	ServerEndOfStream  = 5
	ServerProfileInfo  = 6
	ServerTotals       = 7
	ServerExtremes     = 8
	ServerTablesStatus = 9
	ServerLog          = 10
	ServerTableColumns = 11
)

// Revision gates. A feature is present on the wire only when the negotiated
// revision, the minimum of what client and server announce, reaches the gate.
const (
	DBMS_MIN_REVISION_WITH_TEMPORARY_TABLES         = 50264
	DBMS_MIN_REVISION_WITH_BLOCK_INFO               = 51903
	DBMS_MIN_REVISION_WITH_CLIENT_INFO              = 54032
	DBMS_MIN_REVISION_WITH_SERVER_TIMEZONE          = 54058
	DBMS_MIN_REVISION_WITH_QUOTA_KEY_IN_CLIENT_INFO = 54060
	DBMS_MIN_REVISION_WITH_SERVER_DISPLAY_NAME      = 54372
	DBMS_MIN_REVISION_WITH_VERSION_PATCH            = 54401
	DBMS_MIN_REVISION_WITH_CLIENT_WRITE_INFO        = 54420
	DBMS_MIN_REVISION_WITH_SETTINGS_SERIALIZED_AS_STRINGS = 54429
	DBMS_MIN_REVISION_WITH_INTERSERVER_SECRET       = 54441
	DBMS_MIN_REVISION_WITH_OPENTELEMETRY            = 54442
	DBMS_MIN_REVISION_WITH_CUSTOM_SERIALIZATION     = 54454

	// ClientRevision is what this client announces in its hello.
	ClientRevision = DBMS_MIN_REVISION_WITH_CUSTOM_SERIALIZATION
)

// Query processing stages.
const (
	StageFetchColumns       = 0
	StageWithMergeableState = 1
	StageComplete           = 2
)

// Query kinds carried in client info.
const (
	NoQuery        = 0
	InitialQuery   = 1
	SecondaryQuery = 2
)

// Compression negotiation values in the query packet.
const (
	CompressionDisabled = 0
	CompressionEnabled  = 1
)
