package proto

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/chnative/pkg/wire"
)

// Setting is one query-level setting, serialized as strings on every
// revision this client speaks.
type Setting struct {
	Key       string
	Value     string
	Important bool
}

const settingFlagImportant = 0x01

// ClientInfo describes the query's origin, sent inside the query packet on
// revisions that carry it.
type ClientInfo struct {
	QueryKind      byte
	InitialUser    string
	InitialQueryID string
	InitialAddress string
	OSUser         string
	Hostname       string
	ClientName     string
	VersionMajor   uint64
	VersionMinor   uint64
	Revision       uint64
	QuotaKey       string
}

const interfaceTCP = 1

func (c *ClientInfo) encode(w *wire.Writer, revision uint64, span trace.SpanContext) {
	w.UInt8(c.QueryKind)
	w.String(c.InitialUser)
	w.String(c.InitialQueryID)
	w.String(c.InitialAddress)
	w.UInt8(interfaceTCP)
	w.String(c.OSUser)
	w.String(c.Hostname)
	w.String(c.ClientName)
	w.UVarint(c.VersionMajor)
	w.UVarint(c.VersionMinor)
	w.UVarint(c.Revision)
	if revision >= DBMS_MIN_REVISION_WITH_QUOTA_KEY_IN_CLIENT_INFO {
		w.String(c.QuotaKey)
	}
	if revision >= DBMS_MIN_REVISION_WITH_VERSION_PATCH {
		w.UVarint(0) // patch
	}
	if revision >= DBMS_MIN_REVISION_WITH_OPENTELEMETRY {
		if span.IsValid() {
			w.UInt8(1)
			tid := span.TraceID()
			w.Fixed(tid[:])
			sid := span.SpanID()
			w.Fixed(sid[:])
			w.String(span.TraceState().String())
			w.UInt8(byte(span.TraceFlags()))
		} else {
			w.UInt8(0)
		}
	}
}

// QueryPacket carries one query with its settings and processing stage.
type QueryPacket struct {
	QueryID     string
	Info        ClientInfo
	Settings    []Setting
	Stage       uint64
	Compression uint64
	Body        string

	// Span, when valid, propagates the trace context to the server.
	Span trace.SpanContext
}

func (p *QueryPacket) Encode(w *wire.Writer, revision uint64) {
	w.UVarint(ClientQuery)
	w.String(p.QueryID)
	if revision >= DBMS_MIN_REVISION_WITH_CLIENT_INFO {
		p.Info.encode(w, revision, p.Span)
	}
	for _, s := range p.Settings {
		w.String(s.Key)
		if revision >= DBMS_MIN_REVISION_WITH_SETTINGS_SERIALIZED_AS_STRINGS {
			var flags uint64
			if s.Important {
				flags |= settingFlagImportant
			}
			w.UVarint(flags)
		}
		w.String(s.Value)
	}
	w.String("") // settings terminator
	if revision >= DBMS_MIN_REVISION_WITH_INTERSERVER_SECRET {
		w.String("")
	}
	w.UVarint(p.Stage)
	w.UVarint(p.Compression)
	w.String(p.Body)
}

// EncodeDataHeader writes the client data packet preamble. The block itself
// follows, compressed when the connection negotiated it.
func EncodeDataHeader(w *wire.Writer, revision uint64, tableName string) {
	w.UVarint(ClientData)
	if revision >= DBMS_MIN_REVISION_WITH_TEMPORARY_TABLES {
		w.String(tableName)
	}
}

// EncodePing writes a ping packet.
func EncodePing(w *wire.Writer) {
	w.UVarint(ClientPing)
}

// EncodeCancel writes a cancel packet.
func EncodeCancel(w *wire.Writer) {
	w.UVarint(ClientCancel)
}
