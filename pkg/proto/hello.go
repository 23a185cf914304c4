package proto

import (
	"github.com/ajitpratap0/chnative/pkg/wire"
)

// ClientHello is the first packet on a fresh connection.
type ClientHelloPacket struct {
	ClientName   string
	VersionMajor uint64
	VersionMinor uint64
	Revision     uint64
	Database     string
	Username     string
	Password     string
}

func (p *ClientHelloPacket) Encode(w *wire.Writer) {
	w.UVarint(ClientHello)
	w.String(p.ClientName)
	w.UVarint(p.VersionMajor)
	w.UVarint(p.VersionMinor)
	w.UVarint(p.Revision)
	w.String(p.Database)
	w.String(p.Username)
	w.String(p.Password)
}

// ServerHelloPacket is the server's handshake reply. Fields past Revision are
// present only when the server's own revision carries them.
type ServerHelloPacket struct {
	Name         string
	VersionMajor uint64
	VersionMinor uint64
	Revision     uint64
	Timezone     string
	DisplayName  string
	VersionPatch uint64
}

func DecodeServerHello(r *wire.Reader) (*ServerHelloPacket, error) {
	p := &ServerHelloPacket{}
	var err error
	if p.Name, err = r.String(); err != nil {
		return nil, err
	}
	if p.VersionMajor, err = r.UVarint(); err != nil {
		return nil, err
	}
	if p.VersionMinor, err = r.UVarint(); err != nil {
		return nil, err
	}
	if p.Revision, err = r.UVarint(); err != nil {
		return nil, err
	}
	if p.Revision >= DBMS_MIN_REVISION_WITH_SERVER_TIMEZONE {
		if p.Timezone, err = r.String(); err != nil {
			return nil, err
		}
	}
	if p.Revision >= DBMS_MIN_REVISION_WITH_SERVER_DISPLAY_NAME {
		if p.DisplayName, err = r.String(); err != nil {
			return nil, err
		}
	}
	if p.Revision >= DBMS_MIN_REVISION_WITH_VERSION_PATCH {
		if p.VersionPatch, err = r.UVarint(); err != nil {
			return nil, err
		}
	}
	return p, nil
}
