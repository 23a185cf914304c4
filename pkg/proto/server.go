package proto

import (
	"fmt"

	"github.com/ajitpratap0/chnative/pkg/errors"
	"github.com/ajitpratap0/chnative/pkg/wire"
)

// Exception is a server-side error, possibly with a chain of nested causes.
type Exception struct {
	Code       int32
	Name       string
	Message    string
	StackTrace string
	Nested     *Exception
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s (code %d): %s", e.Name, e.Code, e.Message)
}

// AsError converts the exception chain into this module's error type.
func (e *Exception) AsError() error {
	err := errors.Newf(errors.ErrorTypeServer, "%s (code %d): %s", e.Name, e.Code, e.Message).
		WithDetail("code", e.Code)
	if e.Nested != nil {
		err.Cause = e.Nested.AsError()
	}
	return err
}

// maxNestedExceptions bounds the nesting chain read off the wire.
const maxNestedExceptions = 64

func DecodeException(r *wire.Reader) (*Exception, error) {
	return decodeException(r, 0)
}

func decodeException(r *wire.Reader, depth int) (*Exception, error) {
	if depth > maxNestedExceptions {
		return nil, errors.New(errors.ErrorTypeMalformed, "exception nesting too deep")
	}
	e := &Exception{}
	var err error
	if e.Code, err = r.Int32(); err != nil {
		return nil, err
	}
	if e.Name, err = r.String(); err != nil {
		return nil, err
	}
	if e.Message, err = r.String(); err != nil {
		return nil, err
	}
	if e.StackTrace, err = r.String(); err != nil {
		return nil, err
	}
	hasNested, err := r.UInt8()
	if err != nil {
		return nil, err
	}
	if hasNested != 0 {
		if e.Nested, err = decodeException(r, depth+1); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Progress reports rows and bytes processed so far. Field presence depends
// on the negotiated revision.
type Progress struct {
	Rows       uint64
	Bytes      uint64
	TotalRows  uint64
	WroteRows  uint64
	WroteBytes uint64
}

func DecodeProgress(r *wire.Reader, revision uint64) (*Progress, error) {
	p := &Progress{}
	var err error
	if p.Rows, err = r.UVarint(); err != nil {
		return nil, err
	}
	if p.Bytes, err = r.UVarint(); err != nil {
		return nil, err
	}
	if p.TotalRows, err = r.UVarint(); err != nil {
		return nil, err
	}
	if revision >= DBMS_MIN_REVISION_WITH_CLIENT_WRITE_INFO {
		if p.WroteRows, err = r.UVarint(); err != nil {
			return nil, err
		}
		if p.WroteBytes, err = r.UVarint(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ProfileInfo summarizes the query's execution on the server.
type ProfileInfo struct {
	Rows                      uint64
	Blocks                    uint64
	Bytes                     uint64
	AppliedLimit              bool
	RowsBeforeLimit           uint64
	CalculatedRowsBeforeLimit bool
}

func DecodeProfileInfo(r *wire.Reader) (*ProfileInfo, error) {
	p := &ProfileInfo{}
	var err error
	if p.Rows, err = r.UVarint(); err != nil {
		return nil, err
	}
	if p.Blocks, err = r.UVarint(); err != nil {
		return nil, err
	}
	if p.Bytes, err = r.UVarint(); err != nil {
		return nil, err
	}
	applied, err := r.UVarint()
	if err != nil {
		return nil, err
	}
	p.AppliedLimit = applied != 0
	if p.RowsBeforeLimit, err = r.UVarint(); err != nil {
		return nil, err
	}
	calculated, err := r.UVarint()
	if err != nil {
		return nil, err
	}
	p.CalculatedRowsBeforeLimit = calculated != 0
	return p, nil
}
