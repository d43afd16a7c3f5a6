// Package qdisp implements §4.F/§4.G: the per-user-query Executive, the
// per-worker Messenger multiplexer, and the Request state machine that
// ties them together.
package qdisp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dolthub/vitess/go/sqltypes"
)

// HeaderType is the top-level frame discriminator of §6's wire protocol.
type HeaderType int

const (
	HeaderRequest HeaderType = iota
	HeaderService
	HeaderManagement
)

// QueuedType enumerates the REQUEST-frame sub-operations a worker accepts.
type QueuedType int

const (
	QueuedReplicate QueuedType = iota
	QueuedDelete
	QueuedFind
	QueuedFindAll
	QueuedEcho
	QueuedSQL
)

// ManagementType enumerates the MANAGEMENT-frame sub-operations, dispatched
// by the worker to its control plane rather than its execution plane.
type ManagementType int

const (
	ManagementStatus ManagementType = iota
	ManagementStop
)

// Header is the fixed-format prefix of every worker request, correlating
// a response to the request that caused it.
type Header struct {
	ID              uint64
	Type            HeaderType
	QueuedType      QueuedType
	ManagementType  ManagementType
}

// ColumnDescriptor names and types one result column, using vitess's
// sqltypes.Type so the merger can build the LOAD DATA INFILE target schema
// without re-deriving MySQL type semantics itself.
type ColumnDescriptor struct {
	Name string
	Type sqltypes.Type
}

// PerformanceRecord carries the worker-reported timing triple used for
// per-request instrumentation.
type PerformanceRecord struct {
	QueuedAt  int64
	StartedAt int64
	FinishedAt int64
}

// ResponsePayload is the P-byte body of a framed worker response (§4.H).
type ResponsePayload struct {
	JobID        int64
	AttemptCount int
	RowCount     int64
	Columns      []ColumnDescriptor
	Rows         []byte // a self-describing row stream, opaque to qdisp
	ErrorCode    int
	ErrorMsg     string
	LargeResult  bool
	Perf         PerformanceRecord
}

// maxHeaderLen bounds the 1-byte header-length prefix of §4.H's framing.
const maxHeaderLen = 255

// WriteFrame writes one complete response frame: a 1-byte header length,
// the header bytes, a 4-byte big-endian payload length, then the payload
// bytes.
func WriteFrame(w io.Writer, header, payload []byte) error {
	if len(header) > maxHeaderLen {
		return fmt.Errorf("qdisp: header of %d bytes exceeds the 1-byte length prefix", len(header))
	}
	if _, err := w.Write([]byte{byte(len(header))}); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one complete response frame written by WriteFrame.
func ReadFrame(r io.Reader) (header, payload []byte, err error) {
	var hLenBuf [1]byte
	if _, err := io.ReadFull(r, hLenBuf[:]); err != nil {
		return nil, nil, err
	}
	header = make([]byte, hLenBuf[0])
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, err
	}
	var pLenBuf [4]byte
	if _, err := io.ReadFull(r, pLenBuf[:]); err != nil {
		return nil, nil, err
	}
	payload = make([]byte, binary.BigEndian.Uint32(pLenBuf[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, err
	}
	return header, payload, nil
}
