package czar

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-sql-driver/mysql"

	"github.com/provingground-moe/qserv-sub000/qdisp"
)

// encodeHeader renders h as the fixed-format worker request header of
// §6: a big-endian id, one type byte, one queued_type byte, one
// management_type byte.
func encodeHeader(h qdisp.Header) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, h.ID)
	buf.WriteByte(byte(h.Type))
	buf.WriteByte(byte(h.QueuedType))
	buf.WriteByte(byte(h.ManagementType))
	return buf.Bytes()
}

// loadDataLocalInfile streams rows (a row payload as described by
// ResponsePayload, opaque here) into table via `LOAD DATA LOCAL INFILE`,
// prefixing every row with jobIDAttempt in the leading jobIDCol column.
// It registers a one-shot reader handler with the go-sql-driver/mysql
// driver, the documented mechanism for supplying LOCAL INFILE data from
// memory rather than a filesystem path.
func loadDataLocalInfile(db *sql.DB, table, jobIDCol, jobIDAttempt string, rows []byte) error {
	const handle = "qserv_merge_stream"
	deregister := mysql.RegisterReaderHandler(handle, func() io.Reader {
		return bytes.NewReader(prefixRows(jobIDAttempt, rows))
	})
	defer deregister()

	stmt := fmt.Sprintf(
		"LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE %s",
		handle, table)
	_, err := db.Exec(stmt)
	return err
}

// prefixRows prepends jobIDAttempt and a tab separator to every line of
// rows, matching the merge table's leading bookkeeping column.
func prefixRows(jobIDAttempt string, rows []byte) []byte {
	lines := bytes.Split(rows, []byte("\n"))
	var out bytes.Buffer
	for i, line := range lines {
		if i == len(lines)-1 && len(line) == 0 {
			continue
		}
		out.WriteString(jobIDAttempt)
		out.WriteByte('\t')
		out.Write(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}
