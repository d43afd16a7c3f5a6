package rproc

import (
	"github.com/dolthub/vitess/go/sqltypes"
)

// sqlTypeFor maps a worker-declared column type to the DDL type used when
// creating the merge table, erring towards permissive (TEXT) types for
// anything not covered, since the merge table is transient and never
// exposed to an end user before finalize() reshapes it.
func sqlTypeFor(t sqltypes.Type) string {
	switch t {
	case sqltypes.Int8, sqltypes.Int16, sqltypes.Int24, sqltypes.Int32:
		return "INT"
	case sqltypes.Int64:
		return "BIGINT"
	case sqltypes.Uint8, sqltypes.Uint16, sqltypes.Uint24, sqltypes.Uint32:
		return "INT UNSIGNED"
	case sqltypes.Uint64:
		return "BIGINT UNSIGNED"
	case sqltypes.Float32:
		return "FLOAT"
	case sqltypes.Float64:
		return "DOUBLE"
	case sqltypes.Decimal:
		return "DECIMAL(38,10)"
	case sqltypes.VarChar, sqltypes.Char, sqltypes.Text:
		return "TEXT"
	case sqltypes.VarBinary, sqltypes.Binary, sqltypes.Blob:
		return "BLOB"
	case sqltypes.Date:
		return "DATE"
	case sqltypes.Datetime, sqltypes.Timestamp:
		return "DATETIME"
	default:
		return "TEXT"
	}
}
