package parser

import "strings"

// spatialRestrictorFuncs maps a Qserv spatial restrictor function name
// (upper-cased) to the restrictor kind it produces.
var spatialRestrictorFuncs = map[string]string{
	"QSERV_AREASPEC_BOX":     "box",
	"QSERV_AREASPEC_CIRCLE":  "circle",
	"QSERV_AREASPEC_ELLIPSE": "ellipse",
	"QSERV_AREASPEC_POLY":    "poly",
	"QSERV_AREASPEC_HULL":    "hull",
}

// isSpatialRestrictorFunc reports whether name (as written in the SQL) is
// one of Qserv's QSERV_AREASPEC_* restrictor functions.
func isSpatialRestrictorFunc(name string) (kind string, ok bool) {
	kind, ok = spatialRestrictorFuncs[strings.ToUpper(name)]
	return kind, ok
}
