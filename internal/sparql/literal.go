package sparql

import (
	"math/big"
	"strings"
	"time"

	"github.com/roach88/timeagnostic/internal/ir"
)

var numericTypes = map[string]bool{
	xsdInteger: true, xsdDecimal: true, xsdDouble: true,
	xsd + "float": true, xsd + "int": true, xsd + "long": true, xsd + "short": true,
	xsd + "byte": true, xsd + "nonNegativeInteger": true, xsd + "positiveInteger": true,
	xsd + "nonPositiveInteger": true, xsd + "negativeInteger": true,
	xsd + "unsignedInt": true, xsd + "unsignedLong": true,
	xsd + "unsignedShort": true, xsd + "unsignedByte": true,
}

var dateTypes = map[string]bool{
	xsd + "dateTime": true, xsd + "dateTimeStamp": true, xsd + "date": true,
}

// valueEqual compares two terms by value: numbers of any numeric datatype
// compare numerically, booleans by truth value and dates by instant.
// Anything else falls back to term identity.
func valueEqual(a, b ir.Term) bool {
	if a == b {
		return true
	}
	if !a.IsLiteral() || !b.IsLiteral() || a.Lang != "" || b.Lang != "" {
		return false
	}

	switch {
	case numericTypes[a.Datatype] && numericTypes[b.Datatype]:
		x, okx := new(big.Rat).SetString(strings.TrimPrefix(a.Value, "+"))
		y, oky := new(big.Rat).SetString(strings.TrimPrefix(b.Value, "+"))
		return okx && oky && x.Cmp(y) == 0
	case a.Datatype == xsdBoolean && b.Datatype == xsdBoolean:
		return parseBool(a.Value) == parseBool(b.Value)
	case dateTypes[a.Datatype] && dateTypes[b.Datatype]:
		x, okx := parseDate(a.Value)
		y, oky := parseDate(b.Value)
		return okx && oky && x.Equal(y)
	}
	return false
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func parseDate(v string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
