package ingest

import (
	"strings"

	"github.com/supplier-resolver/resolver/internal/domain"
)

// aliasTable maps every recognized source column header (lower-cased) to
// its canonical field name (§6). First match wins when a spreadsheet
// carries more than one alias for the same concept.
var aliasTable = map[string]string{
	"auxiliaire": "input_id",
	"code tiers": "input_id",
	"index":      "input_id",

	"nom":             domain.FieldName,
	"name":            domain.FieldName,
	"company name":    domain.FieldName,
	"raison sociale":  domain.FieldName,

	"code siret": domain.FieldSiret,
	"code siren": domain.FieldSiren,
	"code nif":   domain.FieldNIF,

	"adresse 1": domain.FieldAddress1,
	"adresse 2": domain.FieldAddress2,
	"adresse 3": domain.FieldAddress3,

	"postal":      domain.FieldPostal,
	"code postal": domain.FieldPostal,
	"cp":          domain.FieldPostal,
	"zip":         domain.FieldPostal,

	"ville":   domain.FieldCity,
	"city":    domain.FieldCity,
	"commune": domain.FieldCity,
}

// inputIDField is the sentinel canonical name the record's own identifier
// is normalized to; it is consumed by ResolveHeader's caller and never
// exposed as an ordinary RawRecord field.
const inputIDField = "input_id"

// ResolveHeader maps one source column header to its canonical field name.
// Unrecognized headers return ("", false) and their column is dropped —
// the cascade only ever reads the recognized canonical names.
func ResolveHeader(header string) (string, bool) {
	canonical, ok := aliasTable[strings.ToLower(strings.TrimSpace(header))]
	return canonical, ok
}
