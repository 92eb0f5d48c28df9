package domain

import "strings"

// Canonical field names produced by ingest's alias-resolution table (§6).
// Every other package reads RawRecord fields by these names only — alias
// matching happens once, at the ingest boundary.
const (
	FieldName     = "name"
	FieldSiret    = "siret"
	FieldSiren    = "siren"
	FieldNIF      = "nif"
	FieldAddress1 = "address1"
	FieldAddress2 = "address2"
	FieldAddress3 = "address3"
	FieldPostal   = "postal"
	FieldCity     = "city"
)

// FullAddress concatenates the address lines the way a registry Candidate's
// Address field is built (upper-cased, trimmed, single-spaced), so the
// input side of a comparison is shaped the same as the candidate side.
func (r RawRecord) FullAddress() string {
	parts := []string{
		r.Get(FieldAddress1).AsString(),
		r.Get(FieldAddress2).AsString(),
		r.Get(FieldAddress3).AsString(),
	}
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.ToUpper(strings.TrimSpace(strings.Join(nonEmpty, " ")))
}
