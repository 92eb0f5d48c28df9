// Package export implements C7: a stable-column tabular dump of every
// checkpoint row, successes and error rows alike.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/supplier-resolver/resolver/internal/checkpoint"
	"github.com/supplier-resolver/resolver/internal/domain"
)

// Columns is the stable column order §4.7 specifies.
var Columns = []string{"input_id", "resolved_id", "official_name", "confidence", "method", "alternatives", "error"}

// WriteCSV reads every row from store and writes it as CSV to w. Read-only
// over the store; may run concurrently with ongoing processing.
func WriteCSV(store *checkpoint.Store, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	err := store.All(func(row domain.CheckpointRow) error {
		record, err := toRow(row.Result)
		if err != nil {
			return err
		}
		return cw.Write(record)
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func toRow(result domain.MatchResult) ([]string, error) {
	resolvedID := ""
	if result.ResolvedEstablishmentID != nil {
		resolvedID = *result.ResolvedEstablishmentID
	}
	officialName := ""
	if result.OfficialName != nil {
		officialName = *result.OfficialName
	}
	errMsg := ""
	if result.Error != nil {
		errMsg = *result.Error
	}

	alts := result.Alternatives
	if alts == nil {
		alts = []string{}
	}
	altsJSON, err := json.Marshal(alts)
	if err != nil {
		return nil, fmt.Errorf("marshal alternatives for %q: %w", result.InputID, err)
	}

	return []string{
		result.InputID,
		resolvedID,
		officialName,
		strconv.FormatFloat(result.Confidence, 'f', 2, 64),
		string(result.Method),
		string(altsJSON),
		errMsg,
	}, nil
}
