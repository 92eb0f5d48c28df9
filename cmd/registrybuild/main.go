// Command registrybuild turns a legal-entity/establishment source extract
// into the two column-store files and per-department partitions the
// resolver's RegistryQuery reads, and seeds the FTS index. It is a
// build-time tool, run by the registry's owner, not by the resolver
// process itself.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/supplier-resolver/resolver/internal/registry/meili"
)

var (
	sourceFile      string
	establishments  string
	partitionsDir   string
	meiliHost       string
	meiliAPIKey     string
)

func main() {
	root := &cobra.Command{
		Use:   "registrybuild",
		Short: "Materialize column-store and FTS fixtures from a registry extract",
		RunE:  run,
	}
	root.Flags().StringVar(&sourceFile, "source", "", "path to the raw legal-entity/establishment extract (required)")
	root.Flags().StringVar(&establishments, "establishments-out", "establishments.parquet", "path to write the nationwide establishment file")
	root.Flags().StringVar(&partitionsDir, "partitions-out", "partitions", "directory to write dept=NN/ partitions")
	root.Flags().StringVar(&meiliHost, "meili-host", "http://localhost:7700", "Meilisearch host to seed")
	root.Flags().StringVar(&meiliAPIKey, "meili-key", "", "Meilisearch API key")
	root.MarkFlagRequired("source")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if _, err := os.Stat(sourceFile); err != nil {
		return fmt.Errorf("source extract missing or unreadable: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("open duckdb build handle: %w", err)
	}
	defer db.Close()

	if err := materializeEstablishments(db, logger); err != nil {
		return fmt.Errorf("materialize establishments: %w", err)
	}
	if err := materializePartitions(db, logger); err != nil {
		return fmt.Errorf("materialize partitions: %w", err)
	}
	if err := seedFTS(db, logger); err != nil {
		return fmt.Errorf("seed fts index: %w", err)
	}

	logger.Info("registry build complete",
		zap.String("establishments", establishments),
		zap.String("partitions", partitionsDir))
	return nil
}

// materializeEstablishments writes the nationwide establishment file,
// computing the upper-cased concatenated address string and carrying over
// the head-office flag the resolver's RegistryQuery expects (§6: "a precomputed concatenated
// address string and an is_head_office boolean").
func materializeEstablishments(db *sql.DB, logger *zap.Logger) error {
	query := fmt.Sprintf(`
		COPY (
			SELECT
				establishment_id,
				company_id,
				official_name,
				city,
				upper(trim(concat_ws(' ', address1, address2, address3))) AS address,
				is_head_office,
				active_status
			FROM read_csv_auto(?)
		) TO '%s' (FORMAT PARQUET)`, establishments)
	_, err := db.Exec(query, sourceFile)
	if err != nil {
		return err
	}
	logger.Info("wrote nationwide establishment file", zap.String("path", establishments))
	return nil
}

// materializePartitions writes one Parquet file per 2-digit department
// prefix of postal, pre-filtered to administratively-active
// establishments (§6, §4.2).
func materializePartitions(db *sql.DB, logger *zap.Logger) error {
	rows, err := db.Query(`
		SELECT DISTINCT substr(postal, 1, 2) AS dept
		FROM read_csv_auto(?)
		WHERE active_status = 'A' AND length(postal) >= 2`, sourceFile)
	if err != nil {
		return err
	}
	defer rows.Close()

	var depts []string
	for rows.Next() {
		var dept string
		if err := rows.Scan(&dept); err != nil {
			return err
		}
		depts = append(depts, dept)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, dept := range depts {
		dir := filepath.Join(partitionsDir, fmt.Sprintf("dept=%s", dept))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		out := filepath.Join(dir, "part-000.parquet")
		query := fmt.Sprintf(`
			COPY (
				SELECT
					establishment_id,
					company_id,
					official_name,
					city,
					postal,
					upper(trim(concat_ws(' ', address1, address2, address3))) AS address,
					is_head_office
				FROM read_csv_auto(?)
				WHERE active_status = 'A' AND substr(postal, 1, 2) = ?
			) TO '%s' (FORMAT PARQUET)`, out)
		if _, err := db.Exec(query, sourceFile, dept); err != nil {
			return fmt.Errorf("partition dept=%s: %w", dept, err)
		}
		logger.Info("wrote department partition", zap.String("dept", dept), zap.String("path", out))
	}
	return nil
}

func seedFTS(db *sql.DB, logger *zap.Logger) error {
	client, err := meili.New(meili.Config{Host: meiliHost, APIKey: meiliAPIKey}, logger)
	if err != nil {
		return err
	}
	if err := client.BuildIndex(); err != nil {
		return err
	}

	rows, err := db.Query(`
		SELECT establishment_id, company_id, official_name, active_status
		FROM read_csv_auto(?)
		WHERE active_status = 'A'`, sourceFile)
	if err != nil {
		return err
	}
	defer rows.Close()

	var docs []meili.SeedDocument
	for rows.Next() {
		var d meili.SeedDocument
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.OfficialName, &d.ActiveStatus); err != nil {
			return err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return client.Seed(docs)
}
