// export-records writes the records of one site table within a date range
// to a CSV or XLSX file.
//
// Usage (from backend directory):
//
//	go run ./cmd/export-records -site site-alpha -kind cleaning -start 2025-08-01 -end 2025-08-31 -format xlsx -out cleaning.xlsx
//
// STORE_DRIVER=memory exports the built-in fixtures instead of MySQL.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"bitbucket.org/greenops/fieldops_backend/config"
	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
)

func main() {
	siteId := flag.String("site", "", "Site id (required)")
	kindFlag := flag.String("kind", "", "Table: grass_cutting, cleaning or generation (required)")
	from := flag.String("start", "", "Start date (YYYY-MM-DD), inclusive (required)")
	to := flag.String("end", "", "End date (YYYY-MM-DD), inclusive (required)")
	format := flag.String("format", "csv", "Output format: csv or xlsx")
	out := flag.String("out", "", "Output file; stdout when empty")
	flag.Parse()

	if strings.TrimSpace(*siteId) == "" || *from == "" || *to == "" {
		flag.Usage()
		os.Exit(2)
	}
	kind, err := models.ParseTableKind(*kindFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "-kind: %v\n", err)
		os.Exit(2)
	}
	start, err := models.ParseDate(*from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "-start: %v\n", err)
		os.Exit(2)
	}
	end, err := models.ParseDate(*to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "-end: %v\n", err)
		os.Exit(2)
	}
	*format = strings.ToLower(*format)
	if *format != "csv" && *format != "xlsx" {
		fmt.Fprintln(os.Stderr, "-format must be csv or xlsx")
		os.Exit(2)
	}

	var repo models.RecordRepository
	if config.UseMemoryStore() {
		repo, err = models.NewFixtureStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load fixtures: %v\n", err)
			os.Exit(1)
		}
	} else {
		config.ConnectDatabaseWithRetry()
		if config.GetDB() == nil {
			fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
			os.Exit(1)
		}
		repo = models.NewGormStore()
	}

	ctx := utils.SetSkipClientScopeInContext(context.Background(), true)
	ctx = utils.SetIsAdminInContext(ctx, true)
	table, _, err := models.LoadTable(ctx, repo, *siteId, kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s/%s: %v\n", *siteId, kind, err)
		os.Exit(1)
	}

	write := func(w io.Writer) error {
		if *format == "xlsx" {
			return models.ExportExcel(w, table.Records(), table.Schema, start, end)
		}
		return models.WriteCSV(w, table.Records(), table.Schema, start, end)
	}
	if err := writeExport(*out, os.Stdout, write); err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		fmt.Fprintf(os.Stderr, "Exported %s/%s %s..%s to %s\n", *siteId, kind, models.FormatDate(start), models.FormatDate(end), *out)
	}
}

// writeExport runs write against path, or stdout when path is empty. The
// file is closed before returning and removed again when the export fails.
func writeExport(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "" {
		bw := bufio.NewWriter(stdout)
		if err := write(bw); err != nil {
			return err
		}
		return bw.Flush()
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
