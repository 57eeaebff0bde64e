package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bolso/internal/cli"
	"bolso/internal/config"
	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/services"
	gsheet "bolso/internal/sheets/google"
)

const exportTimeout = 2 * time.Minute

func main() {
	user := flag.String("user", "", "user id whose month is exported (required)")
	month := flag.String("month", "", "month to export as YYYY-MM (default: current month)")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentSheets)

	if err := run(cfg, logger, strings.TrimSpace(*user), *month); err != nil {
		logger.LogError(context.Background(), "Export failed", err, log.OpExport, nil)
		fmt.Fprintln(os.Stderr, "export failed:", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger, user, month string) error {
	if user == "" {
		return fmt.Errorf("-user is required")
	}
	if err := cfg.ValidateExport(); err != nil {
		return err
	}

	var key core.MonthKey
	if month != "" {
		var err error
		if key, err = core.ParseMonthKey(month); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	app, err := cli.Bootstrap(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer app.Close()

	exporter, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return err
	}

	ctx = core.WithUser(ctx, core.UserID(user))
	sheet, err := services.NewExportService(app.Finance, exporter).Export(ctx, key)
	if err != nil {
		return err
	}
	fmt.Println(sheet)
	return nil
}
