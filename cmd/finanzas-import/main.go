package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"finanzas/internal/backend"
	"finanzas/internal/cli"
	"finanzas/internal/importer"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

type categoryListing struct {
	Owner      int64           `yaml:"owner"`
	Categories []categoryEntry `yaml:"categories"`
}

type categoryEntry struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default bool   `yaml:"default"`
}

func main() {
	var (
		file            = flag.String("file", "-", "Bank export to import (- reads stdin)")
		owner           = flag.Int64("owner", 0, "Owner id the transactions belong to (required)")
		expenseCategory = flag.Int64("expense-category", 0, "Category id for expense rows (required for import)")
		incomeCategory  = flag.Int64("income-category", 0, "Category id for income rows (required for import)")
		listCategories  = flag.Bool("categories", false, "Print the categories visible to the owner as YAML and exit")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentImport)
	cfg := cli.LoadAndValidateConfig(logger, nil)

	if *owner <= 0 {
		fmt.Fprintln(os.Stderr, "-owner is required")
		flag.Usage()
		os.Exit(2)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	ctx := context.Background()
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}()
	}

	svc := services.NewTransactionService(result.Backend, result.Publisher, nil, logger)

	if *listCategories {
		if err := printCategories(ctx, os.Stdout, svc, *owner); err != nil {
			logger.Error("Failed to list categories", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	text, err := readInput(*file)
	if err != nil {
		logger.Error("Failed to read bank export", log.FieldError, err, "file", *file)
		os.Exit(1)
	}

	report, err := svc.Import(ctx, importer.Request{
		OwnerID:                *owner,
		Text:                   text,
		DefaultExpenseCategory: *expenseCategory,
		DefaultIncomeCategory:  *incomeCategory,
	})
	if err != nil {
		logger.Error("Import rejected", log.FieldError, err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("Failed to write report", log.FieldError, err)
		os.Exit(1)
	}
	if report.ErrorCount > 0 {
		os.Exit(3)
	}
}

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func printCategories(ctx context.Context, w io.Writer, svc *services.TransactionService, owner int64) error {
	cats, err := svc.Categories(ctx, owner, nil)
	if err != nil {
		return err
	}
	listing := categoryListing{Owner: owner, Categories: make([]categoryEntry, 0, len(cats))}
	for _, c := range cats {
		listing.Categories = append(listing.Categories, categoryEntry{
			ID:      c.ID,
			Name:    c.Name,
			Type:    string(c.Type),
			Default: c.IsDefault || c.OwnerID == 0,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(listing); err != nil {
		return err
	}
	return enc.Close()
}
