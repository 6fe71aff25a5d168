package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// TableExporter provides raw table access for the archive.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([]map[string]any, []string, error)
}

// Archive dumps every exported table into its own sheet. A table that fails
// to export is logged and skipped.
func Archive(ctx context.Context, exporter TableExporter, logger *zerolog.Logger) (*bytes.Buffer, error) {
	tables, err := exporter.GetTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to export")
	}

	wb := NewWorkbook()
	defer wb.Close()

	for _, table := range tables {
		data, columns, err := exporter.GetTableData(ctx, table)
		if err != nil {
			logger.Error().Err(err).Str("table", table).Msg("Failed to get table data")
			continue
		}
		if err := wb.AddSheet(table); err != nil {
			return nil, err
		}
		if err := wb.WriteHeader(columns); err != nil {
			return nil, err
		}
		for _, row := range data {
			values := make([]any, len(columns))
			for i, col := range columns {
				values[i] = row[col]
			}
			if err := wb.WriteRow(values); err != nil {
				logger.Error().Err(err).Str("table", table).Msg("Failed to write row")
			}
		}
		logger.Debug().Str("table", table).Int("rows", len(data)).Msg("Exported table")
	}

	var buf bytes.Buffer
	if err := wb.Save(&buf); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	return &buf, nil
}
