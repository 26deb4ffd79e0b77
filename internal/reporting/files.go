package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"grid-trading-lab/internal/domain"
)

// Output file names written by WriteFiles.
const (
	ReportFile = "REPORT.md"
	GridsFile  = "grids.csv"
	TradesFile = "trades.csv"
	EquityFile = "equity.csv"
)

// WriteFiles renders the report and its CSV tables into dir and returns
// the written paths.
func WriteFiles(dir string, r *Report, values []domain.ValuePoint) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	files := []struct {
		name string
		body string
	}{
		{ReportFile, RenderMarkdown(r)},
		{GridsFile, RenderCSV(r.Grids)},
		{TradesFile, RenderTradesCSV(r.Performance.Trades)},
		{EquityFile, RenderEquityCSV(values)},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.body), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
