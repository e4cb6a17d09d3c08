package trending

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_trend/internal/engine"
)

// DatasetWriter persists country datasets under Dir.
type DatasetWriter struct {
	Dir string
}

// FileName is "<YY.DD.MM>_<COUNTRY>_videos.csv".
func FileName(trendingDate, country string) string {
	return trendingDate + "_" + country + "_videos.csv"
}

// Write stores lines, one per line, replacing any same-day file for country.
// lines must already include the header.
func (w DatasetWriter) Write(country, trendingDate string, lines []string) (string, error) {
	if err := os.MkdirAll(w.Dir, 0750); err != nil {
		return "", fmt.Errorf("dataset writer: mkdir %s: %w", w.Dir, err)
	}
	path := filepath.Join(w.Dir, FileName(trendingDate, country))

	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("dataset writer: %w", err)
	}
	engine.IncrFilesWritten()
	return path, nil
}

// Lines renders a dataset: header then one serialized line per record.
func Lines(records []VideoRecord) []string {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, HeaderLine())
	for _, r := range records {
		lines = append(lines, r.Line())
	}
	return lines
}
