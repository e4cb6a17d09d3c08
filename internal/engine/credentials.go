package engine

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadAPIKey reads the API key from the first line of path.
func LoadAPIKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("api key: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("api key: read %s: %w", path, err)
		}
		return "", nil
	}
	return strings.TrimSpace(sc.Text()), nil
}

// LoadCountryCodes reads one country code per line, trimming whitespace.
// Blank lines are skipped; codes are not validated.
func LoadCountryCodes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("country codes: %w", err)
	}
	defer f.Close()

	var codes []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		code := strings.TrimSpace(sc.Text())
		if code == "" {
			continue
		}
		codes = append(codes, code)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("country codes: read %s: %w", path, err)
	}
	return codes, nil
}
