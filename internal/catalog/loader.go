package catalog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Read parses a line-delimited JSON stream of product records. Blank lines
// are skipped; a line that is not valid JSON is an error, since it means the
// catalog file itself is corrupt rather than a single record being
// incomplete.
func Read(r io.Reader) ([]Product, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var products []Product
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var p Product
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, fmt.Errorf("parsing catalog line %d: %w", line, err)
		}
		products = append(products, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return products, nil
}

// Load reads a JSONL catalog file from disk.
func Load(path string) ([]Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
