package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Report is the YAML document written for a batch run
type Report struct {
	Endpoint  string   `yaml:"endpoint"`
	Timestamp string   `yaml:"timestamp"`
	Total     int      `yaml:"total"`
	Failed    int      `yaml:"failed"`
	Results   []Result `yaml:"results"`
}

// Save writes results to path; the format follows the extension
// (.parquet, .jsonl or .yaml/.yml).
func Save(path string, report Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	var err error
	switch ext {
	case ".parquet":
		err = parquet.WriteFile(path, report.Results)
	case ".jsonl", ".json":
		err = saveJSONL(path, report.Results)
	case ".yaml", ".yml":
		err = saveYAML(path, report)
	default:
		return fmt.Errorf("unsupported output format: %s (supported: .parquet, .jsonl, .yaml)", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	slog.Info("Results saved", "path", path, "results", len(report.Results))
	return nil
}

func saveJSONL(path string, results []Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func saveYAML(path string, report Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads results written by Save
func Load(path string) ([]Result, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		rows, err := parquet.ReadFile[Result](path)
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet: %w", err)
		}
		return rows, nil
	case ".jsonl", ".json":
		return loadJSONL(path)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read results: %w", err)
		}
		var report Report
		if err := yaml.Unmarshal(data, &report); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return report.Results, nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl, .yaml)", ext)
	}
}

func loadJSONL(path string) ([]Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer file.Close()

	var results []Result
	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, maxCapacity), maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Result
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading results: %w", err)
	}
	return results, nil
}
