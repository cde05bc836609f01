package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"watchtrail/internal/core"
)

// DefaultOutputFile is the file name the viewer requests
const DefaultOutputFile = "watch_history_clustered.json"

// WriteClusteredFile writes clustered records as an indented JSON array,
// creating the parent directory when needed. It returns the written path.
func WriteClusteredFile(records []core.ClusteredRecord, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = filepath.Join("data", DefaultOutputFile) // Default output location
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", filepath.Dir(outputPath), err)
	}

	if records == nil {
		records = []core.ClusteredRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode clustered records: %w", err)
	}

	// Write to a sibling temp file first so a running viewer never reads a partial file
	tmp := outputPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write clustered file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		return "", fmt.Errorf("failed to move clustered file into place: %w", err)
	}

	return outputPath, nil
}

// LoadClusteredFile reads a file written by WriteClusteredFile
func LoadClusteredFile(path string) ([]core.ClusteredRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clustered file %s: %w", path, err)
	}

	var records []core.ClusteredRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode clustered file %s: %w", path, err)
	}
	return records, nil
}
