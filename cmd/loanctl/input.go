package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/documents"
	"loan-workers/internal/pipeline"
)

// readInput reads path, or stdin when path is "-".
func readInput(in io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(path)
}

// readApplication decodes a single application. JSON is valid YAML, so one
// decoder serves both.
func readApplication(in io.Reader, path string) (pipeline.Application, error) {
	var app pipeline.Application
	data, err := readInput(in, path)
	if err != nil {
		return app, err
	}
	if err := yaml.Unmarshal(data, &app); err != nil {
		return app, fmt.Errorf("decode application %s: %w", path, err)
	}
	return app, nil
}

// readApplications accepts either a list of applications or a document with
// an "applications" key.
func readApplications(in io.Reader, path string) ([]pipeline.Application, error) {
	data, err := readInput(in, path)
	if err != nil {
		return nil, err
	}
	var list []pipeline.Application
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Applications []pipeline.Application `yaml:"applications"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode applications %s: %w", path, err)
	}
	return wrapped.Applications, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeOutput(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		return writeJSON(w, v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func seededRandom(seed int64) pipeline.Random {
	if seed == 0 {
		return pipeline.NewSystemRandom()
	}
	return pipeline.NewSeededRandom(seed)
}

// letterGenerator returns nil when dir is empty, which disables sanction
// letters.
func letterGenerator(dir string, log logger.Logger) (pipeline.DocumentGenerator, error) {
	if dir == "" {
		return nil, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	gen, err := documents.NewSanctionLetterGenerator(abs, "file://"+abs, log)
	if err != nil {
		return nil, err
	}
	return gen, nil
}
