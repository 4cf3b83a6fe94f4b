package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Config holds every knob of the pipeline. The folder paths and the
// subdataset index list used to live as literals at the bottom of a
// script; they are an explicit structure now so the orchestrator can be
// driven from flags or a JSON file.
type Config struct {
	HDFDir       string `json:"hdfDir"`
	TiffDir      string `json:"tiffDir"`
	CompositeDir string `json:"compositeDir"`
	ClippedDir   string `json:"clippedDir"`
	Shapefile    string `json:"shapefile"`
	Subdatasets  []int  `json:"subdatasets"`
	TargetCRS    string `json:"targetCrs,omitempty"`
	PreviewDir   string `json:"previewDir,omitempty"`
}

// Read loads a Config from a JSON file at given path
func Read(configPath string) (Config, error) {

	var val Config

	jsonFile, err := os.Open(configPath)
	if err != nil {
		return val, err
	}
	defer jsonFile.Close()

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return val, err
	}

	if err := json.Unmarshal(byteValue, &val); err != nil {
		return val, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	return val, nil
}

// ParseIndexList parses the comma-separated subdataset index list of the
// -subdatasets flag, e.g. "11,12,13".
func ParseIndexList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("subdataset index list is empty")
	}

	parts := strings.Split(s, ",")
	indices := make([]int, 0, len(parts))

	for _, part := range parts {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid subdataset index %q: %w", part, err)
		}
		if idx < 0 {
			return nil, fmt.Errorf("invalid subdataset index %d: must not be negative", idx)
		}
		indices = append(indices, idx)
	}

	return indices, nil
}

// NormalizeCRS collapses legacy CRS spellings to the canonical authority
// form. Older vector formats carry their CRS as "+init=epsg:4326" or a
// lowercase "epsg:4326"; both become "EPSG:4326". Everything else (WKT,
// proper authority strings) passes through untouched.
func NormalizeCRS(crs string) string {
	trimmed := strings.TrimSpace(crs)

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "+init=") {
		trimmed = trimmed[len("+init="):]
		lower = lower[len("+init="):]
	}

	if code, ok := strings.CutPrefix(lower, "epsg:"); ok {
		if _, err := strconv.Atoi(code); err == nil {
			return "EPSG:" + code
		}
	}

	return trimmed
}
