package config

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndexList(t *testing.T) {
	tests := []struct {
		input   string
		want    []int
		wantErr bool
	}{
		{"11,12,13", []int{11, 12, 13}, false},
		{"0", []int{0}, false},
		{" 1, 2 ,3 ", []int{1, 2, 3}, false},
		{"", nil, true},
		{"   ", nil, true},
		{"1,two,3", nil, true},
		{"1,,3", nil, true},
		{"-1,2", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIndexList(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCRS(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"+init=epsg:4326", "EPSG:4326"},
		{"+INIT=EPSG:4326", "EPSG:4326"},
		{"epsg:32637", "EPSG:32637"},
		{"EPSG:4326", "EPSG:4326"},
		{"  EPSG:4326  ", "EPSG:4326"},
		{"epsg:not-a-code", "epsg:not-a-code"},
		{`GEOGCS["WGS 84",DATUM["WGS_1984"]]`, `GEOGCS["WGS 84",DATUM["WGS_1984"]]`},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCRS(tt.input))
		})
	}
}

func TestRead(t *testing.T) {
	configPath := path.Join(t.TempDir(), "config.json")

	data := `{
		"hdfDir": "/data/hdf",
		"tiffDir": "/data/tiff",
		"compositeDir": "/data/composite",
		"clippedDir": "/data/clipped",
		"shapefile": "/data/boundary/area.shp",
		"subdatasets": [11, 12, 13],
		"targetCrs": "EPSG:4326"
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(data), 0o644))

	cfg, err := Read(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/data/hdf", cfg.HDFDir)
	assert.Equal(t, "/data/tiff", cfg.TiffDir)
	assert.Equal(t, "/data/composite", cfg.CompositeDir)
	assert.Equal(t, "/data/clipped", cfg.ClippedDir)
	assert.Equal(t, "/data/boundary/area.shp", cfg.Shapefile)
	assert.Equal(t, []int{11, 12, 13}, cfg.Subdatasets)
	assert.Equal(t, "EPSG:4326", cfg.TargetCRS)
	assert.Empty(t, cfg.PreviewDir)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(path.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestReadMalformed(t *testing.T) {
	configPath := path.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0o644))

	_, err := Read(configPath)
	assert.Error(t, err)
}
