package clip

import (
	"os"
	"path"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/geoprep/modisprep/internal/utils"
	"github.com/paulmach/orb"
	geojson "github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	utils.RegisterDrivers()
	os.Exit(m.Run())
}

const boundaryJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[0.2, 0.2], [1.8, 0.2], [1.8, 1.8], [0.2, 1.8], [0.2, 0.2]]]
			}
		}
	]
}`

func writeBoundary(t *testing.T) string {
	t.Helper()

	boundaryPath := path.Join(t.TempDir(), "boundary.geojson")
	require.NoError(t, os.WriteFile(boundaryPath, []byte(boundaryJSON), 0o644))

	return boundaryPath
}

func writeGeoTiff(t *testing.T, tifPath string) {
	t.Helper()

	ds, err := godal.Create(godal.GTiff, tifPath, 1, godal.Float32, 10, 10)
	require.NoError(t, err)

	// 10x10 pixels covering lon 0..2, lat 0..2
	require.NoError(t, ds.SetGeoTransform([6]float64{0, 0.2, 0, 2, 0, -0.2}))

	srs, err := godal.NewSpatialRefFromEPSG(4326)
	require.NoError(t, err)
	defer srs.Close()
	require.NoError(t, ds.SetSpatialRef(srs))

	pixels := make([]float32, 100)
	for i := range pixels {
		pixels[i] = float32(i)
	}
	require.NoError(t, ds.Bands()[0].Write(0, 0, pixels, 10, 10))
	require.NoError(t, ds.Close())
}

func TestClippedPath(t *testing.T) {
	assert.Equal(t, "/out/a_composite_clipped.tif", clippedPath("/out", "/composites/a_composite.tif"))
	assert.Equal(t, "/out/b_clipped.tif", clippedPath("/out", "b.tif"))
}

func TestWriteCutline(t *testing.T) {
	shapes := geojson.NewFeatureCollection()
	shapes.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))

	cutline, err := writeCutline(shapes)
	require.NoError(t, err)
	defer os.Remove(cutline)

	data, err := os.ReadFile(cutline)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
	assert.Contains(t, string(data), "Polygon")
}

func TestReadBoundary(t *testing.T) {
	boundary, err := ReadBoundary(writeBoundary(t))
	require.NoError(t, err)

	assert.Len(t, boundary.Shapes.Features, 1)
	assert.InDelta(t, 0.2, boundary.Bound.Min.X(), 1e-9)
	assert.InDelta(t, 0.2, boundary.Bound.Min.Y(), 1e-9)
	assert.InDelta(t, 1.8, boundary.Bound.Max.X(), 1e-9)
	assert.InDelta(t, 1.8, boundary.Bound.Max.Y(), 1e-9)
}

func TestReadBoundaryMissingFile(t *testing.T) {
	_, err := ReadBoundary(path.Join(t.TempDir(), "missing.shp"))
	assert.Error(t, err)
}

func TestStageEmptyFolder(t *testing.T) {
	srcDir := t.TempDir()
	outDir := path.Join(t.TempDir(), "clipped")

	require.NoError(t, Stage(srcDir, writeBoundary(t), outDir, "EPSG:4326"))

	// zero inputs produce zero outputs, but the folder is created
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageIgnoresForeignFiles(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(path.Join(srcDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path.Join(srcDir, "upper.TIF"), []byte("x"), 0o644))

	outDir := path.Join(t.TempDir(), "clipped")
	require.NoError(t, Stage(srcDir, writeBoundary(t), outDir, "EPSG:4326"))

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageClipsComposites(t *testing.T) {
	srcDir := t.TempDir()
	outDir := path.Join(t.TempDir(), "clipped")

	writeGeoTiff(t, path.Join(srcDir, "a_composite.tif"))
	writeGeoTiff(t, path.Join(srcDir, "b_composite.tif"))

	require.NoError(t, Stage(srcDir, writeBoundary(t), outDir, ""))

	for _, name := range []string{"a_composite_clipped.tif", "b_composite_clipped.tif"} {
		clipped, err := godal.Open(path.Join(outDir, name))
		require.NoError(t, err)

		structure := clipped.Structure()
		assert.Equal(t, 1, structure.NBands)

		// cropped to the boundary: smaller than the 10x10 source
		assert.Less(t, structure.SizeX, 10)
		assert.Less(t, structure.SizeY, 10)

		require.NoError(t, clipped.Close())
	}
}
