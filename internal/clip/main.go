package clip

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/geoprep/modisprep/internal/config"
	"github.com/geoprep/modisprep/internal/utils"
	"github.com/geoprep/modisprep/internal/validate"
	"github.com/paulmach/orb"
	geojson "github.com/paulmach/orb/geojson"
)

// Boundary is the study area read from a reference vector file: the clip
// geometry of every feature plus the file's coordinate reference system.
type Boundary struct {
	WKT    string // CRS of the vector file, empty if it carries none
	Shapes *geojson.FeatureCollection
	Bound  orb.Bound // union of all feature bounds, in the file's CRS
}

// Run is the clip subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {

	start := time.Now()

	inPtr := flagSet.String("in", "", "Path to directory of composite GeoTIFFs")
	shpPtr := flagSet.String("shp", "", "Path to boundary shapefile")
	outPtr := flagSet.String("out", "", "Path to output directory")
	srsPtr := flagSet.String("t_srs", "", "Optional target CRS override, e.g. EPSG:4326")

	flagSet.Parse(os.Args[2:])

	// make sure all required flags are present
	if *inPtr == "" || *shpPtr == "" || *outPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	if !utils.IsDirectory(*inPtr) {
		log.Fatal(fmt.Errorf("%s does not exists or is no directory", *inPtr))
	}

	if err := validate.Shapefile(*shpPtr); err != nil {
		log.Fatal(err)
	}

	utils.RegisterDrivers()

	fmt.Println("▶️  Reprojecting and clipping composites")
	if err := Stage(*inPtr, *shpPtr, *outPtr, *srsPtr); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\n    🎉  Finished in %s\n", time.Now().Sub(start).String())
}

// Stage reprojects every .tif directly inside srcDir to the CRS of the
// boundary file (or targetCRS when given), clips it to the union of the
// boundary geometries and writes the result to outDir as
// <basename>_clipped.tif. A folder without .tif files produces no outputs
// and no error.
func Stage(srcDir string, boundaryPath string, outDir string, targetCRS string) error {
	boundary, err := ReadBoundary(boundaryPath)
	if err != nil {
		return err
	}

	crs := boundary.WKT
	if targetCRS != "" {
		crs = config.NormalizeCRS(targetCRS)
	}
	if crs == "" {
		return fmt.Errorf("%s carries no CRS and no target CRS was given", boundaryPath)
	}

	if err := utils.EnsureDir(outDir); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	files, err := utils.ListByExt(srcDir, ".tif")
	if err != nil {
		return err
	}

	b := boundary.Bound
	fmt.Printf("ℹ️  Clip boundary covers [%f %f %f %f] (%d features)\n",
		b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y(), len(boundary.Shapes.Features))

	cutline, err := writeCutline(boundary.Shapes)
	if err != nil {
		return err
	}
	defer os.Remove(cutline)

	for _, file := range files {
		outPath := clippedPath(outDir, file)
		if err := warp(file, outPath, crs, cutline); err != nil {
			return err
		}
		fmt.Printf("    ✔️  Clipped %s\n", outPath)
	}

	return nil
}

// ReadBoundary opens a vector file and collects its CRS and the geometry
// of every feature across all layers.
func ReadBoundary(boundaryPath string) (*Boundary, error) {
	ds, err := godal.Open(boundaryPath, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("opening boundary %s: %w", boundaryPath, err)
	}
	defer ds.Close()

	layers := ds.Layers()
	if len(layers) == 0 {
		return nil, fmt.Errorf("%s contains no layers", boundaryPath)
	}

	var wkt string
	if srs := layers[0].SpatialRef(); srs != nil {
		wkt, err = srs.WKT()
		if err != nil {
			return nil, fmt.Errorf("reading CRS of %s: %w", boundaryPath, err)
		}
	}

	shapes := geojson.NewFeatureCollection()
	var bound orb.Bound

	for _, layer := range layers {
		layer.ResetReading()
		for {
			feature := layer.NextFeature()
			if feature == nil {
				break
			}

			geometry := feature.Geometry()
			if geometry == nil {
				feature.Close()
				continue
			}

			js, err := geometry.GeoJSON()
			feature.Close()
			if err != nil {
				return nil, fmt.Errorf("reading feature geometry of %s: %w", boundaryPath, err)
			}

			decoded, err := geojson.UnmarshalGeometry([]byte(js))
			if err != nil {
				return nil, fmt.Errorf("decoding feature geometry of %s: %w", boundaryPath, err)
			}

			geom := decoded.Geometry()
			if len(shapes.Features) == 0 {
				bound = geom.Bound()
			} else {
				bound = bound.Union(geom.Bound())
			}
			shapes.Append(geojson.NewFeature(geom))
		}
	}

	if len(shapes.Features) == 0 {
		return nil, fmt.Errorf("%s contains no feature geometries", boundaryPath)
	}

	return &Boundary{WKT: wkt, Shapes: shapes, Bound: bound}, nil
}

// warp reprojects srcPath to the target CRS with nearest-neighbor
// resampling, cropped to the cutline geometries.
func warp(srcPath string, outPath string, crs string, cutline string) error {
	src, err := godal.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer src.Close()

	switches := []string{
		"-of", "GTiff",
		"-t_srs", crs,
		"-r", "near",
		"-cutline", cutline,
		"-crop_to_cutline",
	}

	out, err := src.Warp(outPath, switches)
	if err != nil {
		return fmt.Errorf("reprojecting %s: %w", srcPath, err)
	}

	return out.Close()
}

// writeCutline dumps the clip shapes to a temporary GeoJSON file for
// gdalwarp's -cutline switch. The caller removes the file.
func writeCutline(shapes *geojson.FeatureCollection) (string, error) {
	data, err := shapes.MarshalJSON()
	if err != nil {
		return "", err
	}

	file, err := os.CreateTemp("", "cutline-*.geojson")
	if err != nil {
		return "", err
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}

	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", err
	}

	return file.Name(), nil
}

func clippedPath(outDir string, srcPath string) string {
	base := strings.TrimSuffix(path.Base(srcPath), ".tif")
	return path.Join(outDir, base+"_clipped.tif")
}
