package composite

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/geoprep/modisprep/internal/utils"
)

// Run is the composite subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {

	start := time.Now()

	inPtr := flagSet.String("in", "", "Comma-separated list of single-band GeoTIFFs")
	outPtr := flagSet.String("out", "", "Path of composite GeoTIFF to create")

	flagSet.Parse(os.Args[2:])

	// make sure both flags are present
	if *inPtr == "" || *outPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	inputs := strings.Split(*inPtr, ",")
	for _, input := range inputs {
		if !utils.IsFile(input) {
			log.Fatal(fmt.Errorf("%s does not exists or is no file", input))
		}
	}

	utils.RegisterDrivers()

	fmt.Println("▶️  Stacking bands")
	if err := Build(inputs, *outPtr); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\n    🎉  Finished in %s\n", time.Now().Sub(start).String())
}

// Build stacks the given single-band rasters into one multi-band float32
// GeoTIFF at outPath. Band i+1 of the output holds band 1 of inputs[i].
// Dimensions, geotransform and projection are taken from the first input;
// every input must share that grid.
func Build(inputs []string, outPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("cannot build %s: no input rasters given", outPath)
	}

	first, err := godal.Open(inputs[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputs[0], err)
	}

	structure := first.Structure()
	width, height := structure.SizeX, structure.SizeY

	transform, err := first.GeoTransform()
	if err != nil {
		first.Close()
		return fmt.Errorf("reading geotransform of %s: %w", inputs[0], err)
	}

	var projection string
	if srs := first.SpatialRef(); srs != nil {
		projection, err = srs.WKT()
		if err != nil {
			first.Close()
			return fmt.Errorf("reading projection of %s: %w", inputs[0], err)
		}
	}
	first.Close()

	out, err := godal.Create(godal.GTiff, outPath, len(inputs), godal.Float32, width, height)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}

	if err := out.SetGeoTransform(transform); err != nil {
		out.Close()
		return fmt.Errorf("georeferencing %s: %w", outPath, err)
	}
	if projection != "" {
		srs, err := godal.NewSpatialRefFromWKT(projection)
		if err != nil {
			out.Close()
			return fmt.Errorf("georeferencing %s: %w", outPath, err)
		}
		err = out.SetSpatialRef(srs)
		srs.Close()
		if err != nil {
			out.Close()
			return fmt.Errorf("georeferencing %s: %w", outPath, err)
		}
	}

	bands := out.Bands()
	buffer := make([]float32, width*height)

	for i, input := range inputs {
		src, err := godal.Open(input)
		if err != nil {
			out.Close()
			return fmt.Errorf("opening %s: %w", input, err)
		}

		if err := checkGrid(src, input, width, height, transform); err != nil {
			src.Close()
			out.Close()
			return err
		}

		if err := src.Bands()[0].Read(0, 0, buffer, width, height); err != nil {
			src.Close()
			out.Close()
			return fmt.Errorf("reading %s: %w", input, err)
		}
		src.Close()

		if err := bands[i].Write(0, 0, buffer, width, height); err != nil {
			out.Close()
			return fmt.Errorf("writing band %d of %s: %w", i+1, outPath, err)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", outPath, err)
	}

	fmt.Printf("    ✔️  Stacked %d bands into %s\n", len(inputs), outPath)

	return nil
}

// checkGrid verifies that input shares the grid of the first raster. The
// stack copies pixels band by band, so a mismatch here would otherwise
// surface as an opaque write error or silently misaligned bands.
func checkGrid(src *godal.Dataset, input string, width, height int, transform [6]float64) error {
	structure := src.Structure()
	if structure.SizeX != width || structure.SizeY != height {
		return fmt.Errorf("%s is %dx%d, expected %dx%d of first input", input, structure.SizeX, structure.SizeY, width, height)
	}

	srcTransform, err := src.GeoTransform()
	if err != nil {
		return fmt.Errorf("reading geotransform of %s: %w", input, err)
	}
	for i := range transform {
		if math.Abs(srcTransform[i]-transform[i]) > 1e-9 {
			return fmt.Errorf("%s has a different geotransform than the first input", input)
		}
	}

	return nil
}
