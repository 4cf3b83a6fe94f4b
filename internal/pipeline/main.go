package pipeline

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/geoprep/modisprep/internal/clip"
	"github.com/geoprep/modisprep/internal/composite"
	"github.com/geoprep/modisprep/internal/config"
	"github.com/geoprep/modisprep/internal/extract"
	"github.com/geoprep/modisprep/internal/preview"
	"github.com/geoprep/modisprep/internal/utils"
	"github.com/geoprep/modisprep/internal/validate"
)

// Run is the run subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {

	start := time.Now()

	hdfPtr := flagSet.String("hdf", "", "Path to HDF source directory")
	tiffPtr := flagSet.String("tiff", "", "Path to extracted GeoTIFF directory")
	compositePtr := flagSet.String("composite", "", "Path to composite directory")
	clippedPtr := flagSet.String("clipped", "", "Path to clipped output directory")
	shpPtr := flagSet.String("shp", "", "Path to boundary shapefile")
	sdsPtr := flagSet.String("subdatasets", "", "Comma-separated subdataset indices, e.g. 11,12,13")
	configPtr := flagSet.String("config", "", "Optional path to JSON config file")
	srsPtr := flagSet.String("t_srs", "", "Optional target CRS override, e.g. EPSG:4326")
	previewPtr := flagSet.String("preview", "", "Optional path to quicklook output directory")

	flagSet.Parse(os.Args[2:])

	var cfg config.Config
	var err error

	if *configPtr != "" {
		cfg, err = config.Read(*configPtr)
		if err != nil {
			log.Fatal(err)
		}
	}

	// flag values win over config file values
	if *hdfPtr != "" {
		cfg.HDFDir = *hdfPtr
	}
	if *tiffPtr != "" {
		cfg.TiffDir = *tiffPtr
	}
	if *compositePtr != "" {
		cfg.CompositeDir = *compositePtr
	}
	if *clippedPtr != "" {
		cfg.ClippedDir = *clippedPtr
	}
	if *shpPtr != "" {
		cfg.Shapefile = *shpPtr
	}
	if *srsPtr != "" {
		cfg.TargetCRS = *srsPtr
	}
	if *previewPtr != "" {
		cfg.PreviewDir = *previewPtr
	}
	if *sdsPtr != "" {
		cfg.Subdatasets, err = config.ParseIndexList(*sdsPtr)
		if err != nil {
			log.Fatal(err)
		}
	}

	// make sure the config is complete
	if cfg.HDFDir == "" || cfg.TiffDir == "" || cfg.CompositeDir == "" ||
		cfg.ClippedDir == "" || cfg.Shapefile == "" || len(cfg.Subdatasets) == 0 {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	if err := validate.Shapefile(cfg.Shapefile); err != nil {
		log.Fatal(err)
	}

	if err := Execute(cfg); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\n    🎉  Finished in %s\n", time.Now().Sub(start).String())
}

// Execute drives the whole pipeline: extract and stack every HDF file in
// cfg.HDFDir, then reproject and clip all composites against the boundary
// shapefile. The first error aborts the batch; there is no per-file
// isolation.
func Execute(cfg config.Config) error {
	if err := validate.HDFDirectory(cfg.HDFDir); err != nil {
		return err
	}

	for _, dir := range []string{cfg.TiffDir, cfg.CompositeDir, cfg.ClippedDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	files, err := utils.ListByExt(cfg.HDFDir, ".hdf", ".h5")
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Println("ℹ️  No HDF files found in", cfg.HDFDir)
		return nil
	}

	utils.RegisterDrivers()

	for _, file := range files {
		timer := time.Now()
		fmt.Printf("▶️  Processing %s\n", path.Base(file))

		tiffs, err := extract.HDF(file, cfg.TiffDir, cfg.Subdatasets)
		if err != nil {
			return err
		}

		base := strings.TrimSuffix(path.Base(file), path.Ext(file))
		compositePath := path.Join(cfg.CompositeDir, base+"_composite.tif")

		if err := composite.Build(tiffs, compositePath); err != nil {
			return err
		}

		fmt.Printf("✔️  Processed %s in %s\n", path.Base(file), time.Now().Sub(timer).String())
	}

	timer := time.Now()
	fmt.Println("▶️  Reprojecting and clipping composites")
	if err := clip.Stage(cfg.CompositeDir, cfg.Shapefile, cfg.ClippedDir, cfg.TargetCRS); err != nil {
		return err
	}
	fmt.Println("✔️  Reprojected and clipped composites in", time.Now().Sub(timer).String())

	if cfg.PreviewDir != "" {
		timer = time.Now()
		fmt.Println("▶️  Building quicklooks")
		if err := preview.Build(cfg.ClippedDir, cfg.PreviewDir); err != nil {
			return err
		}
		fmt.Println("✔️  Built quicklooks in", time.Now().Sub(timer).String())
	}

	return nil
}
