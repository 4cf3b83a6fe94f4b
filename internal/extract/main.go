package extract

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
)

// Subdataset is one named raster layer embedded in an HDF container.
type Subdataset struct {
	Name        string // GDAL subdataset URI, e.g. HDF4_EOS:EOS_GRID:"x.hdf":grid:layer
	Description string
}

// Run is the extract subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {

	start := time.Now()

	inPtr := flagSet.String("in", "", "Path to HDF file")
	outPtr := flagSet.String("out", "", "Path to output directory")
	sdsPtr := flagSet.String("subdatasets", "", "Comma-separated subdataset indices, e.g. 11,12,13")

	flagSet.Parse(os.Args[2:])

	// make sure all flags are present
	if *inPtr == "" || *outPtr == "" || *sdsPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	indices, err := config.ParseIndexList(*sdsPtr)
	if err != nil {
		log.Fatal(err)
	}

	if !utils.IsFile(*inPtr) {
		log.Fatal(fmt.Errorf("%s does not exists or is no file", *inPtr))
	}

	if err := utils.EnsureDir(*outPtr); err != nil {
		log.Fatal(err)
	}

	utils.RegisterDrivers()

	fmt.Println("▶️  Extracting subdatasets")
	if _, err := HDF(*inPtr, *outPtr, indices); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\n    🎉  Finished in %s\n", time.Now().Sub(start).String())
}

// HDF opens the HDF container at hdfPath and copies each subdataset
// selected by indices into outDir as a single-band GeoTIFF named
// <hdf basename>_<derived name>_<index>.tif. It returns the produced
// paths in the same order as indices.
func HDF(hdfPath string, outDir string, indices []int) ([]string, error) {
	ds, err := godal.Open(hdfPath)
	if err != nil {
		return nil, fmt.Errorf("opening HDF container %s: %w", hdfPath, err)
	}
	defer ds.Close()

	subs := Subdatasets(ds)
	if len(subs) == 0 {
		return nil, fmt.Errorf("%s contains no subdatasets", hdfPath)
	}

	targets, err := resolveTargets(subs, hdfPath, outDir, indices)
	if err != nil {
		return nil, err
	}

	produced := make([]string, 0, len(targets))
	for _, target := range targets {
		sub, err := godal.Open(target.Subdataset.Name)
		if err != nil {
			return nil, fmt.Errorf("opening subdataset %s: %w", target.Subdataset.Name, err)
		}

		out, err := sub.Translate(target.OutPath, []string{"-of", "GTiff"})
		if err != nil {
			sub.Close()
			return nil, fmt.Errorf("creating %s: %w", target.OutPath, err)
		}
		out.Close()
		sub.Close()

		fmt.Printf("    ✔️  Extracted %s\n", target.OutPath)
		produced = append(produced, target.OutPath)
	}

	return produced, nil
}

// Target pairs one selected subdataset with the GeoTIFF path it will be
// copied to.
type Target struct {
	Subdataset Subdataset
	OutPath    string
}

// resolveTargets checks every requested index against the container's
// subdataset list and derives the output path for it, preserving the
// order of indices.
func resolveTargets(subs []Subdataset, hdfPath string, outDir string, indices []int) ([]Target, error) {
	base := strings.TrimSuffix(path.Base(hdfPath), path.Ext(hdfPath))

	targets := make([]Target, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(subs) {
			return nil, fmt.Errorf("subdataset index %d out of range: %s has %d subdatasets", idx, hdfPath, len(subs))
		}

		sd := subs[idx]
		targets = append(targets, Target{
			Subdataset: sd,
			OutPath:    path.Join(outDir, fmt.Sprintf("%s_%s_%d.tif", base, DeriveName(sd.Description), idx)),
		})
	}

	return targets, nil
}

// Subdatasets lists the subdatasets of an opened container in the order
// GDAL reports them.
func Subdatasets(ds *godal.Dataset) []Subdataset {
	return parseSubdatasets(ds.Metadatas(godal.Domain("SUBDATASETS")))
}

// The SUBDATASETS metadata domain is a flat map keyed
// SUBDATASET_<n>_NAME / SUBDATASET_<n>_DESC with n starting at 1.
func parseSubdatasets(meta map[string]string) []Subdataset {
	var subs []Subdataset

	for i := 1; ; i++ {
		name, ok := meta[fmt.Sprintf("SUBDATASET_%d_NAME", i)]
		if !ok {
			break
		}

		subs = append(subs, Subdataset{
			Name:        name,
			Description: meta[fmt.Sprintf("SUBDATASET_%d_DESC", i)],
		})
	}

	return subs
}

// DeriveName turns a subdataset description into a filename fragment:
// the last colon-delimited segment with spaces replaced by underscores.
func DeriveName(description string) string {
	parts := strings.Split(description, ":")
	return strings.ReplaceAll(parts[len(parts)-1], " ", "_")
}
