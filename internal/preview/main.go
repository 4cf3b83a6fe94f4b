package preview

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"math"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/geoprep/modisprep/internal/utils"
	"github.com/nfnt/resize"
	"golang.org/x/sync/semaphore"
)

var sizes = []uint{128, 256, 512}

// Run is the preview subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {

	start := time.Now()

	inPtr := flagSet.String("in", "", "Path to directory of clipped GeoTIFFs")
	outPtr := flagSet.String("out", "", "Path to output directory")

	flagSet.Parse(os.Args[2:])

	// make sure both flags are present
	if *inPtr == "" || *outPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	if !utils.IsDirectory(*inPtr) {
		log.Fatal(fmt.Errorf("%s does not exists or is no directory", *inPtr))
	}

	utils.RegisterDrivers()

	fmt.Println("▶️  Building quicklooks")
	if err := Build(*inPtr, *outPtr); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\n    🎉  Finished in %s\n", time.Now().Sub(start).String())
}

var sem = semaphore.NewWeighted(int64(runtime.NumCPU()))

// Build renders grayscale quicklook PNGs for every .tif in srcDir: band 1
// is stretched to 8 bit and written once per size in the sizes table as
// <basename>_<size>.png.
func Build(srcDir string, outDir string) error {
	files, err := utils.ListByExt(srcDir, ".tif")
	if err != nil {
		return err
	}

	if err := utils.EnsureDir(outDir); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg := sync.WaitGroup{}
	for _, file := range files {
		wg.Add(1)
		go func(file string) {
			defer wg.Done()

			if err := sem.Acquire(context.Background(), 1); err != nil {
				fail(err)
				return
			}
			defer sem.Release(1)

			if err := quicklook(file, outDir); err != nil {
				fail(err)
			}
		}(file)
	}
	wg.Wait()

	return firstErr
}

func quicklook(tifPath string, outDir string) error {
	ds, err := godal.Open(tifPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", tifPath, err)
	}
	defer ds.Close()

	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY

	buffer := make([]float32, width*height)
	if err := ds.Bands()[0].Read(0, 0, buffer, width, height); err != nil {
		return fmt.Errorf("reading %s: %w", tifPath, err)
	}

	img := stretch(buffer, width, height)
	base := strings.TrimSuffix(path.Base(tifPath), ".tif")

	for _, size := range sizes {
		factor := float64(size) / float64(width)
		h := uint(math.Max(1, float64(height)*factor))

		scaled := resize.Resize(size, h, img, resize.MitchellNetravali)

		outPath := path.Join(outDir, fmt.Sprintf("%s_%d.png", base, size))
		if err := saveImage(outPath, scaled); err != nil {
			return err
		}
		fmt.Printf("    ✔️  Built %s\n", outPath)
	}

	return nil
}

// stretch maps pixel values linearly onto 0..255 using the finite
// min/max of the band. NaN and infinite pixels come out black.
func stretch(buffer []float32, width int, height int) *image.Gray {
	min := math.Inf(1)
	max := math.Inf(-1)

	for _, v := range buffer {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}

	img := image.NewGray(image.Rect(0, 0, width, height))

	if min >= max {
		return img
	}

	for i, v := range buffer {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		img.Pix[i] = uint8(255 * (f - min) / (max - min))
	}

	return img
}

func saveImage(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
