package utils

import (
	"sync"

	"github.com/airbusgeo/godal"
)

var registerOnce sync.Once

// RegisterDrivers initializes GDAL's raster and vector drivers. Safe to
// call more than once; only the first call does anything.
func RegisterDrivers() {
	registerOnce.Do(godal.RegisterAll)
}
