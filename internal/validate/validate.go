package validate

import (
	"fmt"
	"strings"

	"github.com/geoprep/modisprep/internal/utils"
)

// HDFDirectory validates that given directory exists and can serve as an
// HDF source folder
func HDFDirectory(hdfDirPath string) error {
	if !utils.IsDirectory(hdfDirPath) {
		return fmt.Errorf("%s does not exists or is no directory", hdfDirPath)
	}

	return nil
}

// Shapefile validates that given path points to a shapefile with its
// mandatory sidecar files. A missing .prj is tolerated since the target
// CRS may be supplied explicitly instead.
func Shapefile(shpPath string) error {
	if !strings.HasSuffix(shpPath, ".shp") {
		return fmt.Errorf("%s is no .shp file", shpPath)
	}

	if !utils.IsFile(shpPath) {
		return fmt.Errorf("%s does not exists or is no file", shpPath)
	}

	base := strings.TrimSuffix(shpPath, ".shp")

	// check mandatory sidecars
	for _, ext := range []string{".shx", ".dbf"} {
		sidecar := base + ext
		if !utils.IsFile(sidecar) {
			return fmt.Errorf("%s is missing", sidecar)
		}
	}

	return nil
}
