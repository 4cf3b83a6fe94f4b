package utils

import (
	"os"
	"path"
	"sort"
	"strings"
)

// IsFile tests wether given path exists and is a file. Any stat failure
// counts as "no file", including ENOTDIR and permission errors.
func IsFile(filePath string) bool {
	file, err := os.Stat(filePath)

	if err != nil {
		return false
	}

	return !file.IsDir()
}

// IsDirectory tests wether given path exists and is a directory. Any stat
// failure counts as "no directory".
func IsDirectory(dirPath string) bool {
	dir, err := os.Stat(dirPath)

	if err != nil {
		return false
	}

	return dir.IsDir()
}

// EnsureDir creates given directory if it doesn't exist yet. Calling it
// on an existing directory is a no-op.
func EnsureDir(dirPath string) error {
	if IsDirectory(dirPath) {
		return nil
	}

	return os.MkdirAll(dirPath, os.ModePerm)
}

// ListByExt returns the paths of all regular files directly inside dirPath
// whose name ends in one of the given extensions. The match is
// case-sensitive and the listing is non-recursive. Results are sorted by
// name so batch runs process files in a stable order.
func ListByExt(dirPath string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		for _, ext := range exts {
			if strings.HasSuffix(entry.Name(), ext) {
				files = append(files, path.Join(dirPath, entry.Name()))
				break
			}
		}
	}

	sort.Strings(files)

	return files, nil
}
