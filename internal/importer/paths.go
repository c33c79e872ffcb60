package importer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// attEpochSplit separates the current attitude archive from the early
// mission att_17 tree.
const attEpochSplit = 0x0ce8666f

// DataPath resolves a Level-0 filename to its location in the data archive:
// files are filed by type directory and the first three hex digits of the
// stem. Early mission attitude files live under att_17 instead of att.
func DataPath(dataDir, filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	stw, err := strconv.ParseUint(stem, 16, 64)
	if err != nil || len(stem) < 3 {
		return "", fmt.Errorf("importer: %s: stem is not an stw prefix", filename)
	}

	// No aos tree: the archive never filed AOS data and the import
	// dispatch does not handle it.
	var dir string
	switch ext {
	case "ac1", "ac2", "fba", "shk":
		dir = ext
	case "att":
		dir = "att"
		if stw < attEpochSplit {
			dir = "att_17"
		}
	default:
		return "", fmt.Errorf("importer: %s: unknown file type %q", filename, ext)
	}

	return filepath.Join(dataDir, dir, strings.ToLower(stem[:3]), filename), nil
}
