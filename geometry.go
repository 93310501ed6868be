package sfs

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Geometry describes the sizing of a disk image. DefaultGeometry reproduces
// the compile-time constants of spec.md §3; the other presets are provided
// for images smaller or larger than the default, following the same named-
// preset pattern the teacher uses for its disk geometry table (disks.go),
// just scoped to this file system's own sizing knobs instead of physical
// floppy geometry.
type Geometry struct {
	Name            string `csv:"name"`
	AllocationBytes uint   `csv:"allocation_bytes"`
	NumInodeBlocks  uint   `csv:"num_inode_blocks"`
	BlockSize       uint   `csv:"block_size"`
}

// NumTotalBlocks returns the total number of fixed-size blocks in an image
// with this geometry.
func (g Geometry) NumTotalBlocks() uint {
	return g.AllocationBytes / g.BlockSize
}

// NumDataBlocks returns the number of blocks left over for file/directory
// payloads once the super block and inode table are accounted for.
func (g Geometry) NumDataBlocks() uint {
	return g.NumTotalBlocks() - g.NumInodeBlocks - 1
}

// DataBlockStart returns the first block number available for data.
func (g Geometry) DataBlockStart() uint {
	return 1 + g.NumInodeBlocks
}

//go:embed geometry-presets.csv
var geometryPresetsRawCSV string

var geometryPresets map[string]Geometry

func init() {
	geometryPresets = make(map[string]Geometry)

	reader := strings.NewReader(geometryPresetsRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Geometry) error {
		if _, exists := geometryPresets[row.Name]; exists {
			return fmt.Errorf("duplicate geometry preset %q", row.Name)
		}
		geometryPresets[row.Name] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// DefaultGeometry returns the geometry matching spec.md §3's defaults.
func DefaultGeometry() Geometry {
	geometry, err := GetPredefinedGeometry("default")
	if err != nil {
		panic(err)
	}
	return geometry
}

// GetPredefinedGeometry looks up a named geometry preset.
func GetPredefinedGeometry(name string) (Geometry, error) {
	geometry, ok := geometryPresets[name]
	if ok {
		return geometry, nil
	}
	return Geometry{}, fmt.Errorf("no predefined geometry exists with name %q", name)
}
