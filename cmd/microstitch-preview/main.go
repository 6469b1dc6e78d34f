// Command microstitch-preview prints summary information about a project
// file and optionally renders a decimated preview mosaic. The project is
// read with scanset.LoadInput, which restores only the tile paths, grid and
// stage positions: the affine matrix, stitch rect, stitch positions and
// displacements it prints are zero, and the preview places every tile at
// stitch position (0, 0). It plays
// the same "quick inspection" role as the teacher's cmd/coginfo/main.go —
// a fast look at what a solve produced before committing to a full-
// resolution composite.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/labtile/microstitch/internal/compositor"
	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/provider"
	"github.com/labtile/microstitch/internal/scanset"
)

func main() {
	var (
		out        string
		decimation int
		cropW      int
		cropH      int
	)
	flag.StringVar(&out, "out", "", "Write a decimated preview mosaic TIFF to this path")
	flag.IntVar(&decimation, "decimation", 8, "Downscale factor applied to the preview mosaic")
	flag.IntVar(&cropW, "crop-w", 512, "Tile crop width used when loading each tile")
	flag.IntVar(&cropH, "crop-h", 512, "Tile crop height used when loading each tile")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: microstitch-preview [flags] <project.yaml>\n\n")
		fmt.Fprintf(os.Stderr, "Print summary information about a project (input sections only), and optionally render a quick, decimated preview mosaic.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	path := args[0]

	set, err := scanset.LoadInput(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", path, err)
		os.Exit(1)
	}
	if err := set.Freeze(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("File: %s\n", path)
	fmt.Printf("Tiles: %d\n", len(set.Tiles))
	fmt.Printf("Grid: %dx%d\n", set.Grid.Width, set.Grid.Height)
	fmt.Printf("Stage origin: %v\n", set.StageOrigin)
	fmt.Printf("Affine stage->image: %v\n", set.AffineStageToImage)
	fmt.Printf("Stitch rect: min=%v max=%v (%dx%d)\n",
		set.StitchRect.Min, set.StitchRect.Max, set.StitchRect.Width(), set.StitchRect.Height())

	origin := set.TileAt(0, 0)
	fmt.Printf("\nOrigin tile: %s\n", origin.Path)
	fmt.Printf("  grid=%v stage=%v stitch=%v\n", origin.GridPosition, origin.StagePosition, origin.StitchPosition)
	for d := geom.Direction(0); d < geom.NumDirections; d++ {
		if set.HasNeighbor(origin.GridPosition, d) {
			fmt.Printf("  displacement[%s]=%v\n", d, origin.Displacements[d])
		}
	}

	if out == "" {
		return
	}

	p := provider.NewFileImageProvider()
	comp := compositor.NewRasterCompositor(p, nil, geom.Point2i{X: cropW, Y: cropH})
	comp.Decimation = decimation
	if err := comp.Composite(set, out); err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering preview: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nPreview (%dx decimated) written to %s\n", decimation, out)
}
