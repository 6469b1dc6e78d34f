// Command microstitch-debug prints low-level diagnostics for a single
// tile pair: the raw hierarchical search trace and the resulting overlap
// score, without touching relaxation or compositing. Grounded on the
// teacher's cmd/debug/main.go, which does the same kind of raw-internals
// dump for a single COG tile read.
package main

import (
	"fmt"
	"os"

	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/overlap"
	"github.com/labtile/microstitch/internal/provider"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: microstitch-debug <tile-a> <tile-b> [rangeX rangeY logSteps]\n")
		os.Exit(1)
	}

	pathA, pathB := os.Args[1], os.Args[2]
	rangeX, rangeY, logSteps := 64, 64, 4
	if len(os.Args) >= 6 {
		fmt.Sscanf(os.Args[3], "%d", &rangeX)
		fmt.Sscanf(os.Args[4], "%d", &rangeY)
		fmt.Sscanf(os.Args[5], "%d", &logSteps)
	}

	p := provider.NewFileImageProvider()

	imgA, err := p.GetImage(pathA)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", pathA, err)
		os.Exit(1)
	}
	imgB, err := p.GetImage(pathB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", pathB, err)
		os.Exit(1)
	}

	fa := overlap.FromImage(imgA)
	fb := overlap.FromImage(imgB)

	fmt.Printf("A: %s, %dx%d, %d channel(s)\n", pathA, fa.Width, fa.Height, fa.Channels)
	fmt.Printf("B: %s, %dx%d, %d channel(s)\n", pathB, fb.Width, fb.Height, fb.Channels)

	rng := geom.Point2i{X: rangeX, Y: rangeY}

	fmt.Println("\n--- Exhaustive search (logSteps=0 equivalent) ---")
	exPos, exScore := overlap.FindBestOverlap(fa, fb, geom.Point2i{}, rng, 1)
	fmt.Printf("best offset: %v, score: %g\n", exPos, exScore)

	fmt.Println("\n--- Hierarchical search ---")
	for s := 0; s <= logSteps; s++ {
		pos, score := overlap.IterBestOverlapNC(fa, fb, geom.Point2i{}, rng, s)
		fmt.Printf("logSteps=%d: offset=%v, score=%g\n", s, pos, score)
	}

	if exScore == overlap.BadScore {
		fmt.Println("\nexhaustive search found no valid overlap at this range")
	}
}
