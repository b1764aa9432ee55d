package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dsilvavinicius/omicron/internal/omlog"
	"github.com/dsilvavinicius/omicron/pointsort"
)

// dimsSidecar records the Dims a sort run discovered, so a later build
// step can reframe Morton codes without re-scanning the input.
type dimsSidecar struct {
	OriginX, OriginY, OriginZ float32
	SizeX, SizeY, SizeZ       float32
	Level                     int
}

func newSortCmd() *cobra.Command {
	var leafLevel int
	var maxRunSurfels int
	var runDir string

	cmd := &cobra.Command{
		Use:   "sort <input-points-file>",
		Short: "Prescan and externally sort a raw point cloud into Morton-ordered runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if runDir == "" {
				runDir = input + ".runs"
			}
			if err := os.MkdirAll(runDir, 0o755); err != nil {
				return fmt.Errorf("sort: create run dir: %w", err)
			}

			dim, err := pointsort.Prescan(input, leafLevel)
			if err != nil {
				return fmt.Errorf("sort: prescan: %w", err)
			}
			omlog.Infof("prescan complete: origin=%+v size=%+v level=%d", dim.Origin, dim.Size, dim.Level)

			s := pointsort.NewSorter(dim, maxRunSurfels, runDir)
			if err := s.Run(input); err != nil {
				return fmt.Errorf("sort: run: %w", err)
			}
			omlog.Infof("wrote %d sorted run(s) to %s", len(s.RunPaths()), runDir)

			sidecar := dimsSidecar{
				OriginX: dim.Origin.X, OriginY: dim.Origin.Y, OriginZ: dim.Origin.Z,
				SizeX: dim.Size.X, SizeY: dim.Size.Y, SizeZ: dim.Size.Z,
				Level: dim.Level,
			}
			f, err := os.Create(filepath.Join(runDir, "dims.json"))
			if err != nil {
				return fmt.Errorf("sort: write dims sidecar: %w", err)
			}
			defer f.Close()
			return json.NewEncoder(f).Encode(sidecar)
		},
	}
	cmd.Flags().IntVar(&leafLevel, "leaf-level", 10, "octree level to sort to")
	cmd.Flags().IntVar(&maxRunSurfels, "max-run-surfels", 1<<20, "surfels per in-memory sort run before flushing")
	cmd.Flags().StringVar(&runDir, "run-dir", "", "directory for sorted run files (default: <input>.runs)")
	return cmd
}
