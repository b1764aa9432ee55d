package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dsilvavinicius/omicron/config"
	"github.com/dsilvavinicius/omicron/hierarchy"
	"github.com/dsilvavinicius/omicron/internal/omlog"
	"github.com/dsilvavinicius/omicron/octfile"
	"github.com/dsilvavinicius/omicron/octreedim"
	"github.com/dsilvavinicius/omicron/pointsort"
	"github.com/dsilvavinicius/omicron/store"
	"github.com/soypat/geometry/ms3"
)

func newBuildCmd() *cobra.Command {
	var runDir string
	var configPath string
	var outPath string
	var breadthFirst bool

	cmd := &cobra.Command{
		Use:   "build <run-dir>",
		Short: "Build the octree hierarchy from sorted runs and write a binary octree file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runDir = args[0]
			dim, err := loadDimsSidecar(filepath.Join(runDir, "dims.json"))
			if err != nil {
				return fmt.Errorf("build: load dims sidecar: %w", err)
			}

			var rcfg config.RuntimeConfig
			if configPath != "" {
				rcfg, err = config.LoadRuntimeConfig(configPath)
				if err != nil {
					return err
				}
			} else {
				rcfg = config.RuntimeConfig{NThreads: 4}.Defaulted()
			}

			runPaths, err := findRunFiles(runDir)
			if err != nil {
				return err
			}
			omlog.Infof("building from %d run file(s) in %s", len(runPaths), runDir)

			reader, err := pointsort.NewReader(runPaths)
			if err != nil {
				return fmt.Errorf("build: open reader: %w", err)
			}
			defer reader.Close()

			work := filepath.Dir(outPath)
			if work == "" {
				work = "."
			}
			sstore, err := store.OpenSurfelStore(filepath.Join(work, "surfels.bin"))
			if err != nil {
				return err
			}
			defer sstore.Close()
			istore, err := store.OpenIndexStore(filepath.Join(work, "index.bin"))
			if err != nil {
				return err
			}
			defer istore.Close()
			nstore, err := store.OpenNodeStore(filepath.Join(work, "nodes.db"))
			if err != nil {
				return err
			}
			defer nstore.Close()

			bcfg := hierarchy.Config{
				LeafLevel:         dim.Level,
				NWorkers:          int(rcfg.NThreads),
				LoadPerThread:     int(rcfg.LoadPerThread),
				RAMQuota:          rcfg.RAMQuota,
				ParentPointsRatio: hierarchy.ParentPointsRatio,
			}
			builder := hierarchy.NewBuilder(bcfg, dim, sstore, istore, nstore)
			root, err := builder.Build(reader)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			omlog.Infof("hierarchy built: root morton=%s", root.Morton)

			fileNode, err := octfile.FromHierarchy(root, sstore, istore)
			if err != nil {
				return fmt.Errorf("build: serialize tree: %w", err)
			}
			ordering := octfile.DepthFirst
			if breadthFirst {
				ordering = octfile.BreadthFirst
			}
			out, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer out.Close()
			if err := octfile.Write(out, fileNode, ordering); err != nil {
				return fmt.Errorf("build: write octree file: %w", err)
			}
			omlog.Infof("wrote octree file to %s", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "runtime config TOML (spec §6); defaults applied if omitted")
	cmd.Flags().StringVar(&outPath, "out", "octree.bin", "output binary octree file path")
	cmd.Flags().BoolVar(&breadthFirst, "breadth-first", false, "write the octree file in breadth-first order")
	return cmd
}

func loadDimsSidecar(path string) (octreedim.Dims, error) {
	f, err := os.Open(path)
	if err != nil {
		return octreedim.Dims{}, err
	}
	defer f.Close()
	var sc dimsSidecar
	if err := json.NewDecoder(f).Decode(&sc); err != nil {
		return octreedim.Dims{}, err
	}
	origin := ms3.Vec{X: sc.OriginX, Y: sc.OriginY, Z: sc.OriginZ}
	size := ms3.Vec{X: sc.SizeX, Y: sc.SizeY, Z: sc.SizeZ}
	return octreedim.New(origin, size, sc.Level), nil
}

func findRunFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("build: read run dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".bin" && e.Name() != "dims.json" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("build: no run files found in %s", dir)
	}
	return paths, nil
}
