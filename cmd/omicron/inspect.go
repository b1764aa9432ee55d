package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dsilvavinicius/omicron/octfile"
)

type treeStats struct {
	nodes, leaves, surfels, maxDepth int
}

func walkStats(n *octfile.Node, depth int, st *treeStats) {
	st.nodes++
	st.surfels += len(n.Surfels)
	if depth > st.maxDepth {
		st.maxDepth = depth
	}
	if n.IsLeaf() {
		st.leaves++
		return
	}
	for _, c := range n.Children {
		walkStats(c, depth+1, st)
	}
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <octree-file>",
		Short: "Print summary statistics for a binary octree file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			root, ordering, err := octfile.Read(f)
			if err != nil {
				return fmt.Errorf("inspect: %w", err)
			}
			var st treeStats
			walkStats(root, 0, &st)

			orderName := "depth-first"
			if ordering == octfile.BreadthFirst {
				orderName = "breadth-first"
			}
			fmt.Printf("ordering:    %s\n", orderName)
			fmt.Printf("nodes:       %d\n", st.nodes)
			fmt.Printf("leaves:      %d\n", st.leaves)
			fmt.Printf("max depth:   %d\n", st.maxDepth)
			fmt.Printf("surfels:     %d\n", st.surfels)
			return nil
		},
	}
	return cmd
}
