// Command omicron drives the out-of-core octree construction pipeline
// end to end: sorting raw point clouds into Morton order, building the
// hierarchy, and inspecting the resulting binary octree file.
package main

import (
	"fmt"
	"os"

	"github.com/dsilvavinicius/omicron/internal/omlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		_ = omlog.Sync()
		os.Exit(1)
	}
	_ = omlog.Sync()
}
