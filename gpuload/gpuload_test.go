package gpuload

import (
	"path/filepath"
	"testing"

	"github.com/dsilvavinicius/omicron/hierarchy"
	"github.com/dsilvavinicius/omicron/morton"
	"github.com/dsilvavinicius/omicron/store"
	"github.com/dsilvavinicius/omicron/surfel"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	dir := t.TempDir()
	sstore, err := store.OpenSurfelStore(filepath.Join(dir, "surfels.bin"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sstore.Close() })
	istore, err := store.OpenIndexStore(filepath.Join(dir, "index.bin"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { istore.Close() })
	tangents := surfel.TangentTable{LeafLevel: 10, ParentPointsRatio: 0.125}
	return NewLoader(Config{}, sstore, istore, tangents)
}

// TestRequestLoadQueuesOnlyWithoutHandle checks that RequestLoad queues
// a load request for a node with no GPU handle, and queues nothing once
// a handle is present.
func TestRequestLoadQueuesOnlyWithoutHandle(t *testing.T) {
	l := newTestLoader(t)
	n := &hierarchy.Node{Morton: mustCode(t, 0, 0, 0, 1)}

	l.RequestLoad(n)
	select {
	case req := <-l.intake:
		if req.Kind != ReqLoad || req.Node != n {
			t.Fatalf("unexpected request: %+v", req)
		}
	default:
		t.Fatal("expected a load request to be queued")
	}

	n.GPU = &SurfelCloud{}
	l.RequestLoad(n)
	select {
	case req := <-l.intake:
		t.Fatalf("RequestLoad enqueued again for a node with a GPU handle: %+v", req)
	default:
	}
}

func TestIsLoadedReflectsCloudState(t *testing.T) {
	l := newTestLoader(t)
	n := &hierarchy.Node{Morton: mustCode(t, 0, 0, 0, 1)}
	if l.IsLoaded(n) {
		t.Fatal("node with no GPU handle reported loaded")
	}

	cloud := &SurfelCloud{}
	n.GPU = cloud
	if l.IsLoaded(n) {
		t.Fatal("Loading-state cloud reported loaded")
	}

	cloud.state.Store(int32(StateLoaded))
	if !l.IsLoaded(n) {
		t.Fatal("Loaded-state cloud not reported loaded")
	}
	if cloud.NumPoints() != 0 {
		t.Fatalf("NumPoints() = %d, want 0", cloud.NumPoints())
	}
}

func TestUnloadNoOpWithoutHandle(t *testing.T) {
	l := newTestLoader(t)
	n := &hierarchy.Node{Morton: mustCode(t, 0, 0, 0, 1)}
	l.Unload(n)
	select {
	case req := <-l.intake:
		t.Fatalf("Unload enqueued for a node with no GPU handle: %+v", req)
	default:
	}
}

func TestUsedBytesStartsZero(t *testing.T) {
	l := newTestLoader(t)
	if l.UsedBytes() != 0 {
		t.Fatalf("UsedBytes() = %d, want 0", l.UsedBytes())
	}
}

func mustCode(t *testing.T, x, y, z uint32, level int) morton.Code64 {
	t.Helper()
	c, err := morton.Build(x, y, z, level)
	if err != nil {
		t.Fatal(err)
	}
	return c
}
