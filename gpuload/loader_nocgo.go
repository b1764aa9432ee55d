//go:build tinygo || !cgo

package gpuload

// Run is a no-op on builds without cgo/OpenGL support: requests drain
// from the intake queue and are silently discarded, so IsLoaded never
// reports a resident cloud and the front keeps requesting loads.
// Mirrors gleval/gpu_nocgo.go's stub pattern, which preserves the full
// exported API shape of the cgo-enabled file for tinygo/headless
// builds.
func (l *Loader) Run() error {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case <-l.stop:
				return
			case <-l.intake:
				// discarded: no GL context available to act on it.
			}
		}
	}()
	return nil
}
