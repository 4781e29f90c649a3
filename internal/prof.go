// Package internal holds helpers for the refdb command line.
package internal

import (
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// StartCPUProfile writes a CPU profile to a file, until the returned function is called.
//
// An empty path disables profiling.
func StartCPUProfile(path string) (func() error, error) {
	if path == "" {
		return func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err = pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() error {
		pprof.StopCPUProfile()
		return f.Close()
	}, nil
}

// WriteMemProfile writes the heap and allocs profiles, as path.mem.prof and path.alloc.prof.
//
// An empty path disables profiling.
func WriteMemProfile(path string, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	if logger != nil {
		mstats := new(runtime.MemStats)
		runtime.ReadMemStats(mstats)
		logger.Info("memory profile",
			zap.Uint64("MiB for heap (un-GC)", mstats.Alloc/1024/1024),
			zap.Uint64("MiB for heap (max ever)", mstats.HeapSys/1024/1024),
			zap.Int("num go routines", runtime.NumGoroutine()),
		)
	}
	return multierr.Combine(
		writeProf(path+".mem.prof", "heap"),
		writeProf(path+".alloc.prof", "allocs"),
	)
}

func writeProf(path string, name string) (err error) {
	fprof, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, fprof.Close())
	}()
	return pprof.Lookup(name).WriteTo(fprof, 0)
}
