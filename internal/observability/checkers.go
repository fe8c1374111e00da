package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/timfallmk/disk-space-bridge/internal/diskspace"
)

// checkerBase carries the name and timeout shared by every checker.
type checkerBase struct {
	name    string
	timeout time.Duration
}

func (b checkerBase) Name() string           { return b.name }
func (b checkerBase) Timeout() time.Duration { return b.timeout }

// FuncHealthChecker runs an arbitrary check function.
type FuncHealthChecker struct {
	checkerBase
	fn func(ctx context.Context) error
}

// NewFuncHealthChecker returns a checker that calls fn. A nil fn always
// fails.
func NewFuncHealthChecker(name string, timeout time.Duration, fn func(ctx context.Context) error) *FuncHealthChecker {
	return &FuncHealthChecker{checkerBase: checkerBase{name: name, timeout: timeout}, fn: fn}
}

// NewBridgeHealthChecker checks the bridge with a 5s timeout.
func NewBridgeHealthChecker(name string, fn func(ctx context.Context) error) *FuncHealthChecker {
	return NewFuncHealthChecker(name, 5*time.Second, fn)
}

// NewConfigHealthChecker checks configuration validity with a 2s timeout.
func NewConfigHealthChecker(name string, fn func(ctx context.Context) error) *FuncHealthChecker {
	return NewFuncHealthChecker(name, 2*time.Second, fn)
}

func (f *FuncHealthChecker) Check(ctx context.Context) error {
	if f.fn == nil {
		return errors.New("no check function")
	}
	return f.fn(ctx)
}

// RSSFunc reports the resident set size of the current process.
type RSSFunc func(ctx context.Context) (uint64, error)

// ProcessRSS reads this process's resident set size through gopsutil.
func ProcessRSS(ctx context.Context) (uint64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("failed to open process: %w", err)
	}

	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read memory info: %w", err)
	}
	return info.RSS, nil
}

// MemoryHealthChecker fails when the process RSS exceeds a limit.
type MemoryHealthChecker struct {
	checkerBase
	limit uint64
	rss   RSSFunc
}

// NewMemoryHealthChecker returns a checker with a 1s timeout. A zero
// limitBytes disables the check.
func NewMemoryHealthChecker(name string, limitBytes uint64) *MemoryHealthChecker {
	return &MemoryHealthChecker{
		checkerBase: checkerBase{name: name, timeout: time.Second},
		limit:       limitBytes,
		rss:         ProcessRSS,
	}
}

func (m *MemoryHealthChecker) Check(ctx context.Context) error {
	if m.limit == 0 {
		return nil
	}

	rss, err := m.rss(ctx)
	if err != nil {
		return err
	}
	if rss > m.limit {
		return fmt.Errorf("resident memory %d bytes exceeds limit %d bytes", rss, m.limit)
	}
	return nil
}

// DiskSpaceHealthChecker queries free space through the adapter, taking the
// same path as host calls.
type DiskSpaceHealthChecker struct {
	checkerBase
	adapter   *diskspace.Adapter
	path      string
	minFreeMB float64
}

// NewDiskSpaceHealthChecker returns a checker with a 2s timeout that fails
// below minFreeMB. An empty path checks the default (Desktop) volume.
func NewDiskSpaceHealthChecker(name string, adapter *diskspace.Adapter, path string, minFreeMB float64) *DiskSpaceHealthChecker {
	return &DiskSpaceHealthChecker{
		checkerBase: checkerBase{name: name, timeout: 2 * time.Second},
		adapter:     adapter,
		path:        path,
		minFreeMB:   minFreeMB,
	}
}

func (d *DiskSpaceHealthChecker) Check(context.Context) error {
	method, args := diskspace.NameFreeSpace, any(nil)
	if d.path != "" {
		method, args = diskspace.NameFreeSpaceForPath, map[string]any{"path": d.path}
	}

	res := d.adapter.Handle(method, args)
	switch res.Kind {
	case diskspace.KindMegabytes:
	case diskspace.KindError:
		return fmt.Errorf("free space query failed: %w", res.Err)
	default:
		return fmt.Errorf("free space query returned %s", res.Kind)
	}

	if res.Megabytes < d.minFreeMB {
		return fmt.Errorf("free space %.1f MB below minimum %.1f MB", res.Megabytes, d.minFreeMB)
	}
	return nil
}
