package ramblk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/errors"
	"github.com/wippyai/faultdomain/heap"
	"github.com/wippyai/faultdomain/unwind"
)

// scribble is written over a lent buffer before an injected fault.
const scribble = 0xde

// Config holds configuration for a ramdisk instance
type Config struct {
	// Image seeds the disk from offset 0. It must fit in the disk.
	Image []byte

	// Sectors is the disk size in 512-byte sectors. Must be non-zero.
	Sectors uint32

	// MemoryLimitPages caps the backing memory in wasm pages (64KB each).
	// 0 means no limit beyond what the disk needs.
	MemoryLimitPages uint32
}

// Disk is a block device whose sectors live in the linear memory of a
// memory-only wasm instance. Each Disk owns its own wazero runtime.
type Disk struct {
	runtime wazero.Runtime
	mem     api.Memory
	name    string
	id      faultdomain.ID
	sectors uint32
	crashes atomic.Int32
	mu      sync.RWMutex
}

var _ domain.BlkDevice = (*Disk)(nil)

// New creates a ramdisk instance.
func New(ctx context.Context, env domain.Env, cfg Config) (*Disk, error) {
	if cfg.Sectors == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "ramdisk needs at least one sector")
	}
	size := uint64(cfg.Sectors) * heap.BlockSize
	if uint64(len(cfg.Image)) > size {
		return nil, errors.InvalidInput(errors.PhaseLoad,
			fmt.Sprintf("image of %d bytes does not fit in %d sectors", len(cfg.Image), cfg.Sectors))
	}
	pages := pagesFor(size)
	if pages > maxPages {
		return nil, errors.InvalidInput(errors.PhaseLoad,
			fmt.Sprintf("%d sectors exceed the 4GiB memory limit", cfg.Sectors))
	}
	if cfg.MemoryLimitPages > 0 && pages > cfg.MemoryLimitPages {
		return nil, errors.InvalidInput(errors.PhaseLoad,
			fmt.Sprintf("disk needs %d pages, limit is %d", pages, cfg.MemoryLimitPages))
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := runtime.CompileModule(ctx, memoryModule(pages))
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.Load("compile ramdisk memory", err)
	}
	// anonymous for parallel instantiation
	mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.Load("instantiate ramdisk memory", err)
	}
	mem := mod.ExportedMemory(memoryExport)
	if mem == nil {
		_ = runtime.Close(ctx)
		return nil, errors.Load("ramdisk memory not exported", nil)
	}
	if len(cfg.Image) > 0 && !mem.Write(0, cfg.Image) {
		_ = runtime.Close(ctx)
		return nil, errors.Load("seed ramdisk image", nil)
	}

	Logger().Debug("ramdisk created",
		zap.String("domain", env.Name),
		zap.Uint64("id", uint64(env.ID)),
		zap.Uint32("sectors", cfg.Sectors),
		zap.Uint32("pages", pages),
		zap.Int("image_bytes", len(cfg.Image)))

	return &Disk{
		runtime: runtime,
		mem:     mem,
		name:    env.Name,
		id:      env.ID,
		sectors: cfg.Sectors,
	}, nil
}

// Main creates a ramdisk and wraps it in its boundary. The Disk is returned
// as well so the caller can close it and inject faults.
func Main(ctx context.Context, env domain.Env, cfg Config) (*unwind.Blk, *Disk, error) {
	d, err := New(ctx, env, cfg)
	if err != nil {
		return nil, nil, err
	}
	return unwind.WrapBlk(env, d), d, nil
}

// InjectCrashes makes the next n reads fault after scribbling over the
// lent buffer.
func (d *Disk) InjectCrashes(n int) {
	d.crashes.Store(int32(n))
}

// PendingCrashes returns how many injected faults are left.
func (d *Disk) PendingCrashes() int {
	return int(d.crashes.Load())
}

func (d *Disk) takeCrash() bool {
	for {
		n := d.crashes.Load()
		if n <= 0 {
			return false
		}
		if d.crashes.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (d *Disk) DomainID() faultdomain.ID { return d.id }

func (d *Disk) HandleIRQ(_ context.Context) error { return nil }

func (d *Disk) ReadBlock(_ context.Context, index uint32, data *heap.RRef[heap.Block]) (*heap.RRef[heap.Block], error) {
	if index >= d.sectors {
		return nil, d.outOfRange("read_block", index)
	}
	buf := data.Data()
	if d.takeCrash() {
		for i := range buf {
			buf[i] = scribble
		}
		panic(fmt.Sprintf("ramblk: injected fault reading sector %d", index))
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	view, ok := d.mem.Read(index*heap.BlockSize, heap.BlockSize)
	if !ok {
		return nil, errors.Device("read_block", "memory read failed at sector %d", index)
	}
	copy(buf[:], view)
	return data, nil
}

func (d *Disk) WriteBlock(_ context.Context, index uint32, data heap.Ref[heap.Block]) (int, error) {
	if index >= d.sectors {
		return 0, d.outOfRange("write_block", index)
	}
	blk := data.Load()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.mem.Write(index*heap.BlockSize, blk[:]) {
		return 0, errors.Device("write_block", "memory write failed at sector %d", index)
	}
	return heap.BlockSize, nil
}

func (d *Disk) Capacity(_ context.Context) (uint64, error) {
	return uint64(d.sectors), nil
}

// Flush is a no-op; writes land in memory immediately.
func (d *Disk) Flush(_ context.Context) error {
	return nil
}

// Close releases the wazero runtime backing the disk.
func (d *Disk) Close(ctx context.Context) error {
	return d.runtime.Close(ctx)
}

func (d *Disk) outOfRange(op string, index uint32) error {
	e := errors.Device(op, "sector %d out of range", index)
	e.Cause = errors.OutOfBounds(errors.PhaseDevice, uint64(index), uint64(d.sectors))
	return e
}
