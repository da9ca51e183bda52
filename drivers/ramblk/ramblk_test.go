package ramblk

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/errors"
	"github.com/wippyai/faultdomain/heap"
	"github.com/wippyai/faultdomain/metrics"
)

func testEnv() domain.Env {
	return domain.Env{
		Heap:    heap.New(),
		Metrics: metrics.New(prometheus.NewRegistry()),
		Name:    "disk0",
		ID:      1,
	}
}

func newDisk(t *testing.T, cfg Config) (*Disk, domain.Env) {
	t.Helper()
	ctx := context.Background()
	env := testEnv()
	d, err := New(ctx, env, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close(ctx) })
	return d, env
}

func TestMemoryModuleCompiles(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	for _, pages := range []uint32{1, 2, 200} {
		mod, err := r.InstantiateWithConfig(ctx, memoryModule(pages), wazero.NewModuleConfig().WithName(""))
		if err != nil {
			t.Fatalf("pages=%d: %v", pages, err)
		}
		mem := mod.ExportedMemory(memoryExport)
		if mem == nil {
			t.Fatalf("pages=%d: memory not exported", pages)
		}
		if got := mem.Size(); got != pages*pageSize {
			t.Errorf("pages=%d: size = %d, want %d", pages, got, pages*pageSize)
		}
	}
}

func TestPagesFor(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  uint32
	}{
		{0, 0},
		{1, 1},
		{pageSize, 1},
		{pageSize + 1, 2},
		{128 * heap.BlockSize, 1},
		{129 * heap.BlockSize, 2},
	}
	for _, tt := range tests {
		if got := pagesFor(tt.bytes); got != tt.want {
			t.Errorf("pagesFor(%d) = %d, want %d", tt.bytes, got, tt.want)
		}
	}
}

func TestNew_Invalid(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero sectors", Config{}},
		{"image too large", Config{Sectors: 1, Image: make([]byte, heap.BlockSize+1)}},
		{"over memory limit", Config{Sectors: 129, MemoryLimitPages: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, testEnv(), tt.cfg)
			if errors.KindOf(err) != errors.KindInvalidInput {
				t.Fatalf("err = %v, want invalid input", err)
			}
		})
	}
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	d, env := newDisk(t, Config{Sectors: 8})

	src := heap.Fresh[heap.Block](env.Heap)
	for i := range src.Data() {
		src.Data()[i] = byte(i)
	}
	ref := src.Borrow()
	n, err := d.WriteBlock(ctx, 3, ref)
	ref.Release()
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if n != heap.BlockSize {
		t.Errorf("wrote %d bytes, want %d", n, heap.BlockSize)
	}

	out, err := d.ReadBlock(ctx, 3, heap.Fresh[heap.Block](env.Heap))
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if *out.Data() != *src.Data() {
		t.Error("read back different data")
	}

	other, err := d.ReadBlock(ctx, 4, heap.Fresh[heap.Block](env.Heap))
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if *other.Data() != (heap.Block{}) {
		t.Error("untouched sector should be zero")
	}
}

func TestImageSeeding(t *testing.T) {
	image := make([]byte, heap.BlockSize+3)
	image[heap.BlockSize] = 0xAB
	image[heap.BlockSize+2] = 0xCD
	d, env := newDisk(t, Config{Sectors: 2, Image: image})

	out, err := d.ReadBlock(context.Background(), 1, heap.Fresh[heap.Block](env.Heap))
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if out.Data()[0] != 0xAB || out.Data()[2] != 0xCD {
		t.Errorf("sector 1 = % x, want image contents", out.Data()[:3])
	}
}

func TestOutOfRange(t *testing.T) {
	ctx := context.Background()
	d, env := newDisk(t, Config{Sectors: 2})

	_, err := d.ReadBlock(ctx, 2, heap.Fresh[heap.Block](env.Heap))
	if !errors.IsDevice(err) {
		t.Fatalf("read err = %v, want device error", err)
	}
	src := heap.Fresh[heap.Block](env.Heap)
	ref := src.Borrow()
	defer ref.Release()
	if _, err := d.WriteBlock(ctx, 7, ref); !errors.IsDevice(err) {
		t.Fatalf("write err = %v, want device error", err)
	}
}

func TestCapacityFlushIRQ(t *testing.T) {
	ctx := context.Background()
	d, _ := newDisk(t, Config{Sectors: 300})

	c, err := d.Capacity(ctx)
	if err != nil || c != 300 {
		t.Fatalf("Capacity = %d, %v; want 300", c, err)
	}
	if err := d.Flush(ctx); err != nil {
		t.Errorf("Flush: %v", err)
	}
	if err := d.HandleIRQ(ctx); err != nil {
		t.Errorf("HandleIRQ: %v", err)
	}
	if d.DomainID() != 1 {
		t.Errorf("DomainID = %v, want 1", d.DomainID())
	}
}

func TestInjectedCrashThroughBoundary(t *testing.T) {
	ctx := context.Background()
	env := testEnv()
	blk, d, err := Main(ctx, env, Config{Sectors: 4})
	if err != nil {
		t.Fatalf("Main: %v", err)
	}
	defer d.Close(ctx)

	d.InjectCrashes(1)
	buf := heap.Fresh[heap.Block](env.Heap)
	_, err = blk.ReadBlock(ctx, 0, buf)
	if !errors.IsCrash(err) {
		t.Fatalf("err = %v, want crash", err)
	}
	if buf.Valid() {
		t.Error("lent buffer should not be usable after the call")
	}
	if st := env.Heap.Stats(); st.Poisoned != 1 {
		t.Errorf("poisoned = %d, want 1", st.Poisoned)
	}
	if got := testutil.ToFloat64(env.Metrics.Crashes.WithLabelValues("disk0", "read_block")); got != 1 {
		t.Errorf("crashes = %v, want 1", got)
	}

	out, err := blk.ReadBlock(ctx, 0, heap.Fresh[heap.Block](env.Heap))
	if err != nil {
		t.Fatalf("read after crash: %v", err)
	}
	if out.Owner() != faultdomain.NoDomain {
		t.Errorf("owner = %v, want none", out.Owner())
	}
	if d.PendingCrashes() != 0 {
		t.Errorf("pending = %d, want 0", d.PendingCrashes())
	}
}

func TestInjectedCrashScribbles(t *testing.T) {
	d, env := newDisk(t, Config{Sectors: 1})
	d.InjectCrashes(1)

	buf := heap.Fresh[heap.Block](env.Heap)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		_, _ = d.ReadBlock(context.Background(), 0, buf)
	}()
	if buf.Data()[0] != scribble || buf.Data()[heap.BlockSize-1] != scribble {
		t.Error("buffer should be scribbled before the fault")
	}
}

func TestSeparateInstancesIsolated(t *testing.T) {
	ctx := context.Background()
	a, env := newDisk(t, Config{Sectors: 1})
	b, _ := newDisk(t, Config{Sectors: 1})

	src := heap.Fresh[heap.Block](env.Heap)
	src.Data()[0] = 1
	ref := src.Borrow()
	if _, err := a.WriteBlock(ctx, 0, ref); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	ref.Release()

	out, err := b.ReadBlock(ctx, 0, heap.Fresh[heap.Block](env.Heap))
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if out.Data()[0] != 0 {
		t.Error("write to one disk leaked into another")
	}
}
