package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wippyai/faultdomain/config"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/errors"
	"github.com/wippyai/faultdomain/heap"
	"github.com/wippyai/faultdomain/metrics"
)

func newManager(t *testing.T, manifest config.Manifest) *Manager {
	t.Helper()
	ctx := context.Background()
	m := New(domain.NewRegistry(), heap.New(), metrics.New(prometheus.NewRegistry()))
	if err := m.Load(ctx, manifest); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { _ = m.Close(ctx) })
	return m
}

func readFirst(t *testing.T, m *Manager, name string, index uint32) byte {
	t.Helper()
	blk, err := m.Registry().ResolveBlk(name)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	out, err := blk.ReadBlock(context.Background(), index, heap.Fresh[heap.Block](m.Heap()))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return out.Data()[0]
}

func writeFirst(t *testing.T, m *Manager, name string, index uint32, v byte) {
	t.Helper()
	blk, err := m.Registry().ResolveBlk(name)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	src := heap.Fresh[heap.Block](m.Heap())
	src.Data()[0] = v
	ref := src.Borrow()
	defer ref.Release()
	if _, err := blk.WriteBlock(context.Background(), index, ref); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDefault(t *testing.T) {
	m := newManager(t, config.Default())

	st := m.Status()
	if len(st) != 3 {
		t.Fatalf("got %d domains, want 3", len(st))
	}
	want := []struct {
		name string
		kind domain.Kind
	}{
		{"disk0", domain.KindBlk},
		{"rtc0", domain.KindRtc},
		{"shadow0", domain.KindShadowBlk},
	}
	for i, w := range want {
		if st[i].Name != w.name || st[i].Kind != w.kind {
			t.Errorf("status[%d] = %s/%s, want %s/%s", i, st[i].Name, st[i].Kind, w.name, w.kind)
		}
		if st[i].ID == 0 {
			t.Errorf("status[%d] has no id", i)
		}
	}
	if st[2].Target != "disk0" {
		t.Errorf("shadow target = %q", st[2].Target)
	}

	r, err := m.Registry().ResolveRtc("rtc0")
	if err != nil {
		t.Fatalf("resolve rtc0: %v", err)
	}
	out, err := r.ReadTime(context.Background(), heap.NewBox(m.Heap(), heap.RtcTime{}))
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if out.Get().Year < 2024 {
		t.Errorf("year = %d", out.Get().Year)
	}
}

func TestLoadInvalid(t *testing.T) {
	bad := config.Default()
	bad.Domains[2].Target = "rtc0"
	m := New(domain.NewRegistry(), heap.New(), nil)
	if err := m.Load(context.Background(), bad); errors.KindOf(err) != errors.KindInvalidInput {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if len(m.Status()) != 0 {
		t.Error("nothing should be loaded")
	}
}

func TestLoadInitFailureUnregisters(t *testing.T) {
	ctx := context.Background()
	manifest := config.Default()
	manifest.Domains[1].RegionEnd = manifest.Domains[1].RegionStart + 0x10

	m := New(domain.NewRegistry(), heap.New(), metrics.New(prometheus.NewRegistry()))
	t.Cleanup(func() { _ = m.Close(ctx) })
	if err := m.Load(ctx, manifest); err == nil {
		t.Fatal("expected init error for a region smaller than the register block")
	}
	if _, err := m.Registry().Resolve("rtc0"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("rtc0 still registered: %v", err)
	}
	st := m.Status()
	if len(st) != 1 || st[0].Name != "disk0" {
		t.Errorf("status = %+v, want only disk0", st)
	}
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	img := make([]byte, 2*heap.BlockSize)
	img[heap.BlockSize] = 0x77
	if err := os.WriteFile(path, img, 0o600); err != nil {
		t.Fatal(err)
	}
	manifest := config.Default()
	manifest.Domains[0].Image = path

	m := newManager(t, manifest)
	if got := readFirst(t, m, "shadow0", 1); got != 0x77 {
		t.Errorf("sector 1 = %#x, want 0x77", got)
	}
}

func TestShadowRecoversInjectedCrash(t *testing.T) {
	m := newManager(t, config.Default())
	writeFirst(t, m, "disk0", 4, 0x31)

	disk, ok := m.Disk("disk0")
	if !ok {
		t.Fatal("disk0 not found")
	}
	disk.InjectCrashes(1)
	if got := readFirst(t, m, "shadow0", 4); got != 0x31 {
		t.Errorf("read = %#x, want 0x31", got)
	}
}

func TestRestartBlk(t *testing.T) {
	m := newManager(t, config.Default())
	writeFirst(t, m, "disk0", 0, 0x10)
	before := m.Status()[0]

	// a slot still owned by the old instance
	stale := heap.NewBox(m.Heap(), 1).Move(before.ID)
	if !stale.Valid() {
		t.Fatal("stale box should be valid before restart")
	}

	if err := m.Restart(context.Background(), "disk0"); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	after := m.Status()[0]
	if after.Instance == before.Instance {
		t.Error("instance id should change")
	}
	if after.Restarts != 1 {
		t.Errorf("restarts = %d, want 1", after.Restarts)
	}
	if stale.Valid() {
		t.Error("slots owned by the old instance should be reclaimed")
	}
	if got := testutil.ToFloat64(m.metrics.Restarts.WithLabelValues("disk0")); got != 1 {
		t.Errorf("restart metric = %v, want 1", got)
	}

	// fresh ramdisk, same handle: the shadow keeps working
	if got := readFirst(t, m, "shadow0", 0); got != 0 {
		t.Errorf("read after restart = %#x, want a fresh disk", got)
	}
}

func TestRestartRtcAndShadow(t *testing.T) {
	m := newManager(t, config.Default())
	ctx := context.Background()

	for _, name := range []string{"rtc0", "shadow0"} {
		if err := m.Restart(ctx, name); err != nil {
			t.Fatalf("Restart %s: %v", name, err)
		}
	}
	r, err := m.Registry().ResolveRtc("rtc0")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadTime(ctx, heap.NewBox(m.Heap(), heap.RtcTime{})); err != nil {
		t.Errorf("ReadTime after restart: %v", err)
	}
	writeFirst(t, m, "disk0", 2, 0x22)
	if got := readFirst(t, m, "shadow0", 2); got != 0x22 {
		t.Errorf("read through restarted shadow = %#x", got)
	}
}

func TestRestartUnknown(t *testing.T) {
	m := newManager(t, config.Default())
	if err := m.Restart(context.Background(), "nope"); errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestConcurrentRestart(t *testing.T) {
	m := newManager(t, config.Default())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Restart(ctx, "disk0")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Restart: %v", err)
		}
	}

	st := m.Status()[0]
	if st.Restarts < 1 || st.Restarts > 8 {
		t.Errorf("restarts = %d", st.Restarts)
	}
	if got := testutil.ToFloat64(m.metrics.Restarts.WithLabelValues("disk0")); int(got) != st.Restarts {
		t.Errorf("metric = %v, status = %d", got, st.Restarts)
	}
	if got := readFirst(t, m, "disk0", 0); got != 0 {
		t.Errorf("read = %#x", got)
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	m := New(domain.NewRegistry(), heap.New(), nil)
	if err := m.Load(ctx, config.Default()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := m.Disk("disk0"); ok {
		t.Error("disk should be gone after Close")
	}
}
