// Package manager loads driver domains from a manifest, registers them and
// restarts them behind their existing handles.
package manager

import (
	"context"
	stderrors "errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/config"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/drivers/ramblk"
	"github.com/wippyai/faultdomain/drivers/rtc"
	"github.com/wippyai/faultdomain/drivers/shadowblk"
	"github.com/wippyai/faultdomain/errors"
	"github.com/wippyai/faultdomain/heap"
	"github.com/wippyai/faultdomain/metrics"
	"github.com/wippyai/faultdomain/unwind"
)

// Status describes one loaded domain.
type Status struct {
	Started  time.Time
	Name     string
	Target   string
	Kind     domain.Kind
	ID       faultdomain.ID
	Restarts int
	Instance uuid.UUID
}

type instance struct {
	started  time.Time
	blk      *unwind.Blk
	disk     *ramblk.Disk
	rtc      *unwind.Rtc
	shadow   *unwind.ShadowBlk
	cfg      config.DomainConfig
	restarts int
	id       uuid.UUID
}

// Manager owns the lifecycle of loaded domains.
type Manager struct {
	registry *domain.Registry
	heap     *heap.Heap
	metrics  *metrics.Metrics
	domains  map[string]*instance
	group    singleflight.Group
	manifest config.Manifest
	order    []string
	mu       sync.RWMutex
}

// New creates a manager registering domains in registry.
func New(registry *domain.Registry, h *heap.Heap, m *metrics.Metrics) *Manager {
	return &Manager{
		registry: registry,
		heap:     h,
		metrics:  m,
		domains:  make(map[string]*instance),
	}
}

// Registry returns the registry domains are published in.
func (m *Manager) Registry() *domain.Registry { return m.registry }

// Heap returns the shared heap domains exchange buffers through.
func (m *Manager) Heap() *heap.Heap { return m.heap }

// Load validates manifest and starts its domains in order. Each domain is
// registered before its Init runs, so later domains can resolve it.
func (m *Manager) Load(ctx context.Context, manifest config.Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.manifest = manifest
	m.mu.Unlock()

	for _, d := range manifest.Domains {
		if err := m.load(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) env(d config.DomainConfig) domain.Env {
	return domain.Env{
		Heap:    m.heap,
		Metrics: m.metrics,
		Name:    d.Name,
		ID:      faultdomain.ID(d.ID),
	}
}

func (m *Manager) load(ctx context.Context, d config.DomainConfig) error {
	env := m.env(d)
	inst := &instance{cfg: d, id: uuid.New(), started: time.Now()}

	var h domain.Handle
	switch d.DomainKind() {
	case domain.KindBlk:
		cfg, err := m.diskConfig(d)
		if err != nil {
			return err
		}
		blk, disk, err := ramblk.Main(ctx, env, cfg)
		if err != nil {
			return err
		}
		inst.blk, inst.disk = blk, disk
		h = domain.NewBlkHandle(d.Name, blk)
	case domain.KindRtc:
		inst.rtc = rtc.Main(env)
		h = domain.NewRtcHandle(d.Name, inst.rtc)
	case domain.KindShadowBlk:
		inst.shadow = shadowblk.Main(env, m.registry)
		h = domain.NewShadowBlkHandle(d.Name, inst.shadow)
	default:
		return errors.InvalidInput(errors.PhaseLoad, "unknown domain kind "+d.Kind)
	}

	if err := m.registry.Register(h); err != nil {
		m.closeDisk(ctx, inst.disk)
		return err
	}

	var err error
	switch {
	case inst.rtc != nil:
		err = inst.rtc.Init(ctx, d.Region())
	case inst.shadow != nil:
		err = inst.shadow.Init(ctx, d.Target)
	}
	if err != nil {
		m.registry.Remove(d.Name)
		return err
	}

	m.mu.Lock()
	m.domains[d.Name] = inst
	m.order = append(m.order, d.Name)
	m.mu.Unlock()

	Logger().Info("domain loaded",
		zap.String("domain", d.Name),
		zap.String("kind", d.Kind),
		zap.Uint64("id", d.ID),
		zap.Stringer("instance", inst.id))
	return nil
}

func (m *Manager) diskConfig(d config.DomainConfig) (ramblk.Config, error) {
	m.mu.RLock()
	limit := m.manifest.EffectiveMemoryLimit(d)
	m.mu.RUnlock()

	cfg := ramblk.Config{Sectors: d.Sectors, MemoryLimitPages: limit}
	if d.Image != "" {
		img, err := os.ReadFile(d.Image)
		if err != nil {
			return ramblk.Config{}, errors.Load("read image for "+d.Name, err)
		}
		cfg.Image = img
	}
	return cfg, nil
}

// Restart replaces the named domain's implementation with a fresh instance
// behind the same handle, so holders of the handle keep working. Heap slots
// owned by the domain are reclaimed; calls in flight during a restart may
// fail. Concurrent restarts of one domain run once.
func (m *Manager) Restart(ctx context.Context, name string) error {
	_, err, shared := m.group.Do(name, func() (any, error) {
		return nil, m.restart(ctx, name)
	})
	if shared {
		Logger().Debug("restart shared", zap.String("domain", name))
	}
	return err
}

func (m *Manager) restart(ctx context.Context, name string) error {
	m.mu.RLock()
	inst, ok := m.domains[name]
	m.mu.RUnlock()
	if !ok {
		return errors.NotFound(errors.PhaseLoad, "domain", name)
	}

	d := inst.cfg
	env := m.env(d)
	var oldDisk *ramblk.Disk

	switch {
	case inst.blk != nil:
		cfg, err := m.diskConfig(d)
		if err != nil {
			return err
		}
		disk, err := ramblk.New(ctx, env, cfg)
		if err != nil {
			return err
		}
		inst.blk.Replace(disk)
		m.mu.Lock()
		oldDisk, inst.disk = inst.disk, disk
		m.mu.Unlock()
	case inst.rtc != nil:
		fresh := rtc.New(env)
		if err := unwind.WrapRtc(env, fresh).Init(ctx, d.Region()); err != nil {
			return err
		}
		inst.rtc.Replace(fresh)
	case inst.shadow != nil:
		fresh := shadowblk.New(env, m.registry)
		if err := unwind.WrapShadowBlk(env, fresh).Init(ctx, d.Target); err != nil {
			return err
		}
		inst.shadow.Replace(fresh)
	}

	reclaimed := m.heap.ReclaimOwner(env.ID)
	m.closeDisk(ctx, oldDisk)
	m.metrics.IncrementRestarts(name)

	m.mu.Lock()
	inst.id = uuid.New()
	inst.started = time.Now()
	inst.restarts++
	id, restarts := inst.id, inst.restarts
	m.mu.Unlock()

	Logger().Info("domain restarted",
		zap.String("domain", name),
		zap.Uint64("id", d.ID),
		zap.Stringer("instance", id),
		zap.Int("restarts", restarts),
		zap.Int("reclaimed", reclaimed))
	return nil
}

func (m *Manager) closeDisk(ctx context.Context, d *ramblk.Disk) {
	if d == nil {
		return
	}
	if err := d.Close(ctx); err != nil {
		Logger().Warn("close ramdisk", zap.Error(err))
	}
}

// Disk returns the ramdisk currently backing the named block domain.
func (m *Manager) Disk(name string) (*ramblk.Disk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.domains[name]
	if !ok || inst.disk == nil {
		return nil, false
	}
	return inst.disk, true
}

// Status reports loaded domains in load order.
func (m *Manager) Status() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.order))
	for _, name := range m.order {
		inst := m.domains[name]
		out = append(out, Status{
			Name:     name,
			Kind:     inst.cfg.DomainKind(),
			ID:       faultdomain.ID(inst.cfg.ID),
			Target:   inst.cfg.Target,
			Instance: inst.id,
			Started:  inst.started,
			Restarts: inst.restarts,
		})
	}
	return out
}

// Close releases the wazero runtimes behind block domains. Handles stay
// registered, but block calls fail afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, name := range m.order {
		inst := m.domains[name]
		if inst.disk == nil {
			continue
		}
		if err := inst.disk.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		inst.disk = nil
	}
	return stderrors.Join(errs...)
}
