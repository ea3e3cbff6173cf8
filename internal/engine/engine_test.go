package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockdisguise/internal/config"
	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/eventbus"
	"github.com/annel0/blockdisguise/internal/storage"
	"github.com/annel0/blockdisguise/internal/vec"
	"github.com/annel0/blockdisguise/internal/world"
)

const overlays = `
crate:
  block:
    actual-block: barrel[facing=up]
    disguised-block: note_block[note=3]
    drops:
      main:
        stick: 2
`

const overlaysReloaded = `
crate:
  block:
    actual-block: barrel[facing=up]
    disguised-block: note_block[note=5]
`

type recorder struct {
	mu     sync.Mutex
	events []*eventbus.Envelope
}

func (r *recorder) handle(_ context.Context, ev *eventbus.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fixture struct {
	dir     string
	world   *world.MemoryWorld
	backend *storage.MemoryBackend
	engine  *Engine
	events  *recorder
}

func setupTestDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "overlay_engine_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func writeDefs(t *testing.T, dir, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "overlays.yml"), []byte(doc), 0644))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := setupTestDir(t)
	defsDir := filepath.Join(dir, "definitions")
	require.NoError(t, os.MkdirAll(defsDir, 0755))
	writeDefs(t, defsDir, overlays)

	cfg := config.Default()
	cfg.Overlay.DataPath = dir
	cfg.Overlay.DefinitionsPath = defsDir
	cfg.Storage.Backend = config.BackendMemory

	f := &fixture{
		dir:     defsDir,
		world:   world.NewMemoryWorld(),
		backend: storage.NewMemoryBackend(),
		events:  &recorder{},
	}
	f.world.AddMaterials("stick")

	token := 0.0
	e, err := New(cfg, f.world, Options{
		Backend: f.backend,
		Random: func() float64 {
			token += 0.25
			return token
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	f.engine = e

	_, err = e.Bus().Subscribe(context.Background(), eventbus.Filter{}, f.events.handle)
	require.NoError(t, err)
	return f
}

func TestNewLoadsDefinitions(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 1, f.engine.Definitions().Len())
	_, ok := f.engine.Definitions().Get("crate")
	assert.True(t, ok)
}

func TestNewWithoutDefinitionsDir(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Overlay.DefinitionsPath = filepath.Join(setupTestDir(t), "missing")

	e, err := New(cfg, world.NewMemoryWorld(), Options{})
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, 0, e.Definitions().Len())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "floppy"
	_, err := New(cfg, world.NewMemoryWorld(), Options{})
	assert.Error(t, err)
}

func TestPlaceViewBreak(t *testing.T) {
	f := newFixture(t)
	loc := world.At("world", 3, 70, 5)
	require.NoError(t, f.world.Put(loc, "oak_log"))

	require.NoError(t, f.engine.OnPlace(loc, "crate", definition.Primary, nil))
	assert.Equal(t, "barrel[facing=up]", f.world.State(loc).String())

	viewer := world.NewMemoryViewer("steve")
	n, err := f.engine.OnChunkView(viewer, storage.KeyOf(loc))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	visible, ok := viewer.Visible(loc.Pos)
	require.True(t, ok)
	assert.Equal(t, "note_block[note=3]", visible.String())

	res, err := f.engine.OnBreak(loc, nil, true)
	require.NoError(t, err)
	assert.True(t, res.WasOverlay)
	assert.True(t, res.DefaultsReplaced)
	assert.True(t, f.world.IsEmpty(loc))
	require.Len(t, f.world.Drops(), 1)

	require.Eventually(t, func() bool {
		return len(f.events.types()) == 3
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{
		eventbus.TypeOverlayPlaced, eventbus.TypeChunkDispatched, eventbus.TypeOverlayDestroyed,
	}, f.events.types())
}

func TestOnPlaceUnknownPublishesNothing(t *testing.T) {
	f := newFixture(t)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "stone"))

	assert.Error(t, f.engine.OnPlace(loc, "nope", definition.Primary, nil))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.events.types())
}

func TestReloadInvalidatesDisguiseCache(t *testing.T) {
	f := newFixture(t)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "oak_log"))
	require.NoError(t, f.engine.OnPlace(loc, "crate", definition.Primary, nil))

	viewer := world.NewMemoryViewer("steve")
	_, err := f.engine.OnChunkView(viewer, storage.KeyOf(loc))
	require.NoError(t, err)
	token := f.engine.Store().Token()

	writeDefs(t, f.dir, overlaysReloaded)
	n, err := f.engine.Reload()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotEqual(t, token, f.engine.Store().Token())

	_, err = f.engine.OnChunkView(viewer, storage.KeyOf(loc))
	require.NoError(t, err)
	visible, ok := viewer.Visible(loc.Pos)
	require.True(t, ok)
	assert.Equal(t, "note_block[note=5]", visible.String())

	require.Eventually(t, func() bool {
		for _, typ := range f.events.types() {
			if typ == eventbus.TypeDefinitionsLoaded {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestPistonMoveAndCancel(t *testing.T) {
	f := newFixture(t)
	loc := world.At("world", 15, 64, 0)
	require.NoError(t, f.world.Put(loc, "oak_log"))
	require.NoError(t, f.engine.OnPlace(loc, "crate", definition.Primary, nil))

	cancel, err := f.engine.OnPistonMove([]world.Location{loc}, vec.East, true)
	require.NoError(t, err)
	assert.False(t, cancel)

	_, ok, err := f.engine.Store().Entry(world.At("world", 16, 64, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	cancel, err = f.engine.OnPistonMove(nil, vec.East, true)
	require.NoError(t, err)
	assert.False(t, cancel)

	require.Eventually(t, func() bool {
		for _, typ := range f.events.types() {
			if typ == eventbus.TypeOverlaysMoved {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestOnBlockUpdate(t *testing.T) {
	f := newFixture(t)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "oak_log"))
	require.NoError(t, f.engine.OnPlace(loc, "crate", definition.Primary, nil))

	state, ok, err := f.engine.OnBlockUpdate(loc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "note_block[note=3]", state)

	_, ok, err = f.engine.OnBlockUpdate(world.At("world", 1, 64, 0))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorageErrorPublished(t *testing.T) {
	f := newFixture(t)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "oak_log"))
	require.NoError(t, f.engine.OnPlace(loc, "crate", definition.Primary, nil))

	f.backend.FailWith(assert.AnError)
	f.engine.Store().Reload()
	_, err := f.engine.OnChunkView(world.NewMemoryViewer("steve"), storage.KeyOf(loc))
	require.Error(t, err)

	require.Eventually(t, func() bool {
		for _, typ := range f.events.types() {
			if typ == eventbus.TypeStorageError {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestOpenBackend(t *testing.T) {
	dir := setupTestDir(t)

	cfg := config.Default()
	cfg.Overlay.DataPath = dir

	for _, backend := range []string{config.BackendFile, config.BackendBadger, config.BackendMemory} {
		cfg.Storage.Backend = backend
		b, err := OpenBackend(cfg)
		require.NoError(t, err, backend)
		require.NoError(t, b.Store("world/chunk.0.0", []byte("x")), backend)
		data, err := b.Load("world/chunk.0.0")
		require.NoError(t, err, backend)
		assert.Equal(t, []byte("x"), data, backend)
		require.NoError(t, b.Close(), backend)
	}

	cfg.Storage.Backend = "floppy"
	_, err := OpenBackend(cfg)
	assert.Error(t, err)
}
