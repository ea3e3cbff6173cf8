package placement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/resolver"
	"github.com/annel0/blockdisguise/internal/storage"
	"github.com/annel0/blockdisguise/internal/world"
)

const overlays = `
crate:
  item: '{id:"minecraft:barrel",Count:1b}'
  block:
    actual-block: barrel[facing=up]
    disguised-block: note_block[note=3]
    destroy-particles: oak_planks
    destroy-sound: block.wood.break
    drops:
      silk:
        conditions: [silk_touch]
        set-xp: 2
        crate: 1
      luck:
        chance: 0.5
        add-xp: 1.5
        diamond: 1-3
      always:
        multiply-xp: 2
        stick:
          count: 4
          nbt: '{display:{Name:"x"}}'
        unknown_thing: 1
      bogus:
        conditions: [not_an_enchantment]
        coal: 5
      out_of_range:
        chance: 2
        minecraft:coal: 1
ghost:
  block:
    disguised-block: glass
    disguised-block2: tinted_glass
    drops:
      enabled: false
      main:
        stick: 1
`

type fixture struct {
	world   *world.MemoryWorld
	backend *storage.MemoryBackend
	store   *storage.Store
	ctrl    *Controller
}

func newFixture(t *testing.T, random float64) *fixture {
	t.Helper()
	w := world.NewMemoryWorld()
	w.AddMaterials("diamond", "stick", "coal")
	w.AddEnchantments("silk_touch")
	w.AddSounds("block.wood.break")

	defs, err := definition.LoadDocument([]byte(overlays), "overlays.yml")
	require.NoError(t, err)
	defStore := definition.NewStore()
	defStore.Replace(defs)

	backend := storage.NewMemoryBackend()
	store, err := storage.NewStore(backend, storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctrl := New(store, resolver.New(defStore, w), w)
	ctrl.SetRandom(func() float64 { return random })
	return &fixture{world: w, backend: backend, store: store, ctrl: ctrl}
}

func silkPlayer() *world.Player {
	return &world.Player{
		PlayerName: "alex",
		Held:       world.ItemStack{Material: "diamond_pickaxe", Count: 1, Enchantments: []string{"minecraft:silk_touch"}},
	}
}

func TestPlaceUnknownOverlay(t *testing.T) {
	f := newFixture(t, 0)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "stone"))

	err := f.ctrl.Place(loc, "nope", definition.Primary, silkPlayer())
	var unknown *definition.UnknownOverlayTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 0, f.world.Writes())
	assert.Equal(t, 0, f.backend.Writes())
}

func TestPlaceAppliesActualState(t *testing.T) {
	f := newFixture(t, 0)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "oak_log[axis=y]"))

	require.NoError(t, f.ctrl.Place(loc, "crate", definition.Primary, silkPlayer()))
	assert.Equal(t, "barrel[facing=up]", f.world.State(loc).String())

	e, ok, err := f.store.Entry(loc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, storage.Entry{ID: "crate", Slot: definition.Primary}, e)
}

func TestPlaceWithoutActualSourceKeepsCell(t *testing.T) {
	f := newFixture(t, 0)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "glass"))

	require.NoError(t, f.ctrl.Place(loc, "ghost", definition.Secondary, nil))
	assert.Equal(t, "glass", f.world.State(loc).String())
	assert.Equal(t, 0, f.world.Writes())

	e, ok, err := f.store.Entry(loc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, definition.Secondary, e.Slot)
}

func TestDestroyWithoutEntry(t *testing.T) {
	f := newFixture(t, 0)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "stone"))

	res, err := f.ctrl.Destroy(loc, nil, DestroyOptions{DropItems: true, SpawnEffects: true})
	require.NoError(t, err)
	assert.False(t, res.WasOverlay)
	assert.Equal(t, "stone", f.world.State(loc).String())
}

func TestDestroyPrimaryEffectsAndDrops(t *testing.T) {
	f := newFixture(t, 0.25)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "oak_log"))
	require.NoError(t, f.ctrl.Place(loc, "crate", definition.Primary, silkPlayer()))

	res, err := f.ctrl.Destroy(loc, silkPlayer(), DestroyOptions{DropItems: true, SpawnEffects: true})
	require.NoError(t, err)
	assert.True(t, res.WasOverlay)
	assert.True(t, res.DefaultsReplaced)
	assert.True(t, f.world.IsEmpty(loc))

	particles := f.world.Particles()
	require.Len(t, particles, 1)
	assert.Equal(t, "oak_planks", particles[0].State.String())
	sounds := f.world.Sounds()
	require.Len(t, sounds, 1)
	assert.Equal(t, "block.wood.break", sounds[0].Sound)

	assert.Equal(t, 7, res.Drops.XP)
	require.Len(t, res.Drops.Items, 4)
	assert.Equal(t, world.ItemStack{OverlayID: "crate", NBT: `{id:"minecraft:barrel",Count:1b}`, Count: 1}, res.Drops.Items[0])
	assert.Equal(t, world.ItemStack{Material: "diamond", Count: 1}, res.Drops.Items[1])
	assert.Equal(t, world.ItemStack{Material: "stick", Count: 4, MergeNBT: `{display:{Name:"x"}}`}, res.Drops.Items[2])
	assert.Equal(t, world.ItemStack{Material: "coal", Count: 1}, res.Drops.Items[3])

	assert.Len(t, f.world.Drops(), 4)
	xp := f.world.XP()
	require.Len(t, xp, 1)
	assert.Equal(t, 7, xp[0].Amount)

	_, logged, err := f.store.Entry(loc)
	require.NoError(t, err)
	assert.False(t, logged)
}

func TestDropsWithoutActorSkipConditionalSections(t *testing.T) {
	f := newFixture(t, 0.75)

	drops, replaced, err := f.ctrl.ResolveDrops("crate", nil)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, 0, drops.XP, "шанс не прошёл, опыт только умножается")
	require.Len(t, drops.Items, 2)
	assert.Equal(t, "stick", drops.Items[0].Material)
	assert.Equal(t, "coal", drops.Items[1].Material)
}

func TestDropRangeUsesRandom(t *testing.T) {
	f := newFixture(t, 0.4)
	drops, _, err := f.ctrl.ResolveDrops("crate", nil)
	require.NoError(t, err)
	require.Len(t, drops.Items, 3)
	assert.Equal(t, "diamond", drops.Items[0].Material)
	assert.Equal(t, 2, drops.Items[0].Count)
	assert.Equal(t, 3, drops.XP)
}

func TestDisabledDropsKeepHostDefaults(t *testing.T) {
	f := newFixture(t, 0)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "stone"))
	require.NoError(t, f.ctrl.Place(loc, "ghost", definition.Primary, nil))

	res, err := f.ctrl.Destroy(loc, nil, DestroyOptions{DropItems: true, SpawnEffects: true})
	require.NoError(t, err)
	assert.True(t, res.WasOverlay)
	assert.False(t, res.DefaultsReplaced)
	assert.Empty(t, f.world.Drops())

	particles := f.world.Particles()
	require.Len(t, particles, 1)
	assert.Equal(t, "stone", particles[0].State.String(), "без частиц и кэша берётся реальное состояние")
	sounds := f.world.Sounds()
	require.Len(t, sounds, 1)
	assert.Equal(t, world.DefaultBreakSound, sounds[0].Sound)
}

func TestDestroySecondarySlotUsesCacheAndNoSound(t *testing.T) {
	f := newFixture(t, 0)
	loc := world.At("world", 0, 64, 0)
	require.NoError(t, f.world.Put(loc, "stone"))
	require.NoError(t, f.ctrl.Place(loc, "ghost", definition.Secondary, nil))
	require.NoError(t, f.store.SetDisguised(loc, "tinted_glass"))

	_, err := f.ctrl.Destroy(loc, nil, DestroyOptions{SpawnEffects: true})
	require.NoError(t, err)

	particles := f.world.Particles()
	require.Len(t, particles, 1)
	assert.Equal(t, "tinted_glass", particles[0].State.String())
	assert.Empty(t, f.world.Sounds())
}

func TestInvalidConditionError(t *testing.T) {
	err := &InvalidConditionError{ID: "crate", Section: "bogus", Condition: "x"}
	assert.Contains(t, err.Error(), "bogus")
}
