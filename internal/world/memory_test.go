package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockdisguise/internal/blockstate"
	"github.com/annel0/blockdisguise/internal/vec"
)

var _ Host = (*MemoryWorld)(nil)
var _ Viewer = (*MemoryViewer)(nil)
var _ Actor = (*Player)(nil)

func TestMemoryWorldStateAndSchema(t *testing.T) {
	w := NewMemoryWorld()
	w.DefineType("barrel", "facing", "open")
	loc := At("world", 1, 64, -3)

	assert.True(t, w.IsEmpty(loc))
	require.NoError(t, w.SetState(loc, blockstate.MustParse("barrel[facing=up]")))
	assert.Equal(t, "barrel[facing=up]", w.State(loc).String())
	assert.False(t, w.IsEmpty(loc))

	err := w.SetState(loc, blockstate.MustParse("barrel[axis=y]"))
	assert.Error(t, err)
	assert.Equal(t, "barrel[facing=up]", w.State(loc).String())

	require.NoError(t, w.SetEmpty(loc))
	assert.True(t, w.IsEmpty(loc))
	assert.Equal(t, 2, w.Writes())
}

func TestMemoryWorldRegistries(t *testing.T) {
	w := NewMemoryWorld()
	w.AddMaterials("minecraft:Diamond")
	w.AddEnchantments("silk_touch")

	assert.True(t, w.IsMaterial("diamond"))
	assert.True(t, w.IsEnchantment("minecraft:silk_touch"))
	assert.False(t, w.IsEnchantment("looting"))

	item := ItemStack{Material: "diamond_pickaxe", Enchantments: []string{"minecraft:silk_touch"}}
	assert.True(t, item.HasEnchantment("SILK_TOUCH"))
	assert.False(t, item.HasEnchantment("fortune"))
}

func TestMemoryWorldSounds(t *testing.T) {
	w := NewMemoryWorld()
	w.SetBreakSound("barrel", "block.wood.break")
	loc := At("world", 0, 0, 0)

	sound, ok := w.DefaultBreakSound(blockstate.MustParse("barrel[facing=up]"))
	require.True(t, ok)
	assert.Equal(t, "block.wood.break", sound)

	_, ok = w.DefaultBreakSound(blockstate.Air())
	assert.False(t, ok)

	require.NoError(t, w.PlaySound(loc, sound))
	assert.Error(t, w.PlaySound(loc, "NOT_A_SOUND"))
	assert.Len(t, w.Sounds(), 1)
}

func TestMemoryViewerRecordsBatches(t *testing.T) {
	v := NewMemoryViewer("steve")
	pos := vec.Vec3{X: 17, Y: 70, Z: 3}
	require.NoError(t, v.SendBlockChanges(1, 4, 0, []BlockChange{{Pos: pos, State: blockstate.MustParse("stone")}}))

	state, ok := v.Visible(pos)
	require.True(t, ok)
	assert.Equal(t, "stone", state.String())
	assert.Len(t, v.Batches(), 1)
}
