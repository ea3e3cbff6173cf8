package definition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const barrelDoc = `
barrel_crate:
  item: '{id:"minecraft:barrel",Count:1b}'
  block:
    actual-block: barrel[facing=up]
    disguised-block: note_block[instrument=bass,note=3]
    disguised-block2: note_block[instrument=bass,note=4]
    sync-states: [facing]
    disguised-sync-states2: [powered]
    force-actual-states:
      open: "false"
    force-actual-states2:
      open: "true"
    destroy-particles: oak_planks
    destroy-sound: block.wood.break
    disguised-match-states:
      facing:
        state: north
        disguised-block: note_block[note=10]
        sync-states: [powered]
      facing2:
        state: south
        open:
          state: "true"
          disguised-block: note_block[note=11]
      note:
        disguised-block: note_block[note=12]
    options:
      unbreakable: true
      cancel-piston-push: true
    drops:
      enabled: true
      main:
        conditions: [silk_touch]
        chance: 0.5
        set-xp: 2
        add-xp: 1.5
        barrel_crate: 1
        diamond:
          count: 1-3
          nbt: '{display:{Name:"x"}}'
      extra:
        multiply-xp: 2
        stick: "2-5"
        coal: 2.5
`

func TestParseDefinition(t *testing.T) {
	defs, err := LoadDocument([]byte(barrelDoc), "blocks.yml")
	require.NoError(t, err)
	require.Contains(t, defs, "barrel_crate")
	def := defs["barrel_crate"]

	assert.Equal(t, "blocks.yml", def.Source)
	assert.Equal(t, `{id:"minecraft:barrel",Count:1b}`, def.Item)

	base, ok := def.BaseState(Actual, Primary)
	require.True(t, ok)
	assert.Equal(t, "barrel[facing=up]", base)
	assert.True(t, def.HasActualSource(Primary))
	assert.False(t, def.HasActualSource(Secondary))

	disguised2, ok := def.BaseState(Disguised, Secondary)
	require.True(t, ok)
	assert.Equal(t, "note_block[instrument=bass,note=4]", disguised2)

	particles, ok := def.DestroyParticles(Primary)
	assert.True(t, ok)
	assert.Equal(t, "oak_planks", particles)
	_, ok = def.DestroyParticles(Secondary)
	assert.False(t, ok)
	assert.Equal(t, "block.wood.break", def.DestroySound)

	assert.True(t, def.Options.Unbreakable)
	assert.True(t, def.Options.CancelPistonPush)
	assert.False(t, def.Options.CancelPistonPull)
	assert.False(t, def.Options.PistonBreakable)
}

func TestSyncChainFallback(t *testing.T) {
	defs, err := LoadDocument([]byte(barrelDoc), "blocks.yml")
	require.NoError(t, err)
	def := defs["barrel_crate"]

	list, ok := def.SyncChain(Disguised, Secondary)
	require.True(t, ok)
	assert.Equal(t, []string{"powered"}, list)

	list, ok = def.SyncChain(Disguised, Primary)
	require.True(t, ok)
	assert.Equal(t, []string{"facing"}, list, "первичный слот не видит вариантов с 2")

	list, ok = def.SyncChain(Actual, Secondary)
	require.True(t, ok)
	assert.Equal(t, []string{"facing"}, list)

	_, ok = SyncLists{}.Chain(Actual, Primary)
	assert.False(t, ok)

	lists := SyncLists{"sync-states2": {"a"}, "sync-states": {"b"}, "actual-sync-states": {"c"}}
	list, _ = lists.Chain(Actual, Secondary)
	assert.Equal(t, []string{"c"}, list)
	list, _ = lists.Chain(Disguised, Secondary)
	assert.Equal(t, []string{"a"}, list)
	list, _ = lists.Chain(Disguised, Primary)
	assert.Equal(t, []string{"b"}, list)
}

func TestMatchTreeKeepsDeclarationOrder(t *testing.T) {
	defs, err := LoadDocument([]byte(barrelDoc), "blocks.yml")
	require.NoError(t, err)
	tree := defs["barrel_crate"].MatchTree(Disguised, Primary)

	require.Len(t, tree, 2, "узел без state пропускается")
	assert.Equal(t, "facing", tree[0].Tag)
	assert.Equal(t, "north", tree[0].Expected)
	override, ok := tree[0].Override(Disguised, Secondary)
	require.True(t, ok, "вторичный слот откатывается на disguised-block")
	assert.Equal(t, "note_block[note=10]", override)

	assert.Equal(t, "facing2", tree[1].Name)
	assert.Equal(t, "facing", tree[1].Tag, "цифры в конце имени отбрасываются")
	_, ok = tree[1].Override(Disguised, Primary)
	assert.False(t, ok)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, "open", tree[1].Children[0].Tag)

	assert.Empty(t, defs["barrel_crate"].MatchTree(Actual, Primary))
}

func TestForcedStatesFallback(t *testing.T) {
	defs, err := LoadDocument([]byte(`
a:
  block:
    force-actual-states:
      open: "false"
      facing: up
b:
  block:
    force-actual-states:
      open: "false"
    force-actual-states2:
      open: "true"
`), "x.yml")
	require.NoError(t, err)

	forced := defs["a"].ForcedStates(Secondary)
	require.Len(t, forced, 2)
	assert.Equal(t, "open", forced[0].Name)
	assert.Equal(t, "up", forced[1].Value)

	assert.Equal(t, "true", defs["b"].ForcedStates(Secondary)[0].Value)
	assert.Equal(t, "false", defs["b"].ForcedStates(Primary)[0].Value)
}

func TestParseDrops(t *testing.T) {
	defs, err := LoadDocument([]byte(barrelDoc), "blocks.yml")
	require.NoError(t, err)
	drops := defs["barrel_crate"].Drops
	require.NotNil(t, drops)
	assert.True(t, drops.Enabled)
	require.Len(t, drops.Sections, 2)

	main := drops.Sections[0]
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, []string{"silk_touch"}, main.Conditions)
	assert.True(t, main.HasChance)
	assert.InDelta(t, 0.5, main.Chance, 1e-9)
	require.NotNil(t, main.SetXP)
	assert.InDelta(t, 2.0, *main.SetXP, 1e-9)
	require.NotNil(t, main.AddXP)
	assert.Nil(t, main.MultiplyXP)
	require.Len(t, main.Items, 2)
	assert.Equal(t, DropItem{Key: "barrel_crate", MinCount: 1, MaxCount: 1}, main.Items[0])
	assert.Equal(t, DropItem{Key: "diamond", MinCount: 1, MaxCount: 3, NBT: `{display:{Name:"x"}}`}, main.Items[1])

	extra := drops.Sections[1]
	assert.Nil(t, extra.Conditions)
	require.Len(t, extra.Items, 2)
	assert.Equal(t, 2, extra.Items[0].MinCount)
	assert.Equal(t, 5, extra.Items[0].MaxCount)
	assert.Equal(t, 1, extra.Items[1].MinCount, "дробное количество вне секции даёт 1")
}

func TestMissingBlockSection(t *testing.T) {
	defs, err := LoadDocument([]byte(`
good:
  block:
    actual-block: stone
broken:
  item: stone
`), "x.yml")

	var missing *MissingDefinitionSectionError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "broken", missing.ID)
	assert.Contains(t, defs, "good")
	assert.NotContains(t, defs, "broken")
}

func TestMatchDepthBound(t *testing.T) {
	doc := "deep:\n  block:\n    disguised-match-states:\n"
	indent := "      "
	for i := 0; i <= MaxMatchDepth; i++ {
		doc += indent + "facing:\n" + indent + "  state: up\n"
		indent += "  "
	}

	_, err := LoadDocument([]byte(doc), "deep.yml")
	assert.Error(t, err)
}

func TestStoreLoadAndReplace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte(barrelDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("barrel_crate:\n  block:\n    actual-block: stone\nlamp:\n  block:\n    disguised-block: redstone_lamp[lit=true]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("a: [b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	store := NewStore()
	n, err := store.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"barrel_crate", "lamp"}, store.IDs())
	assert.Equal(t, filepath.Join(dir, "a.yml"), store.Source("barrel_crate"), "первое объявление побеждает")

	_, err = store.Lookup("missing")
	var unknown *UnknownOverlayTypeError
	require.True(t, errors.As(err, &unknown))

	old, _ := store.Get("lamp")
	store.Replace(map[string]*Definition{"other": {ID: "other"}})
	_, ok := store.Get("lamp")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "lamp", old.ID, "старый снимок остаётся целым")

	_, err = store.Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)
	assert.Equal(t, 1, store.Len(), "ошибка загрузки не трогает текущий снимок")
}
