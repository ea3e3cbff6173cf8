package blockstate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsTagOrder(t *testing.T) {
	s, err := Parse("minecraft:oak_stairs[half=top,facing=east, waterlogged = false]")
	require.NoError(t, err)

	assert.Equal(t, "minecraft:oak_stairs", s.Type)
	assert.Equal(t, []string{"half", "facing", "waterlogged"}, s.Names())
	v, ok := s.Get("waterlogged")
	assert.True(t, ok)
	assert.Equal(t, "false", v)
	assert.Equal(t, "minecraft:oak_stairs[half=top,facing=east,waterlogged=false]", Format(s))
}

func TestParseWithoutTags(t *testing.T) {
	for _, text := range []string{"stone", "stone[]", "  stone [ ] "} {
		s, err := Parse(text)
		require.NoError(t, err, text)
		assert.Equal(t, "stone", s.Type)
		assert.Equal(t, 0, s.Len())
		assert.Equal(t, "stone", Format(s))
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"barrel[facing=up",
		"barrel facing=up]",
		"barrel[[facing=up]]",
		"barrel[facing=up]x",
		"barrel[facing]",
		"barrel[=up]",
		"barrel[facing=]",
		"barrel[facing=up,]",
		"barrel[facing=up,facing=down]",
		"[facing=up]",
	}

	for _, text := range cases {
		_, err := Parse(text)
		var malformed *MalformedStateError
		assert.True(t, errors.As(err, &malformed), "ожидалась MalformedStateError для %q, получено %v", text, err)
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	texts := []string{
		"barrel[facing=up]",
		"note_block[instrument=harp,note=3,powered=false]",
		"  chest [ facing = north , type = single ]",
		"air",
		"minecraft:redstone_wire[east=side,north=none,power=0,south=up,west=none]",
	}

	for _, text := range texts {
		first, err := Parse(text)
		require.NoError(t, err)
		second, err := Parse(Format(first))
		require.NoError(t, err)
		assert.True(t, first.Equal(second), "round trip для %q: %s != %s", text, first, second)
	}
}

func TestSetAndDeleteDoNotAliasCopies(t *testing.T) {
	original := MustParse("barrel[facing=up,open=false]")
	copyOf := original

	copyOf.Set("facing", "north")
	copyOf.Set("extra", "1")
	assert.Equal(t, "barrel[facing=up,open=false]", original.String())
	assert.Equal(t, "barrel[facing=north,open=false,extra=1]", copyOf.String())

	assert.True(t, copyOf.Delete("open"))
	assert.False(t, copyOf.Delete("open"))
	assert.Equal(t, "barrel[facing=up,open=false]", original.String())
	assert.Equal(t, "barrel[facing=north,extra=1]", copyOf.String())
}

func TestAirDetection(t *testing.T) {
	assert.True(t, Air().IsEmpty())
	assert.True(t, MustParse("minecraft:cave_air").IsEmpty())
	assert.False(t, MustParse("barrel[facing=up]").IsEmpty())
}
