package world

import (
	"fmt"
	"strings"
)

// ItemStack предмет в руке игрока или выпавший предмет.
// OverlayID заполнен, если это предмет оверлея; NBT хранится как есть.
type ItemStack struct {
	Material     string
	OverlayID    string
	Count        int
	NBT          string
	MergeNBT     string
	Enchantments []string
}

// HasEnchantment проверяет зачарование без учёта регистра и пространства имён minecraft:
func (i ItemStack) HasEnchantment(name string) bool {
	want := NormalizeKey(name)
	for _, e := range i.Enchantments {
		if NormalizeKey(e) == want {
			return true
		}
	}
	return false
}

func (i ItemStack) String() string {
	name := i.Material
	if i.OverlayID != "" {
		name = i.OverlayID
	}
	return fmt.Sprintf("%dx %s", i.Count, name)
}

// NormalizeKey приводит ключ реестра к виду без пространства имён и в нижнем регистре
func NormalizeKey(key string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(key)), "minecraft:")
}

// Player простая реализация Actor
type Player struct {
	PlayerName string
	Held       ItemStack
}

func (p *Player) Name() string {
	return p.PlayerName
}

func (p *Player) HeldItem() ItemStack {
	return p.Held
}
