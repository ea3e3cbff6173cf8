// Package world описывает контракты хост-движка, с которыми работает
// движок оверлеев: авторитетный мир блоков, зрители, игроки, эффекты и реестры.
package world

import (
	"fmt"

	"github.com/annel0/blockdisguise/internal/blockstate"
	"github.com/annel0/blockdisguise/internal/vec"
)

// Location позиция блока в конкретном мире
type Location struct {
	World string
	Pos   vec.Vec3
}

// At создаёт Location из мира и координат
func At(world string, x, y, z int) Location {
	return Location{World: world, Pos: vec.Vec3{X: x, Y: y, Z: z}}
}

// Relative возвращает соседнюю позицию в направлении dir
func (l Location) Relative(dir vec.Vec3) Location {
	return Location{World: l.World, Pos: l.Pos.Add(dir)}
}

func (l Location) String() string {
	return fmt.Sprintf("%s, %s", l.World, l.Pos)
}

// BlockChange одна запись пакетного сообщения об изменении блоков
type BlockChange struct {
	Pos   vec.Vec3
	State blockstate.CellState
}

// BlockAccess чтение и запись авторитетного состояния клеток
type BlockAccess interface {
	State(loc Location) blockstate.CellState
	SetState(loc Location, state blockstate.CellState) error
	SetEmpty(loc Location) error
	IsEmpty(loc Location) bool
}

// MoveReactor сообщает, ломается ли блок при сдвиге поршнем
type MoveReactor interface {
	BreaksOnMove(loc Location) bool
}

// Effects частицы, звуки, выпадающие предметы и опыт
type Effects interface {
	SpawnBlockParticles(loc Location, state blockstate.CellState) error
	PlaySound(loc Location, sound string) error
	// DefaultBreakSound звук разрушения для состояния; false если у типа нет звука
	DefaultBreakSound(state blockstate.CellState) (string, bool)
	DropItem(loc Location, item ItemStack)
	SpawnXP(loc Location, amount int)
}

// Registry реестры материалов и зачарований хоста
type Registry interface {
	IsMaterial(name string) bool
	IsEnchantment(name string) bool
}

// Actor игрок, совершающий действие
type Actor interface {
	Name() string
	HeldItem() ItemStack
}

// Viewer сессия зрителя. SendBlockChanges отправляет изменения только этому
// зрителю и не трогает авторитетный мир.
type Viewer interface {
	Name() string
	SendBlockChanges(chunkX, subChunkY, chunkZ int, changes []BlockChange) error
}

// Host всё, что движок оверлеев требует от хоста
type Host interface {
	BlockAccess
	MoveReactor
	Effects
	Registry
	blockstate.Schema
}
