// Package definition хранит декларативные описания типов оверлеев:
// базовые состояния, списки синхронизации, деревья совпадений,
// принудительные теги, таблицы дропа и опции поведения.
package definition

import "github.com/annel0/blockdisguise/internal/blockstate"

// Slot роль экземпляра оверлея в многоблочной конструкции
type Slot int

const (
	Primary Slot = iota
	Secondary
)

// SlotOf переводит флаг secondBlock в Slot
func SlotOf(secondary bool) Slot {
	if secondary {
		return Secondary
	}
	return Primary
}

// Suffix суффикс ключей документа для слота
func (s Slot) Suffix() string {
	if s == Secondary {
		return "2"
	}
	return ""
}

func (s Slot) String() string {
	if s == Secondary {
		return "secondary"
	}
	return "primary"
}

// Kind какое состояние вычисляется: реальное или маскировочное
type Kind int

const (
	Actual Kind = iota
	Disguised
)

// Prefix префикс ключей документа для вида состояния
func (k Kind) Prefix() string {
	if k == Disguised {
		return "disguised"
	}
	return "actual"
}

func (k Kind) String() string {
	return k.Prefix()
}

// MaxMatchDepth предел глубины дерева совпадений
const MaxMatchDepth = 32

// Options флаги поведения оверлея
type Options struct {
	Unbreakable      bool
	PistonBreakable  bool
	CancelPistonPush bool
	CancelPistonPull bool
}

// SyncLists списки синхронизируемых тегов по ключу документа
// (sync-states, actual-sync-states2 и т.д.)
type SyncLists map[string][]string

// Chain возвращает список по цепочке
// <kind>-sync-states2 -> <kind>-sync-states -> sync-states2 -> sync-states,
// варианты с 2 только для вторичного слота.
func (l SyncLists) Chain(kind Kind, slot Slot) ([]string, bool) {
	specific := kind.Prefix() + "-sync-states"
	var keys []string
	if slot == Secondary {
		keys = []string{specific + "2", specific, "sync-states2", "sync-states"}
	} else {
		keys = []string{specific, "sync-states"}
	}
	for _, key := range keys {
		if list, ok := l[key]; ok {
			return list, true
		}
	}
	return nil, false
}

// MatchNode узел дерева совпадений. Узел совпадает, если у реального
// состояния есть тег Tag со значением Expected (без учёта регистра).
type MatchNode struct {
	Name      string
	Tag       string
	Expected  string
	overrides map[string]string
	Sync      SyncLists
	Children  []*MatchNode
}

// Override возвращает переопределение состояния узла; для вторичного
// слота сначала ищется вариант с 2.
func (n *MatchNode) Override(kind Kind, slot Slot) (string, bool) {
	key := kind.Prefix() + "-block"
	if slot == Secondary {
		if v, ok := n.overrides[key+"2"]; ok {
			return v, true
		}
	}
	v, ok := n.overrides[key]
	return v, ok
}

// DropItem предмет в секции дропа. Key это id оверлея или материал.
type DropItem struct {
	Key      string
	MinCount int
	MaxCount int
	NBT      string
}

// DropSection одна секция block.drops
type DropSection struct {
	Name       string
	Conditions []string
	HasChance  bool
	Chance     float64
	SetXP      *float64
	AddXP      *float64
	MultiplyXP *float64
	Items      []DropItem
}

// DropTable секция block.drops
type DropTable struct {
	Enabled  bool
	Sections []DropSection
}

// Definition описание одного типа оверлея. Не изменяется после загрузки.
type Definition struct {
	ID     string
	Source string
	// Item описание предмета, используется внешним кодировщиком предметов
	Item string

	states       map[string]string
	sync         SyncLists
	match        map[string][]*MatchNode
	forced       map[string][]blockstate.Tag
	Drops        *DropTable
	DestroySound string
	Options      Options
}

// BaseState текст базового состояния вида kind для слота
func (d *Definition) BaseState(kind Kind, slot Slot) (string, bool) {
	s, ok := d.states[kind.Prefix()+"-block"+slot.Suffix()]
	return s, ok
}

// HasActualSource сообщает, задано ли actual-block для слота
func (d *Definition) HasActualSource(slot Slot) bool {
	_, ok := d.BaseState(Actual, slot)
	return ok
}

// DestroyParticles текст состояния для частиц разрушения слота
func (d *Definition) DestroyParticles(slot Slot) (string, bool) {
	s, ok := d.states["destroy-particles"+slot.Suffix()]
	return s, ok
}

// SyncChain список синхронизации определения по цепочке отката
func (d *Definition) SyncChain(kind Kind, slot Slot) ([]string, bool) {
	return d.sync.Chain(kind, slot)
}

// MatchTree корни дерева совпадений; вторичный слот использует
// <kind>-match-states2, если оно объявлено.
func (d *Definition) MatchTree(kind Kind, slot Slot) []*MatchNode {
	key := kind.Prefix() + "-match-states"
	if slot == Secondary {
		if nodes, ok := d.match[key+"2"]; ok {
			return nodes
		}
	}
	return d.match[key]
}

// ForcedStates принудительные теги слота в порядке объявления;
// force-actual-states2 откатывается на force-actual-states.
func (d *Definition) ForcedStates(slot Slot) []blockstate.Tag {
	if slot == Secondary {
		if tags, ok := d.forced["force-actual-states2"]; ok {
			return tags
		}
	}
	return d.forced["force-actual-states"]
}
