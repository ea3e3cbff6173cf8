package world

import (
	"fmt"
	"sync"

	"github.com/annel0/blockdisguise/internal/blockstate"
	"github.com/annel0/blockdisguise/internal/vec"
)

// DefaultBreakSound звук, если для типа не задан свой
const DefaultBreakSound = "block.stone.break"

// ParticleEffect записанный эффект частиц
type ParticleEffect struct {
	Loc   Location
	State blockstate.CellState
}

// SoundEffect записанный звук
type SoundEffect struct {
	Loc   Location
	Sound string
}

// DroppedItem записанный выпавший предмет
type DroppedItem struct {
	Loc  Location
	Item ItemStack
}

// XPOrb записанная сфера опыта
type XPOrb struct {
	Loc    Location
	Amount int
}

// MemoryWorld хост в памяти: мир клеток, реестры и журнал эффектов.
// Используется в тестах и в утилитах, которым не нужен настоящий сервер.
type MemoryWorld struct {
	mu sync.RWMutex

	cells        map[Location]blockstate.CellState
	schema       blockstate.StaticSchema
	breakOnMove  map[string]struct{}
	materials    map[string]struct{}
	enchantments map[string]struct{}
	breakSounds  map[string]string
	knownSounds  map[string]struct{}

	writes    int
	particles []ParticleEffect
	sounds    []SoundEffect
	drops     []DroppedItem
	xp        []XPOrb
}

// NewMemoryWorld создаёт пустой мир
func NewMemoryWorld() *MemoryWorld {
	return &MemoryWorld{
		cells:        make(map[Location]blockstate.CellState),
		schema:       make(blockstate.StaticSchema),
		breakOnMove:  make(map[string]struct{}),
		materials:    make(map[string]struct{}),
		enchantments: make(map[string]struct{}),
		breakSounds:  make(map[string]string),
		knownSounds:  map[string]struct{}{DefaultBreakSound: {}},
	}
}

// DefineType регистрирует тип блока с допустимыми тегами; тип становится и материалом
func (w *MemoryWorld) DefineType(typeName string, tags ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schema[typeName] = tags
	w.materials[NormalizeKey(typeName)] = struct{}{}
}

// AddMaterials регистрирует материалы предметов
func (w *MemoryWorld) AddMaterials(names ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, n := range names {
		w.materials[NormalizeKey(n)] = struct{}{}
	}
}

// AddEnchantments регистрирует зачарования
func (w *MemoryWorld) AddEnchantments(names ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, n := range names {
		w.enchantments[NormalizeKey(n)] = struct{}{}
	}
}

// AddSounds регистрирует допустимые звуки
func (w *MemoryWorld) AddSounds(names ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, n := range names {
		w.knownSounds[n] = struct{}{}
	}
}

// SetBreakSound задаёт звук разрушения для типа
func (w *MemoryWorld) SetBreakSound(typeName, sound string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.breakSounds[typeName] = sound
	w.knownSounds[sound] = struct{}{}
}

// SetBreaksOnMove помечает тип как ломающийся при сдвиге
func (w *MemoryWorld) SetBreaksOnMove(typeName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.breakOnMove[typeName] = struct{}{}
}

// Put записывает состояние из текстовой формы без проверки схемы
func (w *MemoryWorld) Put(loc Location, text string) error {
	state, err := blockstate.Parse(text)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.put(loc, state)
	return nil
}

func (w *MemoryWorld) put(loc Location, state blockstate.CellState) {
	if state.IsEmpty() {
		delete(w.cells, loc)
		return
	}
	w.cells[loc] = state
}

// State возвращает состояние клетки; пустая клетка это воздух
func (w *MemoryWorld) State(loc Location) blockstate.CellState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if s, ok := w.cells[loc]; ok {
		return s
	}
	return blockstate.Air()
}

// SetState записывает состояние, проверяя теги по схеме известных типов
func (w *MemoryWorld) SetState(loc Location, state blockstate.CellState) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if allowed, known := w.schema[state.Type]; known {
		for _, name := range state.Names() {
			if !contains(allowed, name) {
				return fmt.Errorf("тег %s недопустим для %s", name, state.Type)
			}
		}
	}

	w.writes++
	w.put(loc, state)
	return nil
}

// SetEmpty очищает клетку
func (w *MemoryWorld) SetEmpty(loc Location) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	delete(w.cells, loc)
	return nil
}

// IsEmpty проверяет, пуста ли клетка
func (w *MemoryWorld) IsEmpty(loc Location) bool {
	return w.State(loc).IsEmpty()
}

// Writes количество записей в мир через SetState и SetEmpty
func (w *MemoryWorld) Writes() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.writes
}

func (w *MemoryWorld) BreaksOnMove(loc Location) bool {
	state := w.State(loc)
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.breakOnMove[state.Type]
	return ok
}

func (w *MemoryWorld) TagsFor(typeName string) ([]string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.schema.TagsFor(typeName)
}

func (w *MemoryWorld) IsMaterial(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.materials[NormalizeKey(name)]
	return ok
}

func (w *MemoryWorld) IsEnchantment(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.enchantments[NormalizeKey(name)]
	return ok
}

func (w *MemoryWorld) SpawnBlockParticles(loc Location, state blockstate.CellState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.particles = append(w.particles, ParticleEffect{Loc: loc, State: state})
	return nil
}

func (w *MemoryWorld) PlaySound(loc Location, sound string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.knownSounds[sound]; !ok {
		return fmt.Errorf("неизвестный звук %q", sound)
	}
	w.sounds = append(w.sounds, SoundEffect{Loc: loc, Sound: sound})
	return nil
}

func (w *MemoryWorld) DefaultBreakSound(state blockstate.CellState) (string, bool) {
	if state.IsEmpty() {
		return "", false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if s, ok := w.breakSounds[state.Type]; ok {
		return s, true
	}
	return DefaultBreakSound, true
}

func (w *MemoryWorld) DropItem(loc Location, item ItemStack) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drops = append(w.drops, DroppedItem{Loc: loc, Item: item})
}

func (w *MemoryWorld) SpawnXP(loc Location, amount int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.xp = append(w.xp, XPOrb{Loc: loc, Amount: amount})
}

// Particles возвращает копию журнала частиц
func (w *MemoryWorld) Particles() []ParticleEffect {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]ParticleEffect(nil), w.particles...)
}

// Sounds возвращает копию журнала звуков
func (w *MemoryWorld) Sounds() []SoundEffect {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]SoundEffect(nil), w.sounds...)
}

// Drops возвращает копию журнала выпавших предметов
func (w *MemoryWorld) Drops() []DroppedItem {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]DroppedItem(nil), w.drops...)
}

// XP возвращает копию журнала опыта
func (w *MemoryWorld) XP() []XPOrb {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]XPOrb(nil), w.xp...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Batch одно пакетное сообщение, полученное зрителем
type Batch struct {
	ChunkX    int
	SubChunkY int
	ChunkZ    int
	Changes   []BlockChange
}

// MemoryViewer зритель, записывающий полученные пакеты
type MemoryViewer struct {
	mu      sync.Mutex
	name    string
	batches []Batch
	err     error
}

// NewMemoryViewer создаёт зрителя с именем
func NewMemoryViewer(name string) *MemoryViewer {
	return &MemoryViewer{name: name}
}

func (v *MemoryViewer) Name() string {
	return v.name
}

// FailWith заставляет следующие отправки возвращать err
func (v *MemoryViewer) FailWith(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.err = err
}

func (v *MemoryViewer) SendBlockChanges(chunkX, subChunkY, chunkZ int, changes []BlockChange) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return v.err
	}
	v.batches = append(v.batches, Batch{
		ChunkX:    chunkX,
		SubChunkY: subChunkY,
		ChunkZ:    chunkZ,
		Changes:   append([]BlockChange(nil), changes...),
	})
	return nil
}

// Batches возвращает копию полученных пакетов
func (v *MemoryViewer) Batches() []Batch {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Batch(nil), v.batches...)
}

// Visible возвращает последнее видимое зрителю состояние в позиции
func (v *MemoryViewer) Visible(pos vec.Vec3) (blockstate.CellState, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.batches) - 1; i >= 0; i-- {
		for _, c := range v.batches[i].Changes {
			if c.Pos.Equals(pos) {
				return c.State, true
			}
		}
	}
	return blockstate.CellState{}, false
}
