package storage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/vec"
	"github.com/annel0/blockdisguise/internal/world"
)

// ChunkKey ключ записи базы: мир и координаты чанка
type ChunkKey struct {
	World string
	X     int
	Z     int
}

// KeyOf ключ чанка, содержащего позицию
func KeyOf(loc world.Location) ChunkKey {
	return ChunkKey{World: loc.World, X: loc.Pos.ChunkX(), Z: loc.Pos.ChunkZ()}
}

// String ключ в виде world/chunk.<x>.<z>
func (k ChunkKey) String() string {
	return fmt.Sprintf("%s/chunk.%d.%d", k.World, k.X, k.Z)
}

// WorldPrefix префикс ключей всех записей мира
func WorldPrefix(worldName string) string {
	return worldName + "/chunk."
}

// ParseChunkKey разбирает ключ вида world/chunk.<x>.<z>
func ParseChunkKey(s string) (ChunkKey, error) {
	slash := strings.LastIndex(s, "/")
	if slash <= 0 {
		return ChunkKey{}, fmt.Errorf("некорректный ключ чанка %q", s)
	}
	rest := strings.TrimPrefix(s[slash+1:], "chunk.")
	parts := strings.Split(rest, ".")
	if len(parts) != 2 || rest == s[slash+1:] {
		return ChunkKey{}, fmt.Errorf("некорректный ключ чанка %q", s)
	}
	x, err := strconv.Atoi(parts[0])
	if err != nil {
		return ChunkKey{}, fmt.Errorf("некорректный ключ чанка %q: %w", s, err)
	}
	z, err := strconv.Atoi(parts[1])
	if err != nil {
		return ChunkKey{}, fmt.Errorf("некорректный ключ чанка %q: %w", s, err)
	}
	return ChunkKey{World: s[:slash], X: x, Z: z}, nil
}

// LocalPos позиция внутри секции 16x16x16
type LocalPos struct {
	X, Y, Z int
}

// LocalOf локальная позиция блока в его секции
func LocalOf(pos vec.Vec3) LocalPos {
	l := pos.Local()
	return LocalPos{X: l.X, Y: l.Y, Z: l.Z}
}

// String ключ позиции вида lx_ly_lz
func (p LocalPos) String() string {
	return fmt.Sprintf("%d_%d_%d", p.X, p.Y, p.Z)
}

// Index порядковый номер позиции в секции (y, z, x)
func (p LocalPos) Index() int {
	return p.Y<<8 | p.Z<<4 | p.X
}

// ParseLocalPos разбирает x_y_z. Абсолютные координаты приводятся к локальным.
func ParseLocalPos(s string) (LocalPos, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 {
		return LocalPos{}, fmt.Errorf("некорректный ключ позиции %q", s)
	}
	var v [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return LocalPos{}, fmt.Errorf("некорректный ключ позиции %q: %w", s, err)
		}
		v[i] = n & 0xF
	}
	return LocalPos{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Entry запись об оверлее в клетке. Disguised кэш маскировочного
// состояния в канонической форме, пустой если не вычислялся.
type Entry struct {
	ID        string
	Slot      definition.Slot
	Disguised string
}

// ChunkRecord все записи одного чанка. SubChunks: y секции -> позиция -> запись.
type ChunkRecord struct {
	Key         ChunkKey
	ReloadID    float64
	HasReloadID bool
	SubChunks   map[int]map[LocalPos]*Entry
}

// NewChunkRecord создаёт пустую запись
func NewChunkRecord(key ChunkKey) *ChunkRecord {
	return &ChunkRecord{Key: key, SubChunks: make(map[int]map[LocalPos]*Entry)}
}

// Entry возвращает запись в позиции
func (r *ChunkRecord) Entry(subY int, pos LocalPos) (*Entry, bool) {
	section, ok := r.SubChunks[subY]
	if !ok {
		return nil, false
	}
	e, ok := section[pos]
	return e, ok
}

// Put записывает запись в позицию
func (r *ChunkRecord) Put(subY int, pos LocalPos, e *Entry) {
	section, ok := r.SubChunks[subY]
	if !ok {
		section = make(map[LocalPos]*Entry)
		r.SubChunks[subY] = section
	}
	section[pos] = e
}

// Remove удаляет запись, пустая секция остаётся до Compact
func (r *ChunkRecord) Remove(subY int, pos LocalPos) bool {
	section, ok := r.SubChunks[subY]
	if !ok {
		return false
	}
	if _, ok := section[pos]; !ok {
		return false
	}
	delete(section, pos)
	return true
}

// Len количество записей
func (r *ChunkRecord) Len() int {
	n := 0
	for _, section := range r.SubChunks {
		n += len(section)
	}
	return n
}

// IsEmpty true если записей нет; метка перезагрузки не учитывается
func (r *ChunkRecord) IsEmpty() bool {
	return r.Len() == 0
}

// SubChunkYs секции по возрастанию y
func (r *ChunkRecord) SubChunkYs() []int {
	ys := make([]int, 0, len(r.SubChunks))
	for y := range r.SubChunks {
		ys = append(ys, y)
	}
	sort.Ints(ys)
	return ys
}

// Positions позиции секции по возрастанию Index
func (r *ChunkRecord) Positions(subY int) []LocalPos {
	section := r.SubChunks[subY]
	out := make([]LocalPos, 0, len(section))
	for pos := range section {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}

// Location мировая позиция записи
func (r *ChunkRecord) Location(subY int, pos LocalPos) world.Location {
	return world.Location{
		World: r.Key.World,
		Pos:   vec.FromSection(r.Key.X, subY, r.Key.Z, vec.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}),
	}
}

// prune удаляет пустые секции и возвращает их число
func (r *ChunkRecord) prune() int {
	removed := 0
	for y, section := range r.SubChunks {
		if len(section) == 0 {
			delete(r.SubChunks, y)
			removed++
		}
	}
	return removed
}

// CloneTo копия записи под другим ключом
func (r *ChunkRecord) CloneTo(key ChunkKey) *ChunkRecord {
	out := NewChunkRecord(key)
	out.ReloadID, out.HasReloadID = r.ReloadID, r.HasReloadID
	for y, section := range r.SubChunks {
		for pos, e := range section {
			copied := *e
			out.Put(y, pos, &copied)
		}
	}
	return out
}
