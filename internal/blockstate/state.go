// Package blockstate описывает структурированное состояние блока
// (тип + упорядоченные теги) и его каноническую строковую форму
// вида type[k1=v1,k2=v2].
package blockstate

import "strings"

// AirType тип пустого блока
const AirType = "air"

// Tag одна пара имя=значение состояния блока
type Tag struct {
	Name  string
	Value string
}

// CellState состояние блока: тип и теги в порядке первого появления.
// Имена тегов внутри одного состояния уникальны.
type CellState struct {
	Type string
	tags []Tag
}

// New создаёт состояние из типа и пар имя/значение.
// Повторное имя перезаписывает значение, сохраняя позицию.
func New(typeName string, pairs ...string) CellState {
	s := CellState{Type: typeName}
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Set(pairs[i], pairs[i+1])
	}
	return s
}

// Air возвращает состояние "нет видимого оверлея"
func Air() CellState {
	return CellState{Type: AirType}
}

// IsEmpty сообщает, является ли тип одним из видов воздуха
func (s CellState) IsEmpty() bool {
	return IsAirType(s.Type)
}

// IsAirType проверяет имя типа с учётом пространства имён minecraft:
func IsAirType(typeName string) bool {
	switch strings.TrimPrefix(strings.ToLower(typeName), "minecraft:") {
	case "", "air", "cave_air", "void_air":
		return true
	}
	return false
}

// Len количество тегов
func (s CellState) Len() int {
	return len(s.tags)
}

// Tags возвращает копию тегов в каноническом порядке
func (s CellState) Tags() []Tag {
	out := make([]Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// Names возвращает имена тегов в каноническом порядке
func (s CellState) Names() []string {
	out := make([]string, len(s.tags))
	for i, t := range s.tags {
		out[i] = t.Name
	}
	return out
}

// Get возвращает значение тега
func (s CellState) Get(name string) (string, bool) {
	if i := s.index(name); i >= 0 {
		return s.tags[i].Value, true
	}
	return "", false
}

// Has проверяет наличие тега
func (s CellState) Has(name string) bool {
	return s.index(name) >= 0
}

// Set перезаписывает значение на месте или добавляет тег в конец.
// Копии состояния разделяют срез тегов, поэтому изменение идёт по копии.
func (s *CellState) Set(name, value string) {
	tags := make([]Tag, len(s.tags), len(s.tags)+1)
	copy(tags, s.tags)
	if i := s.index(name); i >= 0 {
		tags[i].Value = value
	} else {
		tags = append(tags, Tag{Name: name, Value: value})
	}
	s.tags = tags
}

// Delete удаляет тег, возвращает true если он был
func (s *CellState) Delete(name string) bool {
	i := s.index(name)
	if i < 0 {
		return false
	}
	tags := make([]Tag, 0, len(s.tags)-1)
	tags = append(tags, s.tags[:i]...)
	s.tags = append(tags, s.tags[i+1:]...)
	return true
}

// Clone возвращает независимую копию
func (s CellState) Clone() CellState {
	return CellState{Type: s.Type, tags: s.Tags()}
}

// Equal сравнивает тип и теги с учётом порядка
func (s CellState) Equal(other CellState) bool {
	if s.Type != other.Type || len(s.tags) != len(other.tags) {
		return false
	}
	for i := range s.tags {
		if s.tags[i] != other.tags[i] {
			return false
		}
	}
	return true
}

// String возвращает каноническую форму, то же что Format
func (s CellState) String() string {
	return Format(s)
}

func (s CellState) index(name string) int {
	for i, t := range s.tags {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// EqualFoldValue сравнивает значения тегов без учёта регистра
func EqualFoldValue(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
