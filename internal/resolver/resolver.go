// Package resolver вычисляет реальное и маскировочное состояния оверлея
// по состоянию реальной клетки. Порядок: принудительные теги, дерево
// совпадений, базовое состояние с синхронизацией тегов.
package resolver

import (
	"errors"
	"fmt"

	"github.com/annel0/blockdisguise/internal/blockstate"
	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/logging"
	"github.com/annel0/blockdisguise/internal/world"
)

var errAirBase = errors.New("базовое состояние не может быть воздухом")

// DefinitionStateError строка состояния в определении не разбирается
// или недопустима
type DefinitionStateError struct {
	ID   string
	Path string
	Err  error
}

func (e *DefinitionStateError) Error() string {
	return fmt.Sprintf("оверлей %q, %s: %v", e.ID, e.Path, e.Err)
}

func (e *DefinitionStateError) Unwrap() error {
	return e.Err
}

// Result результат разрешения. Forced состояние реальной клетки после
// применения принудительных тегов, ForcedChanged true если хоть один тег изменился.
type Result struct {
	State         blockstate.CellState
	Forced        blockstate.CellState
	ForcedChanged bool
}

// Resolver разрешает состояния оверлеев по текущему снимку определений
type Resolver struct {
	defs   *definition.Store
	schema blockstate.Schema
	logger *logging.Logger
}

// New создаёт Resolver. schema может быть nil, тогда теги не проверяются.
func New(defs *definition.Store, schema blockstate.Schema) *Resolver {
	return &Resolver{
		defs:   defs,
		schema: schema,
		logger: logging.GetResolverLogger(),
	}
}

// Definitions хранилище определений, с которым работает Resolver
func (r *Resolver) Definitions() *definition.Store {
	return r.defs
}

// ResolveState чистое разрешение: мир не изменяется
func (r *Resolver) ResolveState(current blockstate.CellState, id string, slot definition.Slot, kind definition.Kind) (Result, error) {
	def, err := r.defs.Lookup(id)
	if err != nil {
		return Result{}, err
	}

	forced, changed := r.force(def, current, slot)
	res := Result{Forced: forced, ForcedChanged: changed}
	res.State, err = r.resolve(def, forced, slot, kind)
	return res, err
}

// Resolve читает реальную клетку, разрешает состояние и, если принудительные
// теги что-то изменили, записывает изменённое состояние обратно в клетку.
func (r *Resolver) Resolve(cells world.BlockAccess, loc world.Location, id string, slot definition.Slot, kind definition.Kind) (blockstate.CellState, error) {
	def, err := r.defs.Lookup(id)
	if err != nil {
		return blockstate.CellState{}, err
	}

	current := cells.State(loc)
	forced, changed := r.force(def, current, slot)
	if changed {
		if err := cells.SetState(loc, forced); err != nil {
			r.logger.Error("не удалось применить force-actual-states оверлея %q в %s: %v", id, loc, err)
			forced = current
		} else {
			r.logger.Debug("force-actual-states оверлея %q применены в %s: %s", id, loc, forced)
		}
	}

	return r.resolve(def, forced, slot, kind)
}

// force накладывает принудительные теги слота. Значения сравниваются без
// учёта регистра; набор, недопустимый для типа клетки, не применяется.
func (r *Resolver) force(def *definition.Definition, current blockstate.CellState, slot definition.Slot) (blockstate.CellState, bool) {
	tags := def.ForcedStates(slot)
	if len(tags) == 0 || current.IsEmpty() {
		return current, false
	}

	out := current
	changed := 0
	for _, t := range tags {
		if cur, ok := out.Get(t.Name); ok && blockstate.EqualFoldValue(cur, t.Value) {
			continue
		}
		out.Set(t.Name, t.Value)
		changed++
	}
	if changed == 0 {
		return current, false
	}

	if r.schema != nil {
		if allowed, known := r.schema.TagsFor(current.Type); known {
			for _, t := range tags {
				if !containsName(allowed, t.Name) {
					r.logger.Error("оверлей %q: тег %s из force-actual-states недопустим для %s", def.ID, t.Name, current.Type)
					return current, false
				}
			}
		}
	}

	return out, true
}

func (r *Resolver) resolve(def *definition.Definition, current blockstate.CellState, slot definition.Slot, kind definition.Kind) (blockstate.CellState, error) {
	matched, ok, err := r.walk(def, def.MatchTree(kind, slot), current, slot, kind, 1, kind.Prefix()+"-match-states")
	if err != nil || ok {
		return matched, err
	}

	path := kind.Prefix() + "-block" + slot.Suffix()
	text, ok := def.BaseState(kind, slot)
	if !ok {
		return blockstate.Air(), nil
	}

	base, err := r.parse(def.ID, path, text)
	if err != nil {
		return blockstate.CellState{}, err
	}
	if base.IsEmpty() {
		return blockstate.CellState{}, &DefinitionStateError{ID: def.ID, Path: path, Err: errAirBase}
	}

	list, ok := def.SyncChain(kind, slot)
	if !ok {
		return base, nil
	}
	return r.merge(def.ID, path, base, current, list), nil
}

// walk обходит дерево совпадений в глубину в порядке объявления.
// Первый совпавший узел с переопределением для kind побеждает.
func (r *Resolver) walk(def *definition.Definition, nodes []*definition.MatchNode, current blockstate.CellState, slot definition.Slot, kind definition.Kind, depth int, path string) (blockstate.CellState, bool, error) {
	if depth > definition.MaxMatchDepth {
		r.logger.Warn("оверлей %q: дерево %s глубже %d, обход остановлен", def.ID, path, definition.MaxMatchDepth)
		return blockstate.CellState{}, false, nil
	}

	for _, node := range nodes {
		value, ok := current.Get(node.Tag)
		if !ok || !blockstate.EqualFoldValue(value, node.Expected) {
			continue
		}
		nodePath := path + "." + node.Name

		text, ok := node.Override(kind, slot)
		if !ok {
			state, found, err := r.walk(def, node.Children, current, slot, kind, depth+1, nodePath)
			if err != nil || found {
				return state, found, err
			}
			continue
		}

		overridePath := nodePath + "." + kind.Prefix() + "-block"
		base, err := r.parse(def.ID, overridePath, text)
		if err != nil {
			return blockstate.CellState{}, false, err
		}

		list, ok := node.Sync.Chain(kind, slot)
		if !ok {
			list, ok = def.SyncChain(kind, slot)
		}
		if !ok {
			return base, true, nil
		}
		return r.merge(def.ID, overridePath, base, current, list), true, nil
	}

	return blockstate.CellState{}, false, nil
}

// merge синхронизирует теги; при несовместимости остаётся base
func (r *Resolver) merge(id, path string, base, current blockstate.CellState, list []string) blockstate.CellState {
	merged, err := blockstate.Merge(base, current, list, r.schema)
	if err != nil {
		r.logger.Error("оверлей %q: не удалось синхронизировать %s с %s: %v", id, path, current, err)
		return base
	}
	return merged
}

func (r *Resolver) parse(id, path, text string) (blockstate.CellState, error) {
	state, err := blockstate.Parse(text)
	if err != nil {
		return blockstate.CellState{}, &DefinitionStateError{ID: id, Path: path, Err: err}
	}
	return state, nil
}

func containsName(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
