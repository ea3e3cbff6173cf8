// Package dispatch отправляет зрителю маскировочные состояния оверлеев
// чанка: один пакет изменений на секцию, мир при этом не изменяется.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/annel0/blockdisguise/internal/blockstate"
	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/logging"
	"github.com/annel0/blockdisguise/internal/resolver"
	"github.com/annel0/blockdisguise/internal/storage"
	"github.com/annel0/blockdisguise/internal/world"
)

// Dispatcher воспроизводит журнал оверлеев зрителям
type Dispatcher struct {
	store    *storage.Store
	resolver *resolver.Resolver
	cells    world.BlockAccess
	logger   *logging.Logger
}

// New создаёт Dispatcher
func New(store *storage.Store, res *resolver.Resolver, cells world.BlockAccess) *Dispatcher {
	return &Dispatcher{
		store:    store,
		resolver: res,
		cells:    cells,
		logger:   logging.GetDispatchLogger(),
	}
}

// Dispatch отправляет зрителю маскировку всех оверлеев чанка и возвращает
// число отправленных клеток. Секции идут по возрастанию y, клетки по
// возрастанию локального индекса. Ошибка отдельной записи только логируется.
func (d *Dispatcher) Dispatch(viewer world.Viewer, key storage.ChunkKey) (int, error) {
	rec, err := d.store.Get(key)
	if err != nil {
		return 0, err
	}
	if rec.IsEmpty() {
		return 0, nil
	}

	stale := d.store.NeedsRecompute(rec)
	dirty := false
	sent := 0
	var errs []error

	for _, y := range rec.SubChunkYs() {
		var changes []world.BlockChange
		for _, pos := range rec.Positions(y) {
			entry, _ := rec.Entry(y, pos)
			loc := rec.Location(y, pos)

			state, updated, err := d.disguise(loc, entry, stale)
			if err != nil {
				d.logger.Warn("оверлей %s в %s пропущен: %v", entry.ID, loc, err)
				continue
			}
			if updated {
				dirty = true
			}
			if state.IsEmpty() {
				continue
			}
			changes = append(changes, world.BlockChange{Pos: loc.Pos, State: state})
		}
		if len(changes) == 0 {
			continue
		}

		if err := viewer.SendBlockChanges(key.X, y, key.Z, changes); err != nil {
			d.logger.Error("не удалось отправить секцию %s/%d зрителю %s: %v", key, y, viewer.Name(), err)
			errs = append(errs, fmt.Errorf("отправка секции %s/%d: %w", key, y, err))
			continue
		}
		sent += len(changes)
	}

	if stale {
		had, prev := rec.HasReloadID, rec.ReloadID
		d.store.MarkFresh(rec)
		if had != rec.HasReloadID || prev != rec.ReloadID {
			dirty = true
		}
	}
	if dirty {
		if err := d.store.Save(rec); err != nil {
			errs = append(errs, err)
		}
	}

	d.logger.Trace("чанк %s: отправлено клеток %d зрителю %s (пересчёт: %v)", key, sent, viewer.Name(), stale)
	return sent, errors.Join(errs...)
}

// disguise маскировочное состояние записи. При свежей записи используется
// кэш; неразбираемый кэш пересчитывается. updated true если кэш изменён.
func (d *Dispatcher) disguise(loc world.Location, entry *storage.Entry, stale bool) (blockstate.CellState, bool, error) {
	if !stale && entry.Disguised != "" {
		state, err := blockstate.Parse(entry.Disguised)
		if err == nil {
			return state, false, nil
		}
		d.logger.Debug("кэш маскировки %q в %s повреждён, пересчёт: %v", entry.Disguised, loc, err)
	}

	res, err := d.resolver.ResolveState(d.cells.State(loc), entry.ID, entry.Slot, definition.Disguised)
	if err != nil {
		return blockstate.CellState{}, false, err
	}

	text := res.State.String()
	if text == entry.Disguised {
		return res.State, false, nil
	}
	entry.Disguised = text
	return res.State, true, nil
}

// DispatchArea отправляет все чанки квадрата (2*radius+1)^2 с центром в
// centerX, centerZ, начиная с ближних к центру колец.
func (d *Dispatcher) DispatchArea(viewer world.Viewer, worldName string, centerX, centerZ, radius int) (int, error) {
	total := 0
	var errs []error
	for ring := 0; ring <= radius; ring++ {
		for dx := -ring; dx <= ring; dx++ {
			for dz := -ring; dz <= ring; dz++ {
				if abs(dx) != ring && abs(dz) != ring {
					continue
				}
				key := storage.ChunkKey{World: worldName, X: centerX + dx, Z: centerZ + dz}
				n, err := d.Dispatch(viewer, key)
				total += n
				if err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return total, errors.Join(errs...)
}

// RefreshCell обновляет кэш маскировки одной клетки. Если реальная клетка
// пуста, запись удаляется и возвращается false.
func (d *Dispatcher) RefreshCell(loc world.Location) (blockstate.CellState, bool, error) {
	entry, ok, err := d.store.Entry(loc)
	if err != nil || !ok {
		return blockstate.Air(), false, err
	}

	if d.cells.IsEmpty(loc) {
		if _, err := d.store.RemoveEntry(loc); err != nil {
			return blockstate.Air(), false, err
		}
		d.logger.Debug("клетка %s пуста, оверлей %s снят с учёта", loc, entry.ID)
		return blockstate.Air(), false, nil
	}

	res, err := d.resolver.ResolveState(d.cells.State(loc), entry.ID, entry.Slot, definition.Disguised)
	if err != nil {
		return blockstate.Air(), false, err
	}
	if err := d.store.SetDisguised(loc, res.State.String()); err != nil {
		return res.State, true, err
	}
	return res.State, true, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
