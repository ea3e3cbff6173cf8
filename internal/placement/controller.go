// Package placement ставит оверлеи в клетки и разрушает их: реальное
// состояние, запись в журнале, эффекты и дроп.
package placement

import (
	"fmt"
	"math/rand"

	"github.com/annel0/blockdisguise/internal/blockstate"
	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/logging"
	"github.com/annel0/blockdisguise/internal/resolver"
	"github.com/annel0/blockdisguise/internal/storage"
	"github.com/annel0/blockdisguise/internal/world"
)

// DestroyOptions что делать при разрушении
type DestroyOptions struct {
	DropItems    bool
	SpawnEffects bool
}

// DestroyResult итог разрушения. DefaultsReplaced true, если дроп оверлея
// заменяет дроп хоста и хост должен отменить свой.
type DestroyResult struct {
	WasOverlay       bool
	ID               string
	Slot             definition.Slot
	Drops            Drops
	DefaultsReplaced bool
}

// Controller управляет установкой и разрушением оверлеев
type Controller struct {
	defs     *definition.Store
	resolver *resolver.Resolver
	store    *storage.Store
	host     world.Host
	logger   *logging.Logger
	random   func() float64
}

// New создаёт Controller
func New(store *storage.Store, res *resolver.Resolver, host world.Host) *Controller {
	return &Controller{
		defs:     res.Definitions(),
		resolver: res,
		store:    store,
		host:     host,
		logger:   logging.GetPlacementLogger(),
		random:   rand.Float64,
	}
}

// SetRandom заменяет источник случайных чисел [0, 1) для шансов и диапазонов
func (c *Controller) SetRandom(random func() float64) {
	c.random = random
}

// Place ставит оверлей id в клетку. Реальное состояние меняется только если
// для слота задан actual-block. Без определения ни мир, ни журнал не меняются.
func (c *Controller) Place(loc world.Location, id string, slot definition.Slot, actor world.Actor) error {
	def, err := c.defs.Lookup(id)
	if err != nil {
		c.logger.Debug("%s поставил неизвестный оверлей в %s: %v", actorName(actor), loc, err)
		return err
	}

	if def.HasActualSource(slot) {
		state, err := c.resolver.Resolve(c.host, loc, id, slot, definition.Actual)
		if err != nil {
			return err
		}
		if !state.IsEmpty() {
			if err := c.host.SetState(loc, state); err != nil {
				return fmt.Errorf("установка реального состояния %s в %s: %w", state, loc, err)
			}
		}
	} else {
		c.logger.Debug("реальная клетка %s не изменена: у оверлея %s нет actual-block%s", loc, id, slot.Suffix())
	}

	if err := c.store.PutEntry(loc, storage.Entry{ID: id, Slot: slot}); err != nil {
		return err
	}
	c.logger.Info("%s поставил оверлей %s (%s) в %s", actorName(actor), id, slot, loc)
	return nil
}

// Destroy разрушает оверлей в клетке: очищает клетку, запускает эффекты,
// снимает запись и выбрасывает дроп. Без записи ничего не делает.
func (c *Controller) Destroy(loc world.Location, actor world.Actor, opts DestroyOptions) (DestroyResult, error) {
	entry, ok, err := c.store.Entry(loc)
	if err != nil || !ok {
		return DestroyResult{}, err
	}
	res := DestroyResult{WasOverlay: true, ID: entry.ID, Slot: entry.Slot}

	cell := c.host.State(loc)
	if !cell.IsEmpty() {
		if err := c.host.SetEmpty(loc); err != nil {
			c.logger.Error("не удалось очистить клетку %s: %v", loc, err)
		}
	}

	if opts.SpawnEffects {
		if def, ok := c.defs.Get(entry.ID); ok {
			c.spawnEffects(loc, def, entry, cell)
		} else {
			c.logger.Error("эффекты разрушения %s в %s пропущены: определение не найдено", entry.ID, loc)
		}
	}

	if _, err := c.store.RemoveEntry(loc); err != nil {
		return res, err
	}
	c.logger.Info("%s разрушил оверлей %s в %s", actorName(actor), entry.ID, loc)

	if !opts.DropItems {
		return res, nil
	}
	drops, replaced, err := c.ResolveDrops(entry.ID, actor)
	if err != nil {
		c.logger.Error("дроп оверлея %s в %s: %v", entry.ID, loc, err)
		return res, nil
	}
	if !replaced {
		return res, nil
	}

	res.Drops, res.DefaultsReplaced = drops, true
	if drops.XP > 0 {
		c.host.SpawnXP(loc, drops.XP)
	}
	for _, item := range drops.Items {
		c.host.DropItem(loc, item)
	}
	return res, nil
}

// spawnEffects частицы берутся из destroy-particles слота, затем из кэша
// маскировки, затем из реального состояния. Звук только у основного слота.
func (c *Controller) spawnEffects(loc world.Location, def *definition.Definition, entry storage.Entry, cell blockstate.CellState) {
	text, ok := def.DestroyParticles(entry.Slot)
	if !ok {
		text = entry.Disguised
		if text == "" {
			text = cell.String()
		}
	}

	particles, err := blockstate.Parse(text)
	if err != nil {
		c.logger.Error("оверлей %s: недопустимое состояние частиц %q: %v", def.ID, text, err)
		return
	}
	if err := c.host.SpawnBlockParticles(loc, particles); err != nil {
		c.logger.Error("оверлей %s: частицы разрушения: %v", def.ID, err)
	}

	if entry.Slot != definition.Primary {
		return
	}
	sound := def.DestroySound
	if sound == "" {
		if sound, ok = c.host.DefaultBreakSound(particles); !ok {
			return
		}
	}
	if err := c.host.PlaySound(loc, sound); err != nil {
		c.logger.Error("оверлей %s: звук разрушения %q: %v", def.ID, sound, err)
	}
}

func actorName(actor world.Actor) string {
	if actor == nil {
		return "мир"
	}
	return actor.Name()
}
