// Package relocation переносит записи оверлеев при сдвиге блоков поршнем.
package relocation

import (
	"errors"

	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/logging"
	"github.com/annel0/blockdisguise/internal/placement"
	"github.com/annel0/blockdisguise/internal/storage"
	"github.com/annel0/blockdisguise/internal/vec"
	"github.com/annel0/blockdisguise/internal/world"
)

// Host часть хоста, нужная для сдвига
type Host interface {
	world.BlockAccess
	world.MoveReactor
}

// Plan решение по пачке сдвигаемых клеток
type Plan struct {
	Destroy []world.Location
	Moves   []storage.Move
}

// Controller обрабатывает сдвиги блоков
type Controller struct {
	defs      *definition.Store
	store     *storage.Store
	placement *placement.Controller
	host      Host
	logger    *logging.Logger
}

// New создаёт Controller
func New(defs *definition.Store, store *storage.Store, pc *placement.Controller, host Host) *Controller {
	return &Controller{
		defs:      defs,
		store:     store,
		placement: pc,
		host:      host,
		logger:    logging.GetRelocationLogger(),
	}
}

// HandleBatch обрабатывает пачку клеток, сдвигаемых в направлении dir.
// true означает, что сдвиг нужно отменить; в этом случае ничего не применяется.
func (c *Controller) HandleBatch(cells []world.Location, dir vec.Vec3, push bool) (bool, error) {
	plan, cancel, err := c.Plan(cells, dir, push)
	if err != nil || cancel {
		return cancel, err
	}
	return false, c.Apply(plan)
}

// Plan проходит клетки по порядку и решает, какие оверлеи разрушить, а
// какие перенести. Первый оверлей с запретом сдвига отменяет всю пачку.
func (c *Controller) Plan(cells []world.Location, dir vec.Vec3, push bool) (Plan, bool, error) {
	var plan Plan
	for _, loc := range cells {
		entry, ok, err := c.store.Entry(loc)
		if err != nil {
			return Plan{}, false, err
		}
		if !ok {
			continue
		}
		def, ok := c.defs.Get(entry.ID)
		if !ok {
			c.logger.Warn("оверлей %s в %s без определения, сдвиг не обрабатывается", entry.ID, loc)
			continue
		}

		dest := loc.Relative(dir)
		if !def.Options.Unbreakable {
			if c.host.BreaksOnMove(loc) {
				c.logger.Debug("оверлей %s в %s ломается при сдвиге", entry.ID, loc)
				plan.Destroy = append(plan.Destroy, loc)
				continue
			}
			if def.Options.PistonBreakable && c.host.IsEmpty(dest) {
				c.logger.Debug("оверлей %s в %s сломан поршнем (piston-breakable)", entry.ID, loc)
				plan.Destroy = append(plan.Destroy, loc)
				continue
			}
		}

		if (push && def.Options.CancelPistonPush) || (!push && def.Options.CancelPistonPull) {
			c.logger.Debug("оверлей %s в %s запрещает сдвиг, пачка отменена", entry.ID, loc)
			return Plan{}, true, nil
		}
		plan.Moves = append(plan.Moves, storage.Move{From: loc, To: dest})
	}
	return plan, false, nil
}

// Apply сначала разрушает, затем переносит записи одной операцией
func (c *Controller) Apply(plan Plan) error {
	var errs []error
	for _, loc := range plan.Destroy {
		if _, err := c.placement.Destroy(loc, nil, placement.DestroyOptions{DropItems: true}); err != nil {
			c.logger.Error("не удалось разрушить оверлей в %s: %v", loc, err)
			errs = append(errs, err)
		}
	}
	if err := c.store.MoveEntries(plan.Moves); err != nil {
		errs = append(errs, err)
	}
	if len(plan.Moves) > 0 {
		c.logger.Debug("перенесено оверлеев: %d, разрушено: %d", len(plan.Moves), len(plan.Destroy))
	}
	return errors.Join(errs...)
}
