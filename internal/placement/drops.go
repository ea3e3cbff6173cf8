package placement

import (
	"fmt"

	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/world"
)

// InvalidConditionError условие секции дропа не является зачарованием хоста
type InvalidConditionError struct {
	ID        string
	Section   string
	Condition string
}

func (e *InvalidConditionError) Error() string {
	return fmt.Sprintf("оверлей %q, секция дропа %q: неизвестное зачарование %q", e.ID, e.Section, e.Condition)
}

// Drops итог разрешения таблицы дропа
type Drops struct {
	Items []world.ItemStack
	XP    int
}

// ResolveDrops вычисляет дроп оверлея. Второе значение false, если у
// определения нет включённой таблицы дропа и должен остаться дроп хоста.
// Секции без выполненных условий или не прошедшие шанс пропускаются.
func (c *Controller) ResolveDrops(id string, actor world.Actor) (Drops, bool, error) {
	def, err := c.defs.Lookup(id)
	if err != nil {
		return Drops{}, false, err
	}
	if def.Drops == nil {
		c.logger.Debug("у оверлея %s нет секции drops, дроп не изменён", id)
		return Drops{}, false, nil
	}
	if !def.Drops.Enabled {
		c.logger.Debug("дроп оверлея %s выключен (enabled: false)", id)
		return Drops{}, false, nil
	}

	var out Drops
	xp := 0.0
	for _, section := range def.Drops.Sections {
		if !c.conditionsMet(id, section, actor) {
			continue
		}

		if section.HasChance {
			if section.Chance > 0 && section.Chance < 1 {
				if c.random() >= section.Chance {
					continue
				}
			} else {
				c.logger.Error("оверлей %s, секция дропа %s: шанс %v должен быть строго между 0 и 1", id, section.Name, section.Chance)
			}
		}

		if section.SetXP != nil {
			xp = *section.SetXP
		}
		if section.AddXP != nil {
			xp += *section.AddXP
		}
		if section.MultiplyXP != nil {
			xp *= *section.MultiplyXP
		}

		for _, item := range section.Items {
			stack, ok := c.itemFor(item.Key)
			if !ok {
				c.logger.Debug("оверлей %s, секция дропа %s: %q не оверлей и не материал", id, section.Name, item.Key)
				continue
			}
			stack.Count = c.count(item)
			stack.MergeNBT = item.NBT
			out.Items = append(out.Items, stack)
		}
	}

	out.XP = int(xp)
	c.logger.Debug("оверлей %s: дроп %v и %d опыта", id, out.Items, out.XP)
	return out, true, nil
}

// conditionsMet все зачарования секции есть на предмете в руке.
// Без игрока секция с условиями не выполняется.
func (c *Controller) conditionsMet(id string, section definition.DropSection, actor world.Actor) bool {
	if section.Conditions == nil {
		return true
	}
	if actor == nil {
		return false
	}

	held := actor.HeldItem()
	for _, cond := range section.Conditions {
		name := world.NormalizeKey(cond)
		if !c.host.IsEnchantment(name) {
			c.logger.Error("%v", &InvalidConditionError{ID: id, Section: section.Name, Condition: cond})
			return false
		}
		if !held.HasEnchantment(name) {
			return false
		}
	}
	return true
}

// itemFor id оверлея имеет приоритет над материалом
func (c *Controller) itemFor(key string) (world.ItemStack, bool) {
	if def, ok := c.defs.Get(key); ok {
		return world.ItemStack{OverlayID: def.ID, NBT: def.Item, Count: 1}, true
	}
	if c.host.IsMaterial(key) {
		return world.ItemStack{Material: world.NormalizeKey(key), Count: 1}, true
	}
	return world.ItemStack{}, false
}

func (c *Controller) count(item definition.DropItem) int {
	if item.MaxCount <= item.MinCount {
		return item.MinCount
	}
	return item.MinCount + int(c.random()*float64(item.MaxCount-item.MinCount+1))
}
