package definition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/annel0/blockdisguise/internal/blockstate"
	"github.com/annel0/blockdisguise/internal/logging"
)

var (
	stateKeys = map[string]bool{
		"actual-block": true, "actual-block2": true,
		"disguised-block": true, "disguised-block2": true,
		"destroy-particles": true, "destroy-particles2": true,
	}
	syncKeys = map[string]bool{
		"sync-states": true, "sync-states2": true,
		"actual-sync-states": true, "actual-sync-states2": true,
		"disguised-sync-states": true, "disguised-sync-states2": true,
	}
	matchKeys = map[string]bool{
		"actual-match-states": true, "actual-match-states2": true,
		"disguised-match-states": true, "disguised-match-states2": true,
	}
	overrideKeys = map[string]bool{
		"actual-block": true, "actual-block2": true,
		"disguised-block": true, "disguised-block2": true,
	}
)

// LoadDocument разбирает YAML документ, в котором на верхнем уровне
// объявлены id оверлеев. Возвращает успешно разобранные определения и
// объединённую ошибку по тем, что разобрать не удалось.
func LoadDocument(data []byte, source string) (map[string]*Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", source, err)
	}

	defs := make(map[string]*Definition)
	if len(doc.Content) == 0 {
		return defs, nil
	}

	root := resolve(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("разбор %s: ожидалась секция с id оверлеев", source)
	}

	var errs []error
	for i := 0; i+1 < len(root.Content); i += 2 {
		id := root.Content[i].Value
		def, err := Parse(id, root.Content[i+1])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		def.Source = source
		defs[id] = def
	}

	return defs, errors.Join(errs...)
}

// Parse строит одно определение из YAML секции <id>: {item, block}.
// Порядок ключей секций сохраняется.
func Parse(id string, node *yaml.Node) (*Definition, error) {
	node = resolve(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("определение %q: ожидалась секция", id)
	}

	def := &Definition{
		ID:     id,
		states: make(map[string]string),
		sync:   make(SyncLists),
		match:  make(map[string][]*MatchNode),
		forced: make(map[string][]blockstate.Tag),
	}

	var block *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, resolve(node.Content[i+1])
		switch key {
		case "item":
			item, err := text(value)
			if err != nil {
				return nil, fmt.Errorf("определение %q, item: %w", id, err)
			}
			def.Item = item
		case "block":
			block = value
		}
	}

	if block == nil || block.Kind != yaml.MappingNode {
		return nil, &MissingDefinitionSectionError{ID: id, Section: "block"}
	}

	for i := 0; i+1 < len(block.Content); i += 2 {
		key, value := block.Content[i].Value, resolve(block.Content[i+1])
		if err := def.parseBlockKey(key, value); err != nil {
			return nil, fmt.Errorf("определение %q, block.%s: %w", id, key, err)
		}
	}

	return def, nil
}

func (d *Definition) parseBlockKey(key string, value *yaml.Node) error {
	switch {
	case stateKeys[key]:
		s, err := scalar(value)
		if err != nil {
			return err
		}
		d.states[key] = s
	case syncKeys[key]:
		list, err := stringList(value)
		if err != nil {
			return err
		}
		d.sync[key] = list
	case matchKeys[key]:
		nodes, err := parseMatchNodes(d.ID, value, 1)
		if err != nil {
			return err
		}
		d.match[key] = nodes
	case key == "force-actual-states" || key == "force-actual-states2":
		tags, err := parseForced(value)
		if err != nil {
			return err
		}
		d.forced[key] = tags
	case key == "drops":
		drops, err := parseDrops(d.ID, value)
		if err != nil {
			return err
		}
		d.Drops = drops
	case key == "destroy-sound":
		s, err := scalar(value)
		if err != nil {
			return err
		}
		d.DestroySound = s
	case key == "options":
		return parseOptions(value, &d.Options)
	}
	return nil
}

func parseMatchNodes(id string, parent *yaml.Node, depth int) ([]*MatchNode, error) {
	if parent.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("ожидалась секция, получено %s", kindName(parent))
	}

	var nodes []*MatchNode
	for i := 0; i+1 < len(parent.Content); i += 2 {
		name, value := parent.Content[i].Value, resolve(parent.Content[i+1])
		if value.Kind != yaml.MappingNode {
			continue
		}
		node, err := parseMatchNode(id, name, value, depth)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func parseMatchNode(id, name string, section *yaml.Node, depth int) (*MatchNode, error) {
	if depth > MaxMatchDepth {
		return nil, fmt.Errorf("узел %s: глубина больше %d", name, MaxMatchDepth)
	}

	node := &MatchNode{
		Name:      name,
		Tag:       strings.TrimRight(name, "0123456789"),
		overrides: make(map[string]string),
		Sync:      make(SyncLists),
	}

	hasState := false
	for i := 0; i+1 < len(section.Content); i += 2 {
		key, value := section.Content[i].Value, resolve(section.Content[i+1])
		switch {
		case key == "state":
			s, err := scalar(value)
			if err != nil {
				return nil, fmt.Errorf("узел %s: %w", name, err)
			}
			node.Expected = s
			hasState = true
		case overrideKeys[key]:
			s, err := scalar(value)
			if err != nil {
				return nil, fmt.Errorf("узел %s.%s: %w", name, key, err)
			}
			node.overrides[key] = s
		case syncKeys[key]:
			list, err := stringList(value)
			if err != nil {
				return nil, fmt.Errorf("узел %s.%s: %w", name, key, err)
			}
			node.Sync[key] = list
		}
	}

	if !hasState {
		logging.GetDefinitionLogger().Debug("%s: узел %s без state пропущен", id, name)
		return nil, nil
	}
	if node.Tag == "" {
		return nil, fmt.Errorf("узел %s: пустое имя тега", name)
	}

	children, err := parseMatchNodes(id, section, depth+1)
	if err != nil {
		return nil, err
	}
	node.Children = children
	return node, nil
}

func parseForced(value *yaml.Node) ([]blockstate.Tag, error) {
	if value.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("ожидалась секция тег: значение, получено %s", kindName(value))
	}
	tags := make([]blockstate.Tag, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		v, err := scalar(resolve(value.Content[i+1]))
		if err != nil {
			return nil, fmt.Errorf("тег %s: %w", value.Content[i].Value, err)
		}
		tags = append(tags, blockstate.Tag{Name: value.Content[i].Value, Value: v})
	}
	return tags, nil
}

func parseOptions(value *yaml.Node, opts *Options) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("ожидалась секция, получено %s", kindName(value))
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var target *bool
		switch value.Content[i].Value {
		case "unbreakable":
			target = &opts.Unbreakable
		case "piston-breakable":
			target = &opts.PistonBreakable
		case "cancel-piston-push":
			target = &opts.CancelPistonPush
		case "cancel-piston-pull":
			target = &opts.CancelPistonPull
		default:
			continue
		}
		if err := resolve(value.Content[i+1]).Decode(target); err != nil {
			return fmt.Errorf("%s: %w", value.Content[i].Value, err)
		}
	}
	return nil
}

func parseDrops(id string, value *yaml.Node) (*DropTable, error) {
	if value.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("ожидалась секция, получено %s", kindName(value))
	}

	table := &DropTable{Enabled: true}
	for i := 0; i+1 < len(value.Content); i += 2 {
		name, section := value.Content[i].Value, resolve(value.Content[i+1])
		if name == "enabled" {
			if err := section.Decode(&table.Enabled); err != nil {
				return nil, fmt.Errorf("enabled: %w", err)
			}
			continue
		}
		if section.Kind != yaml.MappingNode {
			continue
		}
		ds, err := parseDropSection(id, name, section)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		table.Sections = append(table.Sections, ds)
	}
	return table, nil
}

func parseDropSection(id, name string, section *yaml.Node) (DropSection, error) {
	ds := DropSection{Name: name}
	for i := 0; i+1 < len(section.Content); i += 2 {
		key, value := section.Content[i].Value, resolve(section.Content[i+1])
		switch strings.ToLower(key) {
		case "conditions":
			list, err := stringList(value)
			if err != nil {
				return ds, fmt.Errorf("conditions: %w", err)
			}
			ds.Conditions = list
		case "chance":
			if err := value.Decode(&ds.Chance); err != nil {
				return ds, fmt.Errorf("chance: %w", err)
			}
			ds.HasChance = true
		case "set-xp":
			v, err := number(value)
			if err != nil {
				return ds, fmt.Errorf("set-xp: %w", err)
			}
			ds.SetXP = &v
		case "add-xp":
			v, err := number(value)
			if err != nil {
				return ds, fmt.Errorf("add-xp: %w", err)
			}
			ds.AddXP = &v
		case "multiply-xp":
			v, err := number(value)
			if err != nil {
				return ds, fmt.Errorf("multiply-xp: %w", err)
			}
			ds.MultiplyXP = &v
		default:
			ds.Items = append(ds.Items, parseDropItem(id, name, key, value))
		}
	}
	return ds, nil
}

// parseDropItem разбирает `<key>: <count>` или `<key>: {count, nbt}`.
// Нераспознанное количество даёт 1.
func parseDropItem(id, section, key string, value *yaml.Node) DropItem {
	item := DropItem{Key: key, MinCount: 1, MaxCount: 1}
	countNode := value
	allowFloat := false

	if value.Kind == yaml.MappingNode {
		countNode = nil
		allowFloat = true
		for i := 0; i+1 < len(value.Content); i += 2 {
			child := resolve(value.Content[i+1])
			switch value.Content[i].Value {
			case "nbt":
				item.NBT, _ = text(child)
			case "count":
				countNode = child
			}
		}
	}

	if countNode == nil {
		return item
	}
	lo, hi, err := parseCount(countNode, allowFloat)
	if err != nil {
		logging.GetDefinitionLogger().Warn("%s: количество предмета %s в секции дропа %s: %v", id, key, section, err)
		return item
	}
	item.MinCount, item.MaxCount = lo, hi
	return item
}

func parseCount(node *yaml.Node, allowFloat bool) (int, int, error) {
	if node.Kind != yaml.ScalarNode {
		return 1, 1, nil
	}
	switch node.ShortTag() {
	case "!!int":
		n, err := strconv.Atoi(node.Value)
		if err != nil {
			return 0, 0, err
		}
		return n, n, nil
	case "!!float":
		if !allowFloat {
			return 1, 1, nil
		}
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return 0, 0, err
		}
		return int(f), int(f), nil
	case "!!str":
		if !strings.Contains(node.Value, "-") || len(node.Value) < 3 {
			return 1, 1, nil
		}
		left, right, _ := strings.Cut(node.Value, "-")
		lo, err := strconv.Atoi(strings.TrimSpace(left))
		if err != nil {
			return 0, 0, fmt.Errorf("диапазон %q: %w", node.Value, err)
		}
		hi, err := strconv.Atoi(strings.TrimSpace(right))
		if err != nil {
			return 0, 0, fmt.Errorf("диапазон %q: %w", node.Value, err)
		}
		if hi < lo {
			return 0, 0, fmt.Errorf("диапазон %q: максимум меньше минимума", node.Value)
		}
		return lo, hi, nil
	}
	return 1, 1, nil
}

func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && (node.Kind == yaml.AliasNode || node.Kind == yaml.DocumentNode) {
		if node.Kind == yaml.AliasNode {
			node = node.Alias
			continue
		}
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	return node
}

func scalar(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("ожидалось значение, получено %s", kindName(node))
	}
	return node.Value, nil
}

// text возвращает скаляр как есть, а составной узел в виде YAML текста
func text(node *yaml.Node) (string, error) {
	if node.Kind == yaml.ScalarNode {
		return node.Value, nil
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func stringList(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == "!!null" {
			return []string{}, nil
		}
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		list := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			s, err := scalar(resolve(item))
			if err != nil {
				return nil, err
			}
			list = append(list, s)
		}
		return list, nil
	}
	return nil, fmt.Errorf("ожидался список, получено %s", kindName(node))
}

func number(node *yaml.Node) (float64, error) {
	var v float64
	if err := node.Decode(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "секция"
	case yaml.SequenceNode:
		return "список"
	case yaml.ScalarNode:
		return "значение"
	}
	return "пустой узел"
}
