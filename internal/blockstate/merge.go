package blockstate

// Schema знает допустимые теги для типа блока. Реализуется хостом.
type Schema interface {
	// TagsFor возвращает допустимые имена тегов; known=false, если тип неизвестен
	TagsFor(typeName string) (names []string, known bool)
}

// StaticSchema схема из фиксированной таблицы тип -> теги
type StaticSchema map[string][]string

func (s StaticSchema) TagsFor(typeName string) ([]string, bool) {
	names, ok := s[typeName]
	return names, ok
}

// Merge переносит на base теги из allowed: значение из overrides, если оно есть,
// иначе остаётся значение base. Пустой allowed возвращает base без изменений.
func Merge(base, overrides CellState, allowed []string, schema Schema) (CellState, error) {
	if len(allowed) == 0 {
		return base, nil
	}

	var valid map[string]struct{}
	if schema != nil {
		if names, known := schema.TagsFor(base.Type); known {
			valid = make(map[string]struct{}, len(names))
			for _, n := range names {
				valid[n] = struct{}{}
			}
		}
	}

	result := base.Clone()
	for _, name := range allowed {
		value, ok := overrides.Get(name)
		if !ok {
			continue
		}
		if valid != nil {
			if _, ok := valid[name]; !ok {
				return base, &IncompatibleStateError{Type: base.Type, Tag: name}
			}
		}
		result.Set(name, value)
	}

	return result, nil
}
