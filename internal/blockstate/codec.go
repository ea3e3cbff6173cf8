package blockstate

import "strings"

// Parse разбирает текст вида type[k1=v1,k2=v2]. Порядок тегов сохраняется.
func Parse(text string) (CellState, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return CellState{}, &MalformedStateError{Text: text, Reason: "пустая строка"}
	}

	open := strings.IndexByte(raw, '[')
	if open < 0 {
		if strings.ContainsAny(raw, "]=,") {
			return CellState{}, &MalformedStateError{Text: text, Reason: "тег без скобок"}
		}
		return CellState{Type: raw}, nil
	}

	if strings.Count(raw, "[") != 1 || strings.Count(raw, "]") != 1 || raw[len(raw)-1] != ']' {
		return CellState{}, &MalformedStateError{Text: text, Reason: "несбалансированные скобки"}
	}

	state := CellState{Type: strings.TrimSpace(raw[:open])}
	if state.Type == "" || strings.ContainsAny(state.Type, "=,") {
		return CellState{}, &MalformedStateError{Text: text, Reason: "пустой или некорректный тип"}
	}

	body := strings.TrimSpace(raw[open+1 : len(raw)-1])
	if body == "" {
		return state, nil
	}

	for _, segment := range strings.Split(body, ",") {
		name, value, found := strings.Cut(segment, "=")
		if !found {
			return CellState{}, &MalformedStateError{Text: text, Reason: "тег " + strings.TrimSpace(segment) + " без '='"}
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			return CellState{}, &MalformedStateError{Text: text, Reason: "пустое имя или значение тега"}
		}
		if state.Has(name) {
			return CellState{}, &MalformedStateError{Text: text, Reason: "повторный тег " + name}
		}
		state.tags = append(state.tags, Tag{Name: name, Value: value})
	}

	return state, nil
}

// MustParse как Parse, но паникует при ошибке. Только для констант и тестов.
func MustParse(text string) CellState {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

// Format возвращает каноническую форму. Состояние без тегов записывается без скобок.
func Format(s CellState) string {
	if len(s.tags) == 0 {
		return s.Type
	}

	var b strings.Builder
	b.WriteString(s.Type)
	b.WriteByte('[')
	for i, t := range s.tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Name)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	b.WriteByte(']')
	return b.String()
}
