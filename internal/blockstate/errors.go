package blockstate

import "fmt"

// MalformedStateError текст состояния не удалось разобрать
type MalformedStateError struct {
	Text   string
	Reason string
}

func (e *MalformedStateError) Error() string {
	return fmt.Sprintf("некорректное состояние блока %q: %s", e.Text, e.Reason)
}

// IncompatibleStateError тег не допустим для типа базового состояния
type IncompatibleStateError struct {
	Type string
	Tag  string
}

func (e *IncompatibleStateError) Error() string {
	return fmt.Sprintf("тег %q недопустим для блока %q", e.Tag, e.Type)
}
