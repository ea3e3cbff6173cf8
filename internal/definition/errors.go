package definition

import "fmt"

// UnknownOverlayTypeError нет определения для id
type UnknownOverlayTypeError struct {
	ID string
}

func (e *UnknownOverlayTypeError) Error() string {
	return fmt.Sprintf("неизвестный тип оверлея %q", e.ID)
}

// MissingDefinitionSectionError в определении нет обязательной секции
type MissingDefinitionSectionError struct {
	ID      string
	Section string
}

func (e *MissingDefinitionSectionError) Error() string {
	return fmt.Sprintf("в определении %q нет секции %q", e.ID, e.Section)
}
