package fill

import (
	"fmt"

	"github.com/a3tai/pdf-autofill/internal/pdf/acroform"
)

// setChoice selects value on a choice field. The value must be one of the
// field's export values unless the field is an editable combo box.
func (s *session) setChoice(field *acroform.Field, value string) error {
	options := acroform.Options(s.ctx, field.Dict)

	allowed := field.Editable()
	for _, opt := range options {
		if opt == value {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%q is not one of the options %v", value, options)
	}

	field.Dict["V"] = textString(value)
	// selected indices would contradict the new value
	delete(field.Dict, "I")
	s.touchField(field)
	s.setTextAppearance(field, value)
	s.needAppearances = true
	return nil
}
