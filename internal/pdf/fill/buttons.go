package fill

import (
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/pdf-autofill/internal/pdf/acroform"
)

const offState = "Off"

// setCheckbox maps value onto a checkbox field.
//
// "true"/"on" checks the field with its first widget's on-state and
// "false"/"off" unchecks it. Any other value names an export state of a
// multi-widget checkbox: /V becomes that state and each widget shows it only
// when its own on-state matches.
func (s *session) setCheckbox(field *acroform.Field, value string) error {
	switch normalize(value) {
	case "true", "on":
		on := ""
		for _, w := range field.Widgets {
			if on = w.OnState(s.ctx); on != "" {
				break
			}
		}
		if on == "" {
			on = "Yes"
		}
		s.selectState(field, on)
	case "false", "off":
		s.selectState(field, offState)
	default:
		s.selectState(field, strings.TrimPrefix(strings.TrimSpace(value), "/"))
	}
	return nil
}

// setRadio selects the radio button whose on-state equals value
func (s *session) setRadio(field *acroform.Field, value string) error {
	state := strings.TrimPrefix(strings.TrimSpace(value), "/")

	var states []string
	for _, w := range field.Widgets {
		on := w.OnState(s.ctx)
		if on == state {
			s.selectState(field, state)
			return nil
		}
		if on != "" {
			states = append(states, on)
		}
	}
	return fmt.Errorf("%q is not one of the options %v", value, states)
}

// selectState sets /V to state and every widget's /AS to state when the
// widget's on-state matches, else Off.
func (s *session) selectState(field *acroform.Field, state string) {
	field.Dict["V"] = types.Name(state)
	s.touchField(field)

	for _, w := range field.Widgets {
		as := offState
		if state != offState && w.OnState(s.ctx) == state {
			as = state
		}
		w.Dict["AS"] = types.Name(as)
		s.touchWidget(w)
	}
}
