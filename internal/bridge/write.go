package bridge

import (
	"fmt"
	"strconv"

	"github.com/observon/indi-core/internal/indi"
)

// SetProperty validates a client write against the mirrored definition
// and forwards it to the INDI server as a newXXXVector.
//
// Validation, in order:
//   - device and property must be defined (ErrUnknownDevice,
//     ErrUnknownProperty)
//   - the property must be writable (ErrPermissionDenied)
//   - every named element must exist (ErrUnknownElement)
//   - values must satisfy the property type and, for switches, the
//     switch rule (ErrInvalidValue)
//
// Switch writes are completed to a full element set: under OneOfMany
// exactly one requested element must be On and all others are sent Off;
// under AtMostOne at most one may be On; AnyOfMany sends the requested
// elements as-is.
//
// The mirrored state is not touched here. The server echoes accepted
// writes as setXXXVector events, which update the tree through the
// normal ingest path.
func (b *Bridge) SetProperty(device, name string, values map[string]string) error {
	prop, err := b.Property(device, name)
	if err != nil {
		return err
	}

	if !prop.Writable() {
		return fmt.Errorf("%w: %s/%s is %s", ErrPermissionDenied, device, name, prop.Perm)
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: no element values", ErrInvalidValue)
	}
	for elName := range values {
		if prop.Element(elName) == nil {
			return fmt.Errorf("%w: %s/%s has no element %q", ErrUnknownElement, device, name, elName)
		}
	}

	var ordered []indi.ElementValue
	switch prop.Type {
	case indi.TypeText:
		ordered = orderedValues(prop, values)

	case indi.TypeNumber:
		ordered, err = validateNumbers(prop, values)
		if err != nil {
			return err
		}

	case indi.TypeSwitch:
		ordered, err = completeSwitches(prop, values)
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %s/%s", ErrPermissionDenied, device, name)
	}

	payload, err := indi.EncodeNewVector(prop.Type, device, name, ordered)
	if err != nil {
		return err
	}
	if err := b.send(payload); err != nil {
		return err
	}

	b.logger.Debug("property write sent",
		"device", device,
		"property", name,
		"elements", len(ordered),
	)
	return nil
}

// orderedValues arranges the provided values in element definition
// order, which some drivers depend on.
func orderedValues(prop *indi.Property, values map[string]string) []indi.ElementValue {
	out := make([]indi.ElementValue, 0, len(values))
	for _, el := range prop.Elements {
		if v, ok := values[el.Name]; ok {
			out = append(out, indi.ElementValue{Name: el.Name, Value: v})
		}
	}
	return out
}

// validateNumbers parses each value and checks it against the element's
// advertised range. Values are sent in canonical decimal form.
func validateNumbers(prop *indi.Property, values map[string]string) ([]indi.ElementValue, error) {
	out := make([]indi.ElementValue, 0, len(values))
	for _, el := range prop.Elements {
		raw, ok := values[el.Name]
		if !ok {
			continue
		}

		n, err := indi.ParseNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: element %q: %v", ErrInvalidValue, el.Name, err)
		}
		// Min == Max means the driver advertises no range.
		if el.Min < el.Max && (n < el.Min || n > el.Max) {
			return nil, fmt.Errorf("%w: element %q: %v outside [%v, %v]",
				ErrInvalidValue, el.Name, n, el.Min, el.Max)
		}

		out = append(out, indi.ElementValue{
			Name:  el.Name,
			Value: strconv.FormatFloat(n, 'g', -1, 64),
		})
	}
	return out, nil
}

// completeSwitches validates switch values against the property's rule
// and expands the request to the full element set where the rule
// requires exclusivity.
func completeSwitches(prop *indi.Property, values map[string]string) ([]indi.ElementValue, error) {
	on := 0
	for elName, v := range values {
		if v != indi.SwitchOn && v != indi.SwitchOff {
			return nil, fmt.Errorf("%w: element %q: switch value must be On or Off, got %q",
				ErrInvalidValue, elName, v)
		}
		if v == indi.SwitchOn {
			on++
		}
	}

	switch prop.Rule {
	case indi.RuleOneOfMany:
		if on != 1 {
			return nil, fmt.Errorf("%w: rule OneOfMany requires exactly one element On, got %d",
				ErrInvalidValue, on)
		}
	case indi.RuleAtMostOne:
		if on > 1 {
			return nil, fmt.Errorf("%w: rule AtMostOne allows at most one element On, got %d",
				ErrInvalidValue, on)
		}
	case indi.RuleAnyOfMany:
		// No constraint; send the requested elements only.
		return orderedValues(prop, values), nil
	}

	// Exclusive rules: send every element, completing unmentioned ones
	// to Off so the driver sees a consistent vector.
	out := make([]indi.ElementValue, 0, len(prop.Elements))
	for _, el := range prop.Elements {
		v := indi.SwitchOff
		if req, ok := values[el.Name]; ok && req == indi.SwitchOn {
			v = indi.SwitchOn
		}
		out = append(out, indi.ElementValue{Name: el.Name, Value: v})
	}
	return out, nil
}
