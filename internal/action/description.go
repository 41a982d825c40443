package action

// Factory builds an action from validated property values.
type Factory func(env Environment, values Values) (Action, error)

// Description is the catalog entry for one action: its identity, the properties
// it accepts and the modes it is meant for. Mode lists are informational only.
type Description struct {
	Namespace       string
	Name            string
	Summary         string
	Properties      []Property
	SuggestedModes  []Mode
	CompatibleModes []Mode

	factory Factory
}

// NewDescription attaches the factory used when the description is bound.
func NewDescription(namespace, name, summary string, factory Factory) Description {
	return Description{Namespace: namespace, Name: name, Summary: summary, factory: factory}
}

// WithProperties returns a copy declaring the given properties.
func (d Description) WithProperties(props ...Property) Description {
	d.Properties = append([]Property(nil), props...)
	return d
}

// WithModes returns a copy with the suggested and compatible modes set.
func (d Description) WithModes(suggested []Mode, compatible ...Mode) Description {
	d.SuggestedModes = append([]Mode(nil), suggested...)
	d.CompatibleModes = append([]Mode(nil), compatible...)
	return d
}

// FullName is namespace:name, the key actions are stored under.
func (d Description) FullName() string {
	return d.Namespace + ":" + d.Name
}

// IsCompatible reports whether the action may be bound to mode.
func (d Description) IsCompatible(mode Mode) bool {
	return containsMode(d.CompatibleModes, mode)
}

// IsSuggested reports whether mode is one of the suggested modes.
func (d Description) IsSuggested(mode Mode) bool {
	return containsMode(d.SuggestedModes, mode)
}

// RequiredKeys lists the keys that must be supplied when binding.
func (d Description) RequiredKeys() []string {
	var keys []string
	for _, p := range d.Properties {
		if p.Required {
			keys = append(keys, p.Key)
		}
	}
	return keys
}

func containsMode(modes []Mode, mode Mode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}
