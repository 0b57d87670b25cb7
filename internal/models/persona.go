package models

// Persona is a backend response mode ("brain") together with its accent color and the console control
// that selects it.
type Persona struct {
	Key     string
	Name    string
	Color   Color
	Control string
}

// DefaultPersonas returns the four personas the Argus backend ships with. The control keys match the
// first significant word of each persona name.
func DefaultPersonas() []Persona {
	return []Persona{
		{Key: "architect", Name: "The Architect", Color: NewColor(0x00ff00), Control: "Architect"},
		{Key: "strategist", Name: "The Strategist", Color: NewColor(0xff0000), Control: "Strategist"},
		{Key: "operator", Name: "The Operator", Color: NewColor(0xff8800), Control: "Operator"},
		{Key: "polymath", Name: "The Polymath", Color: NewColor(0x9932cc), Control: "Polymath"},
	}
}
