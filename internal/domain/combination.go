package domain

import "strings"

// DwellingUse is the dwelling-use type of a building record.
type DwellingUse string

// Dwelling-use labels as emitted by the building census aggregator.
const (
	DwellingHouse         DwellingUse = "Casa"
	DwellingApartment     DwellingUse = "Apartamento"
	DwellingNotApplicable DwellingUse = "No aplica"
)

// NormalizeDwellingUse maps a raw dwelling-use token to one of the three
// known uses. Anything other than a house or apartment is NotApplicable.
func NormalizeDwellingUse(raw string) DwellingUse {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "casa", "house":
		return DwellingHouse
	case "apartamento", "apartment":
		return DwellingApartment
	default:
		return DwellingNotApplicable
	}
}

// Combination identifies one material-based building class: a wall material,
// a floor material and a dwelling-use type.
type Combination struct {
	Wall  string      `json:"wall_material"`
	Floor string      `json:"floor_material"`
	Use   DwellingUse `json:"dwelling_use"`
}

// Trimmed returns the combination with incidental whitespace removed from all
// three fields.
func (c Combination) Trimmed() Combination {
	return Combination{
		Wall:  strings.TrimSpace(c.Wall),
		Floor: strings.TrimSpace(c.Floor),
		Use:   DwellingUse(strings.TrimSpace(string(c.Use))),
	}
}

// Less orders combinations by wall, then floor, then use.
func (c Combination) Less(o Combination) bool {
	if c.Wall != o.Wall {
		return c.Wall < o.Wall
	}
	if c.Floor != o.Floor {
		return c.Floor < o.Floor
	}
	return c.Use < o.Use
}

func (c Combination) String() string {
	return c.Wall + " / " + c.Floor + " / " + string(c.Use)
}
