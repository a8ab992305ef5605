package domain

import "strconv"

// Department is a first-level administrative division.
type Department struct {
	Code string
	Name string
}

// Departments is the national department list, ordered by code.
var Departments = []Department{
	{"05", "Antioquia"}, {"08", "Atlantico"}, {"11", "Bogota"}, {"13", "Bolivar"},
	{"15", "Boyaca"}, {"17", "Caldas"}, {"18", "Caqueta"}, {"19", "Cauca"},
	{"20", "Cesar"}, {"23", "Cordoba"}, {"25", "Cundinamarca"}, {"27", "Choco"},
	{"41", "Huila"}, {"44", "LaGuajira"}, {"47", "Magdalena"}, {"50", "Meta"},
	{"52", "Narino"}, {"54", "NorteDeSantander"}, {"63", "Quindio"}, {"66", "Risaralda"},
	{"68", "Santander"}, {"70", "Sucre"}, {"73", "Tolima"}, {"76", "ValleDelCauca"},
	{"81", "Arauca"}, {"85", "Casanare"}, {"86", "Putumayo"},
	{"88", "SanAndresProvidenciaYSantaCatalina"}, {"91", "Amazonas"}, {"94", "Guainia"},
	{"95", "Guaviare"}, {"97", "Vaupes"}, {"99", "Vichada"},
}

// LookupDepartment finds a department by code ("5" and "05" are equivalent)
// or by name.
func LookupDepartment(key string) (Department, bool) {
	if n, err := strconv.Atoi(key); err == nil {
		for _, d := range Departments {
			if c, _ := strconv.Atoi(d.Code); c == n {
				return d, true
			}
		}
		return Department{}, false
	}
	for _, d := range Departments {
		if d.Name == key {
			return d, true
		}
	}
	return Department{}, false
}

// Number returns the numeric department code.
func (d Department) Number() int {
	n, _ := strconv.Atoi(d.Code)
	return n
}
