package domain

// Fixed identifying columns of the output tables.
const (
	ColMunicipalityCode = "municipality_code"
	ColMunicipalityName = "municipality_name"
	ColWallMaterial     = "wall_material"
	ColFloorMaterial    = "floor_material"
	ColDwellingUse      = "dwelling_use"
	ColBuildings        = "buildings"
)

// Row is one output record: identifying key values followed by numeric
// values aligned with the table's ValueColumns.
type Row struct {
	Keys   []string
	Values []int64
}

// Table is an output table. KeyColumns identify a row; ValueColumns are
// numeric. Columns from TypologyStart onwards are typology counts.
type Table struct {
	KeyColumns    []string
	ValueColumns  []string
	TypologyStart int
	Rows          []Row
}

// Typologies returns the typology columns of the table.
func (t *Table) Typologies() []string {
	return t.ValueColumns[t.TypologyStart:]
}

// Columns returns the full header: key columns then value columns.
func (t *Table) Columns() []string {
	out := make([]string, 0, len(t.KeyColumns)+len(t.ValueColumns))
	out = append(out, t.KeyColumns...)
	return append(out, t.ValueColumns...)
}

// Append concatenates the rows of other, which must share t's columns.
func (t *Table) Append(other *Table) {
	if other == nil {
		return
	}
	t.Rows = append(t.Rows, other.Rows...)
}

// EmptyLike returns a table with t's columns and no rows.
func (t *Table) EmptyLike() *Table {
	return &Table{
		KeyColumns:    append([]string(nil), t.KeyColumns...),
		ValueColumns:  append([]string(nil), t.ValueColumns...),
		TypologyStart: t.TypologyStart,
	}
}
