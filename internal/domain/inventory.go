package domain

import "context"

// PassThroughColumns are the census aggregate columns summed alongside the
// building count: persons, households, men, women and five-year age bands.
var PassThroughColumns = []string{
	"TPER", "THOG", "THOM", "TMUJ",
	"T00", "T05", "T10", "T15", "T20", "T25", "T30", "T35", "T40", "T45",
	"T50", "T55", "T60", "T65", "T70", "T75", "T80", "T85", "T90", "T95", "T100",
}

// BlockKey identifies a census block (manzana) within a municipality.
type BlockKey struct {
	Class           string `json:"UA_CLASE"`
	RuralSector     string `json:"U_SECT_RUR"`
	RuralSection    string `json:"U_SECC_RUR"`
	PopulatedCentre string `json:"UA2_CPOB"`
	UrbanSector     string `json:"U_SECT_URB"`
	UrbanSection    string `json:"U_SECC_URB"`
	Block           string `json:"U_MZA"`
}

// BlockKeyColumns are the census column names of the BlockKey fields, in
// field order.
var BlockKeyColumns = []string{
	"UA_CLASE", "U_SECT_RUR", "U_SECC_RUR", "UA2_CPOB", "U_SECT_URB", "U_SECC_URB", "U_MZA",
}

// Values returns the key fields in BlockKeyColumns order.
func (b BlockKey) Values() []string {
	return []string{b.Class, b.RuralSector, b.RuralSection, b.PopulatedCentre, b.UrbanSector, b.UrbanSection, b.Block}
}

// Less orders block keys field by field.
func (b BlockKey) Less(o BlockKey) bool {
	av, bv := b.Values(), o.Values()
	for i := range av {
		if av[i] != bv[i] {
			return av[i] < bv[i]
		}
	}
	return false
}

// BuildingCount is one row of the external building-count table.
// PassThrough is aligned with the column list reported by the CountSource.
type BuildingCount struct {
	Municipality int
	Block        BlockKey
	Combination  Combination
	Buildings    float64
	PassThrough  []float64
}

// CountSource serves the building-count table produced by the census
// aggregator.
type CountSource interface {
	// Counts returns every count row of one municipality. Block keys are
	// zero-valued unless the source was loaded at block granularity.
	Counts(ctx context.Context, municipality int) ([]BuildingCount, error)
	// PassThroughColumns names the aggregate columns carried in PassThrough.
	PassThroughColumns() []string
}

// Municipality is one entry of the municipality reference list.
type Municipality struct {
	Code       int
	Name       string
	Department int
}
