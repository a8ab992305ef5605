package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"census-typology/internal/domain"
)

const inventoryCSV = `cod,Municipio,Material Pared,Material Piso,Tipo Vivienda,No. edificaciones,TPER,THOG,UA_CLASE,U_SECT_RUR,U_SECC_RUR,UA2_CPOB,U_SECT_URB,U_SECC_URB,U_MZA
05001,Medellin, Ladrillo ,Cemento ,Casa,4,10,3,1,,,,0001,01,001
05001,Medellin,Ladrillo,Cemento,Casa,2,5,2,1,,,,0001,01,002
05001,Medellin,Ladrillo,Cemento,Apartamento,3,6,1,1,,,,0001,01,001
05001,Medellin,Ladrillo,Tierra,Otro,1,,,1,,,,0001,01,001
08001,Barranquilla,Bahareque,Tierra,Casa,7,20,5,2,01,02,,,,
`

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conteos.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func openStore(t *testing.T, opts Options) *CountStore {
	t.Helper()
	s, err := Open(context.Background(), opts, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCounts_MunicipalityGrain(t *testing.T) {
	s := openStore(t, Options{Source: writeInventory(t, inventoryCSV)})

	assert.Equal(t, []string{"TPER", "THOG"}, s.PassThroughColumns())

	counts, err := s.Counts(context.Background(), 5001)
	require.NoError(t, err)
	require.Len(t, counts, 3)

	assert.Equal(t, domain.Combination{Wall: "Ladrillo", Floor: "Cemento", Use: domain.DwellingApartment}, counts[0].Combination)
	assert.InDelta(t, 3, counts[0].Buildings, 1e-9)
	assert.InDeltaSlice(t, []float64{6, 1}, counts[0].PassThrough, 1e-9)

	// Trimmed labels group with their untrimmed twins.
	assert.Equal(t, domain.Combination{Wall: "Ladrillo", Floor: "Cemento", Use: domain.DwellingHouse}, counts[1].Combination)
	assert.InDelta(t, 6, counts[1].Buildings, 1e-9)
	assert.InDeltaSlice(t, []float64{15, 5}, counts[1].PassThrough, 1e-9)

	assert.Equal(t, domain.DwellingNotApplicable, counts[2].Combination.Use)
	assert.InDeltaSlice(t, []float64{0, 0}, counts[2].PassThrough, 1e-9)

	for _, c := range counts {
		assert.Equal(t, 5001, c.Municipality)
		assert.Equal(t, domain.BlockKey{}, c.Block)
	}
}

func TestCounts_BlockGrain(t *testing.T) {
	s := openStore(t, Options{Source: writeInventory(t, inventoryCSV), Blocks: true})

	counts, err := s.Counts(context.Background(), 5001)
	require.NoError(t, err)
	require.Len(t, counts, 4)

	assert.Equal(t, domain.DwellingApartment, counts[0].Combination.Use)
	assert.Equal(t, "001", counts[0].Block.Block)

	assert.Equal(t, domain.DwellingHouse, counts[1].Combination.Use)
	assert.Equal(t, domain.BlockKey{Class: "1", UrbanSector: "0001", UrbanSection: "01", Block: "001"}, counts[1].Block)
	assert.InDelta(t, 4, counts[1].Buildings, 1e-9)

	assert.Equal(t, "002", counts[2].Block.Block)
	assert.InDelta(t, 2, counts[2].Buildings, 1e-9)

	rural, err := s.Counts(context.Background(), 8001)
	require.NoError(t, err)
	require.Len(t, rural, 1)
	assert.Equal(t, domain.BlockKey{Class: "2", RuralSector: "01", RuralSection: "02"}, rural[0].Block)
}

func TestCounts_UnknownMunicipality(t *testing.T) {
	s := openStore(t, Options{Source: writeInventory(t, inventoryCSV)})

	counts, err := s.Counts(context.Background(), 99999)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestMunicipalities(t *testing.T) {
	s := openStore(t, Options{Source: writeInventory(t, inventoryCSV)})

	codes, err := s.Municipalities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{5001, 8001}, codes)
}

func TestOpen_CustomColumns(t *testing.T) {
	csv := "code;wall;floor;use;n\n5001;Ladrillo;Cemento;Casa;9\n"
	s := openStore(t, Options{
		Source:  writeInventory(t, csv),
		Delim:   ";",
		Columns: Columns{Municipality: "code", Wall: "wall", Floor: "floor", Use: "use", Buildings: "n"},
	})

	assert.Empty(t, s.PassThroughColumns())
	counts, err := s.Counts(context.Background(), 5001)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.InDelta(t, 9, counts[0].Buildings, 1e-9)
	assert.Empty(t, counts[0].PassThrough)
}

func TestOpen_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    func(t *testing.T) Options
		wantMsg string
	}{
		{
			name: "missing_file",
			opts: func(t *testing.T) Options {
				return Options{Source: filepath.Join(t.TempDir(), "nope.csv")}
			},
			wantMsg: "load inventory",
		},
		{
			name: "missing_use_column",
			opts: func(t *testing.T) Options {
				return Options{Source: writeInventory(t, "cod,Material Pared,Material Piso,No. edificaciones\n5001,a,b,1\n")}
			},
			wantMsg: "Tipo Vivienda",
		},
		{
			name: "missing_block_columns",
			opts: func(t *testing.T) Options {
				return Options{
					Source: writeInventory(t, "cod,Material Pared,Material Piso,Tipo Vivienda,No. edificaciones\n5001,a,b,Casa,1\n"),
					Blocks: true,
				}
			},
			wantMsg: "U_MZA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.opts(t), slog.New(slog.DiscardHandler))
			require.Error(t, err)
			var cfg *domain.ConfigurationError
			assert.ErrorAs(t, err, &cfg)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCounts_MalformedNumber(t *testing.T) {
	csv := "cod,Material Pared,Material Piso,Tipo Vivienda,No. edificaciones\n5001,a,b,Casa,many\n"
	s := openStore(t, Options{Source: writeInventory(t, csv)})

	_, err := s.Counts(context.Background(), 5001)
	require.Error(t, err)
	var integrity *domain.DataIntegrityError
	assert.ErrorAs(t, err, &integrity)
}
