package typology

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"census-typology/internal/apportion"
	"census-typology/internal/domain"
	"census-typology/internal/scheme"
	"census-typology/internal/testutil"
)

// testScheme maps brick over cement to 60% A / 40% B and brick over earth
// through a refinement table that separates houses from apartments.
func testScheme(locales map[int]string) *domain.Scheme {
	return &domain.Scheme{
		Rows: []domain.SchemeRow{
			{
				Wall: "Ladrillo",
				Cells: []domain.SchemeCell{
					domain.LiteralCell("Cemento",
						domain.Share{Typology: "A", Fraction: 0.6},
						domain.Share{Typology: "B", Fraction: 0.4}),
					domain.RefinementCell("Tierra", domain.Detailed1),
				},
			},
		},
		Detailed1: domain.RefinementTable{
			ID: domain.Detailed1,
			Rows: []domain.RefinementRow{
				{SchemeRef: "ANDINA_URBANO_Casa", Typology: "C", Percent: map[string]float64{"Tierra": 100}},
				{SchemeRef: "ANDINA_URBANO_Apartamento", Typology: "D", Percent: map[string]float64{"Tierra": 100}},
			},
		},
		Detailed2: domain.RefinementTable{ID: domain.Detailed2},
		Locales:   locales,
	}
}

func count(muni int, wall, floor string, use domain.DwellingUse, buildings float64, pass ...float64) domain.BuildingCount {
	return domain.BuildingCount{
		Municipality: muni,
		Combination:  domain.Combination{Wall: wall, Floor: floor, Use: use},
		Buildings:    buildings,
		PassThrough:  pass,
	}
}

func newTestService(t *testing.T, locales map[int]string, src *testutil.MockCountSource, opts Options) *Service {
	t.Helper()
	return NewService(scheme.NewResolver(testScheme(locales)), src, opts, slog.New(slog.DiscardHandler))
}

func andina(codes ...int) map[int]string {
	out := make(map[int]string, len(codes))
	for _, c := range codes {
		out[c] = "ANDINA_URBANO"
	}
	return out
}

func TestProcessMunicipality(t *testing.T) {
	src := &testutil.MockCountSource{
		Columns: []string{"TPER"},
		ByMunicipality: map[int][]domain.BuildingCount{
			1001: {
				count(1001, "Ladrillo", "Cemento", domain.DwellingHouse, 4, 10),
				count(1001, " Ladrillo", "Cemento ", domain.DwellingApartment, 3, 6),
				count(1001, "Ladrillo", "Tierra", domain.DwellingHouse, 5, 12),
			},
		},
	}
	svc := newTestService(t, andina(1001), src, Options{})

	p, err := svc.ProcessMunicipality(context.Background(), domain.Municipality{Code: 1001, Name: "Uno"})
	require.NoError(t, err)
	assert.Empty(t, p.Report.Failures)
	require.Len(t, p.Disaggregated, 3)

	t.Run("literal_distribution", func(t *testing.T) {
		// 0.6*7 = 4.2 and 0.4*7 = 2.8: B holds the larger remainder.
		row := p.Disaggregated[0]
		assert.Equal(t, []string{"1001", "Uno", "Ladrillo", "Cemento", "No aplica"}, row.Keys)
		assert.Equal(t, []int64{7, 16, 4, 3, 0, 0}, row.Values)
	})

	t.Run("zero_count_row_kept", func(t *testing.T) {
		row := p.Disaggregated[1]
		assert.Equal(t, []string{"1001", "Uno", "Ladrillo", "Tierra", "Apartamento"}, row.Keys)
		assert.Equal(t, []int64{0, 0, 0, 0, 0, 0}, row.Values)
	})

	t.Run("house_and_apartment_separate", func(t *testing.T) {
		row := p.Disaggregated[2]
		assert.Equal(t, []string{"1001", "Uno", "Ladrillo", "Tierra", "Casa"}, row.Keys)
		assert.Equal(t, []int64{5, 12, 0, 0, 5, 0}, row.Values)
	})

	t.Run("summary_is_sum_of_rows", func(t *testing.T) {
		require.Len(t, p.Summary, 1)
		assert.Equal(t, []string{"1001", "Uno"}, p.Summary[0].Keys)
		assert.Equal(t, []int64{4, 3, 5, 0}, p.Summary[0].Values)
	})
}

func TestProcessMunicipality_NegativeCountSkipsRow(t *testing.T) {
	src := &testutil.MockCountSource{
		ByMunicipality: map[int][]domain.BuildingCount{
			1003: {
				count(1003, "Ladrillo", "Cemento", domain.DwellingHouse, -2),
				count(1003, "Ladrillo", "Tierra", domain.DwellingHouse, 3),
			},
		},
	}
	svc := newTestService(t, andina(1003), src, Options{})

	p, err := svc.ProcessMunicipality(context.Background(), domain.Municipality{Code: 1003, Name: "Tres"})
	require.NoError(t, err)

	require.Len(t, p.Report.Failures, 1)
	f := p.Report.Failures[0]
	assert.Equal(t, domain.FailureDataIntegrity, f.Kind)
	assert.Equal(t, 1003, f.Municipality)
	require.NotNil(t, f.Combination)
	assert.Equal(t, "Cemento", f.Combination.Floor)
	assert.Nil(t, f.Block)

	require.Len(t, p.Disaggregated, 2)
	for _, row := range p.Disaggregated {
		assert.NotEqual(t, "Cemento", row.Keys[3])
	}
	assert.Equal(t, []int64{0, 0, 3, 0}, p.Summary[0].Values)
}

func TestProcessMunicipality_UnreadableSchemeCellFailsRow(t *testing.T) {
	s := testScheme(andina(1001))
	s.Rows = append(s.Rows, domain.SchemeRow{
		Wall: "Tapia",
		Cells: []domain.SchemeCell{
			domain.InvalidCell("Cemento", domain.ErrDataIntegrity("sheet %q row 3: malformed percentage %q", "mapping", "abc%")),
		},
	})
	src := &testutil.MockCountSource{
		ByMunicipality: map[int][]domain.BuildingCount{
			1001: {
				count(1001, "Ladrillo", "Cemento", domain.DwellingHouse, 7),
				count(1001, "Tapia", "Cemento", domain.DwellingHouse, 2),
			},
		},
	}
	svc := NewService(scheme.NewResolver(s), src, Options{}, slog.New(slog.DiscardHandler))

	p, err := svc.ProcessMunicipality(context.Background(), domain.Municipality{Code: 1001, Name: "Uno"})
	require.NoError(t, err)

	require.Len(t, p.Report.Failures, 1)
	f := p.Report.Failures[0]
	assert.Equal(t, domain.FailureDataIntegrity, f.Kind)
	assert.Equal(t, 1001, f.Municipality)
	require.NotNil(t, f.Combination)
	assert.Equal(t, domain.Combination{Wall: "Tapia", Floor: "Cemento", Use: domain.DwellingNotApplicable}, *f.Combination)
	assert.Contains(t, f.Message, "abc%")

	require.Len(t, p.Disaggregated, 3)
	for _, row := range p.Disaggregated {
		assert.Equal(t, "Ladrillo", row.Keys[2])
	}
	assert.Equal(t, []int64{7, 4, 3, 0, 0}, p.Disaggregated[0].Values)
	require.Len(t, p.Summary, 1)
	assert.Equal(t, []int64{4, 3, 0, 0}, p.Summary[0].Values)
}

func TestProcessMunicipality_UnreadableRefinementFailsOneUse(t *testing.T) {
	s := testScheme(andina(1001))
	s.Detailed1.Rows[1].Invalid = map[string]error{
		"Tierra": domain.ErrDataIntegrity("malformed percentage %q", "x"),
	}
	src := &testutil.MockCountSource{
		ByMunicipality: map[int][]domain.BuildingCount{
			1001: {
				count(1001, "Ladrillo", "Tierra", domain.DwellingHouse, 5),
				count(1001, "Ladrillo", "Tierra", domain.DwellingApartment, 2),
			},
		},
	}
	svc := NewService(scheme.NewResolver(s), src, Options{}, slog.New(slog.DiscardHandler))

	p, err := svc.ProcessMunicipality(context.Background(), domain.Municipality{Code: 1001, Name: "Uno"})
	require.NoError(t, err)

	require.Len(t, p.Report.Failures, 1)
	assert.Equal(t, domain.DwellingApartment, p.Report.Failures[0].Combination.Use)
	require.Len(t, p.Disaggregated, 2)
	assert.Equal(t, "Casa", p.Disaggregated[1].Keys[4])
	assert.Equal(t, []int64{0, 0, 5, 0}, p.Summary[0].Values)
}

func TestProcessMunicipality_FailFastRowError(t *testing.T) {
	src := &testutil.MockCountSource{
		ByMunicipality: map[int][]domain.BuildingCount{
			1003: {count(1003, "Ladrillo", "Cemento", domain.DwellingHouse, -2)},
		},
	}
	svc := newTestService(t, andina(1003), src, Options{FailFast: true})

	p, err := svc.ProcessMunicipality(context.Background(), domain.Municipality{Code: 1003})
	require.Error(t, err)
	var integrity *domain.DataIntegrityError
	assert.ErrorAs(t, err, &integrity)
	require.NotNil(t, p)
	assert.Len(t, p.Report.Failures, 1)
}

func TestProcessMunicipality_MissingSchemeCode(t *testing.T) {
	src := &testutil.MockCountSource{}
	svc := newTestService(t, andina(1001), src, Options{})

	p, err := svc.ProcessMunicipality(context.Background(), domain.Municipality{Code: 2002, Name: "Dos"})
	require.Error(t, err)
	var lookup *domain.DataLookupError
	assert.ErrorAs(t, err, &lookup)

	require.NotNil(t, p)
	assert.Empty(t, p.Disaggregated)
	assert.Empty(t, p.Summary)
	require.Len(t, p.Report.Failures, 1)
	assert.Equal(t, domain.FailureDataLookup, p.Report.Failures[0].Kind)
	assert.Equal(t, 2002, p.Report.Failures[0].Municipality)
	assert.Empty(t, src.Calls, "counts are not loaded for an aborted municipality")
}

func TestProcessMunicipality_CountSourceError(t *testing.T) {
	src := &testutil.MockCountSource{
		CountsFn: func(_ context.Context, municipality int) ([]domain.BuildingCount, error) {
			return nil, domain.ErrDataLookup("no counts for %d", municipality)
		},
	}
	svc := newTestService(t, andina(1001), src, Options{})

	_, err := svc.ProcessMunicipality(context.Background(), domain.Municipality{Code: 1001})
	require.Error(t, err)
	assert.Equal(t, domain.FailureDataLookup, domain.FailureKind(err))
	assert.Contains(t, err.Error(), "load building counts")
}

func TestProcessMunicipality_BlockMode(t *testing.T) {
	b1 := domain.BlockKey{Class: "1", UrbanSector: "0001", Block: "001"}
	b2 := domain.BlockKey{Class: "1", UrbanSector: "0001", Block: "002"}

	at := func(c domain.BuildingCount, b domain.BlockKey) domain.BuildingCount {
		c.Block = b
		return c
	}
	src := &testutil.MockCountSource{
		ByMunicipality: map[int][]domain.BuildingCount{
			1001: {
				at(count(1001, "Ladrillo", "Cemento", domain.DwellingApartment, 4), b2),
				at(count(1001, "Ladrillo", "Cemento", domain.DwellingHouse, 3), b1),
				at(count(1001, "Ladrillo", "Tierra", domain.DwellingHouse, 1), b1),
			},
		},
	}
	svc := newTestService(t, andina(1001), src, Options{BlockMode: true})

	layout := svc.DisaggregatedLayout()
	assert.Equal(t, "U_MZA", layout.KeyColumns[8])
	assert.Equal(t, domain.ColWallMaterial, layout.KeyColumns[9])

	p, err := svc.ProcessMunicipality(context.Background(), domain.Municipality{Code: 1001, Name: "Uno"})
	require.NoError(t, err)

	// Zero-count rows are omitted at block grain.
	require.Len(t, p.Disaggregated, 3)

	first := p.Disaggregated[0]
	assert.Equal(t, "001", first.Keys[8])
	assert.Equal(t, "Cemento", first.Keys[10])
	assert.Equal(t, []int64{3, 2, 1, 0, 0}, first.Values)

	assert.Equal(t, "001", p.Disaggregated[1].Keys[8])
	assert.Equal(t, "Casa", p.Disaggregated[1].Keys[11])
	assert.Equal(t, []int64{1, 0, 0, 1, 0}, p.Disaggregated[1].Values)

	last := p.Disaggregated[2]
	assert.Equal(t, "002", last.Keys[8])
	assert.Equal(t, []int64{4, 2, 2, 0, 0}, last.Values)

	// Summary is summed after rounding at block grain.
	assert.Equal(t, []int64{4, 3, 1, 0}, p.Summary[0].Values)
}

func TestRun_ContinuesPastFailures(t *testing.T) {
	src := &testutil.MockCountSource{
		ByMunicipality: map[int][]domain.BuildingCount{
			1001: {count(1001, "Ladrillo", "Cemento", domain.DwellingHouse, 7)},
			1002: {count(1002, "Ladrillo", "Cemento", domain.DwellingHouse, 10)},
		},
	}
	svc := newTestService(t, andina(1001, 1002), src, Options{Workers: 2})

	res, err := svc.Run(context.Background(), []domain.Municipality{
		{Code: 1001, Name: "Uno"},
		{Code: 2002, Name: "Dos"},
		{Code: 1002, Name: "Mil dos"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed)
	require.Len(t, res.Report.Failures, 1)
	assert.Equal(t, 2002, res.Report.Failures[0].Municipality)

	require.Len(t, res.Summary.Rows, 2)
	assert.Equal(t, "1001", res.Summary.Rows[0].Keys[0])
	assert.Equal(t, []int64{4, 3, 0, 0}, res.Summary.Rows[0].Values)
	assert.Equal(t, "1002", res.Summary.Rows[1].Keys[0])
	assert.Equal(t, []int64{6, 4, 0, 0}, res.Summary.Rows[1].Values)

	assert.Len(t, res.Disaggregated.Rows, 6)
	assert.Equal(t, []string{"A", "B", "C", "D"}, res.Summary.ValueColumns)
	assert.Equal(t, []string{"A", "B", "C", "D"}, res.Disaggregated.Typologies())
}

func TestRun_FailFast(t *testing.T) {
	src := &testutil.MockCountSource{
		ByMunicipality: map[int][]domain.BuildingCount{
			1001: {count(1001, "Ladrillo", "Cemento", domain.DwellingHouse, 7)},
		},
	}
	svc := newTestService(t, andina(1001), src, Options{FailFast: true})

	res, err := svc.Run(context.Background(), []domain.Municipality{
		{Code: 2002, Name: "Dos"},
		{Code: 1001, Name: "Uno"},
	})
	require.Error(t, err)
	var lookup *domain.DataLookupError
	assert.ErrorAs(t, err, &lookup)
	assert.Contains(t, err.Error(), "municipality 2002")

	require.NotNil(t, res)
	assert.Len(t, res.Report.Failures, 1)
	assert.Empty(t, res.Summary.Rows)
}

func TestRun_Cancelled(t *testing.T) {
	src := &testutil.MockCountSource{}
	svc := newTestService(t, andina(1001), src, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Run(ctx, []domain.Municipality{{Code: 1001}})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsFatal(err))
	assert.Empty(t, res.Summary.Rows)
}

func TestRun_ConfigurationErrorStopsBatch(t *testing.T) {
	src := &testutil.MockCountSource{
		CountsFn: func(_ context.Context, municipality int) ([]domain.BuildingCount, error) {
			if municipality == 1001 {
				return nil, domain.ErrConfiguration("inventory has no column %q", "COD_MPIO")
			}
			return []domain.BuildingCount{count(municipality, "Ladrillo", "Cemento", domain.DwellingHouse, 3)}, nil
		},
	}
	svc := newTestService(t, andina(1001, 1002), src, Options{Workers: 1})

	res, err := svc.Run(context.Background(), []domain.Municipality{
		{Code: 1001, Name: "Uno"},
		{Code: 1002, Name: "Mil dos"},
	})
	require.Error(t, err)
	var cfg *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfg)
	assert.Contains(t, err.Error(), "municipality 1001")

	require.NotNil(t, res)
	assert.Empty(t, res.Summary.Rows)
	assert.Equal(t, []int{1001}, src.Calls)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"configuration", fmt.Errorf("load: %w", domain.ErrConfiguration("bad")), true},
		{"canceled", context.Canceled, true},
		{"deadline", context.DeadlineExceeded, true},
		{"lookup", domain.ErrDataLookup("missing"), false},
		{"integrity", domain.ErrDataIntegrity("negative"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsFatal(tc.err))
		})
	}
}

func TestRun_DeterministicAcrossWorkers(t *testing.T) {
	var munis []domain.Municipality
	codes := make([]int, 0, 40)
	byMuni := make(map[int][]domain.BuildingCount)
	for i := 0; i < 40; i++ {
		code := 5000 + i
		codes = append(codes, code)
		munis = append(munis, domain.Municipality{Code: code, Name: fmt.Sprintf("M%d", i)})
		byMuni[code] = []domain.BuildingCount{
			count(code, "Ladrillo", "Cemento", domain.DwellingHouse, float64(i*3+1)),
			count(code, "Ladrillo", "Cemento", domain.DwellingApartment, float64(i%7)),
			count(code, "Ladrillo", "Tierra", domain.DwellingHouse, float64(i%5)),
			count(code, "Ladrillo", "Tierra", domain.DwellingApartment, float64(i%3)),
		}
	}

	run := func(workers int) *Result {
		src := &testutil.MockCountSource{ByMunicipality: byMuni}
		svc := newTestService(t, andina(codes...), src, Options{Workers: workers})
		res, err := svc.Run(context.Background(), munis)
		require.NoError(t, err)
		return res
	}

	sequential := run(1)
	parallel := run(8)
	assert.Equal(t, sequential.Disaggregated.Rows, parallel.Disaggregated.Rows)
	assert.Equal(t, sequential.Summary.Rows, parallel.Summary.Rows)
}

func TestRun_AdditivityAndSumPreservation(t *testing.T) {
	byMuni := map[int][]domain.BuildingCount{
		1001: {
			count(1001, "Ladrillo", "Cemento", domain.DwellingHouse, 13),
			count(1001, "Ladrillo", "Cemento", domain.DwellingApartment, 8),
			count(1001, "Ladrillo", "Tierra", domain.DwellingHouse, 9),
			count(1001, "Ladrillo", "Tierra", domain.DwellingApartment, 4),
		},
	}
	src := &testutil.MockCountSource{ByMunicipality: byMuni}
	svc := newTestService(t, andina(1001), src, Options{})

	res, err := svc.Run(context.Background(), []domain.Municipality{{Code: 1001, Name: "Uno"}})
	require.NoError(t, err)

	start := res.Disaggregated.TypologyStart
	totals := make([]int64, len(res.Summary.ValueColumns))
	for _, row := range res.Disaggregated.Rows {
		typologies := row.Values[start:]
		assert.Equal(t, row.Values[0], apportion.Sum(typologies), "row %v", row.Keys)
		for i, v := range typologies {
			assert.GreaterOrEqual(t, v, int64(0))
			totals[i] += v
		}
	}
	assert.Equal(t, totals, res.Summary.Rows[0].Values)
	assert.Equal(t, int64(34), apportion.Sum(res.Summary.Rows[0].Values))
}
