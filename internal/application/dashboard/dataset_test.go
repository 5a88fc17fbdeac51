package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:  42,
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:  300,
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(mockConfig())
	b := Generate(mockConfig())

	require.Equal(t, len(a.Records()), len(b.Records()))
	for i := range a.Records() {
		ra, rb := a.Records()[i], b.Records()[i]
		assert.Equal(t, ra.CTeNumber, rb.CTeNumber)
		assert.True(t, ra.Freight.Equal(rb.Freight))
		assert.Equal(t, ra.DistanceKM, rb.DistanceKM)
		assert.Equal(t, ra.Branch, rb.Branch)
	}
	assert.True(t, a.MonthlyFactor().Equal(b.MonthlyFactor()))
}

func TestGenerate_Ranges(t *testing.T) {
	ds := Generate(mockConfig())
	records := ds.Records()

	assert.GreaterOrEqual(t, len(records), 300)
	assert.LessOrEqual(t, len(records), 1500)

	factor := ds.MonthlyFactor().InexactFloat64()
	assert.GreaterOrEqual(t, factor, 1.0)
	assert.LessOrEqual(t, factor, 4.0)

	onTime := 0
	for _, r := range records {
		freight := r.Freight.InexactFloat64()
		assert.GreaterOrEqual(t, freight, 150.0)
		assert.LessOrEqual(t, freight, 4500.0)
		assert.GreaterOrEqual(t, r.DistanceKM, 50.0)
		assert.LessOrEqual(t, r.DistanceKM, 2500.0)
		assert.GreaterOrEqual(t, r.WeightKG, 100.0)
		assert.LessOrEqual(t, r.WeightKG, 15000.0)
		assert.Greater(t, r.CapacityKG, r.WeightKG)
		assert.GreaterOrEqual(t, r.LeadTimeDays, 2.0)
		assert.LessOrEqual(t, r.LeadTimeDays, 15.0)
		assert.Regexp(t, `^CTE\d{6}\d{3}$`, r.CTeNumber)
		assert.Equal(t, r.IssuedAt.Format(MonthLayout), r.Month)
		assert.Contains(t, mockBranches, r.Branch)
		assert.Contains(t, mockCarriers, r.Carrier)
		assert.Contains(t, mockClients, r.Client)
		assert.Contains(t, mockRegions, r.Region)
		assert.True(t, r.MonthlyCost.Equal(r.Freight.Mul(ds.MonthlyFactor()).Round(2)))
		if r.OTIF {
			onTime++
		}
	}

	ratio := float64(onTime) / float64(len(records))
	assert.InDelta(t, OTIFProbability, ratio, 0.1)
}

func TestGenerate_Months(t *testing.T) {
	ds := Generate(mockConfig())

	months := ds.Months()
	require.Len(t, months, 10)
	assert.Equal(t, "2024-10", months[0])
	assert.Equal(t, "2024-01", months[9])

	opts := ds.Options()
	assert.Equal(t, "2024-10", opts.DefaultMonth)
	assert.ElementsMatch(t, mockBranches, opts.Branches)
	assert.ElementsMatch(t, mockRegions, opts.Regions)
}

func TestGenerate_SeedChangesData(t *testing.T) {
	cfg := mockConfig()
	a := Generate(cfg)
	cfg.Seed = 7
	b := Generate(cfg)

	assert.NotEqual(t, a.Records()[0].CTeNumber+a.Records()[0].Freight.String(),
		b.Records()[0].CTeNumber+b.Records()[0].Freight.String())
}

func TestNewDataset_ZeroDivisors(t *testing.T) {
	ds := NewDataset([]Record{{
		CTeNumber: "X",
		IssuedAt:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Freight:   decimalOf(100),
	}}, 1.5)

	r := ds.Records()[0]
	assert.Equal(t, "2024-03", r.Month)
	assert.True(t, r.CostPerKM.IsZero())
	assert.True(t, r.CostPerKG.IsZero())
	assert.Equal(t, "150.00", r.MonthlyCost.StringFixed(2))
}

func TestNewDataset_OptionOrder(t *testing.T) {
	ds := sampleDataset()

	opts := ds.Options()
	assert.Equal(t, []string{"2024-02", "2024-01"}, opts.Months)
	assert.Equal(t, []string{"Filial SP", "Filial PR"}, opts.Branches)
	assert.Equal(t, []string{"JLLog", "TransRápida"}, opts.Carriers)
}
