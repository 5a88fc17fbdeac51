// Package dashboard computes the executive control tower: KPIs with month
// over month deltas, chart series and the audit report, over a
// deterministic mock dataset of CT-es.
package dashboard

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

// MonthLayout formats the month key of a record
const MonthLayout = "2006-01"

// OTIFProbability is the chance a mock delivery is on time and in full
const OTIFProbability = 0.85

var (
	mockBranches = []string{"Filial SP (Leste)", "Filial PR (Sul)", "Filial MT (Oeste)"}
	mockCarriers = []string{"TransRápida", "JLLog", "CargaTotal", "ExpressoDelta", "Parceiro Z"}
	mockClients  = []string{"Alpha Corp", "Beta Comércio", "Gamma Indústria", "Delta Serviços", "Epsilon Tech"}
	mockRegions  = []string{"Sudeste", "Sul", "Centro-Oeste", "Nordeste"}
)

// Record is one CT-e of the dashboard dataset
type Record struct {
	CTeNumber    string          `json:"cte_numero"`
	IssuedAt     time.Time       `json:"data_hora"`
	Month        string          `json:"mes_ano"`
	Branch       string          `json:"filial"`
	Carrier      string          `json:"transportadora"`
	Client       string          `json:"cliente"`
	Region       string          `json:"regiao"`
	Freight      decimal.Decimal `json:"frete_valor"`
	DistanceKM   float64         `json:"distancia_km"`
	WeightKG     float64         `json:"peso_kg"`
	CapacityKG   float64         `json:"capacidade_kg"`
	OTIF         bool            `json:"otif"`
	LeadTimeDays float64         `json:"lead_time_dias"`
	CostPerKM    decimal.Decimal `json:"custo_km"`
	CostPerKG    decimal.Decimal `json:"custo_kg"`
	MonthlyCost  decimal.Decimal `json:"custo_mensal"`
}

// derive fills the month key and the cost measures. Unit costs are zero
// when their divisor is zero.
func (r *Record) derive(monthlyFactor decimal.Decimal) {
	r.Month = r.IssuedAt.Format(MonthLayout)
	r.CostPerKM = decimal.Zero
	if r.DistanceKM > 0 {
		r.CostPerKM = r.Freight.Div(decimal.NewFromFloat(r.DistanceKM))
	}
	r.CostPerKG = decimal.Zero
	if r.WeightKG > 0 {
		r.CostPerKG = r.Freight.Div(decimal.NewFromFloat(r.WeightKG))
	}
	r.MonthlyCost = r.Freight.Mul(monthlyFactor).Round(2)
}

// Dataset is an immutable set of records with its filter options
type Dataset struct {
	records       []Record
	monthlyFactor decimal.Decimal
	months        []string
	branches      []string
	carriers      []string
	clients       []string
	regions       []string
}

// NewDataset derives the measures of records and indexes their months and
// dimension values. Options keep first-seen order; months are newest first.
func NewDataset(records []Record, monthlyFactor float64) *Dataset {
	factor := decimal.NewFromFloat(monthlyFactor)
	ds := &Dataset{
		records:       make([]Record, len(records)),
		monthlyFactor: factor,
	}
	seen := map[string]map[string]bool{}
	add := func(set string, list *[]string, v string) {
		if seen[set] == nil {
			seen[set] = map[string]bool{}
		}
		if !seen[set][v] {
			seen[set][v] = true
			*list = append(*list, v)
		}
	}

	for i, r := range records {
		r.derive(factor)
		ds.records[i] = r
		add("month", &ds.months, r.Month)
		add("branch", &ds.branches, r.Branch)
		add("carrier", &ds.carriers, r.Carrier)
		add("client", &ds.clients, r.Client)
		add("region", &ds.regions, r.Region)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ds.months)))
	return ds
}

// GeneratorConfig parameterizes the mock dataset
type GeneratorConfig struct {
	Seed  int64
	Start time.Time
	Days  int
}

// Generate builds the mock dataset: 1 to 5 CT-es a day for cfg.Days days.
// The same seed always yields the same records.
func Generate(cfg GeneratorConfig) *Dataset {
	f := gofakeit.New(uint64(cfg.Seed))
	records := make([]Record, 0, cfg.Days*3)

	for day := range cfg.Days {
		date := cfg.Start.AddDate(0, 0, day)
		for range f.IntRange(1, 5) {
			freight := f.Float64Range(150, 4500)
			distance := f.Float64Range(50, 2500)
			weight := f.Float64Range(100, 15000)
			capacity := weight * f.Float64Range(1.1, 2.5)
			otif := f.Float64() < OTIFProbability
			leadTime := f.Float64Range(2, 15)

			records = append(records, Record{
				CTeNumber:    fmt.Sprintf("CTE%s%d", date.Format("060102"), f.IntRange(100, 999)),
				IssuedAt:     date,
				Branch:       f.RandomString(mockBranches),
				Carrier:      f.RandomString(mockCarriers),
				Client:       f.RandomString(mockClients),
				Region:       f.RandomString(mockRegions),
				Freight:      decimal.NewFromFloat(freight).Round(2),
				DistanceKM:   round2(distance),
				WeightKG:     round2(weight),
				CapacityKG:   round2(capacity),
				OTIF:         otif,
				LeadTimeDays: round2(leadTime),
			})
		}
	}

	return NewDataset(records, f.Float64Range(1, 4))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Records returns every record
func (d *Dataset) Records() []Record {
	return d.records
}

// Months returns the months present in the dataset, newest first
func (d *Dataset) Months() []string {
	return d.months
}

// MonthlyFactor is the multiplier from freight to estimated monthly cost
func (d *Dataset) MonthlyFactor() decimal.Decimal {
	return d.monthlyFactor
}

// Options are the values a dashboard filter can take
type Options struct {
	Months       []string `json:"months"`
	DefaultMonth string   `json:"default_month"`
	Branches     []string `json:"branches"`
	Carriers     []string `json:"carriers"`
	Clients      []string `json:"clients"`
	Regions      []string `json:"regions"`
}

// Options returns the filter options of the dataset
func (d *Dataset) Options() Options {
	opts := Options{
		Months:   d.months,
		Branches: d.branches,
		Carriers: d.carriers,
		Clients:  d.clients,
		Regions:  d.regions,
	}
	if len(d.months) > 0 {
		opts.DefaultMonth = d.months[0]
	}
	return opts
}

// Filter selects records by month and dimension values. Empty dimension
// lists select everything.
type Filter struct {
	Month    string   `json:"month"`
	Branches []string `json:"branches,omitempty"`
	Carriers []string `json:"carriers,omitempty"`
	Clients  []string `json:"clients,omitempty"`
	Regions  []string `json:"regions,omitempty"`
}

func (f Filter) matchesDimensions(r *Record) bool {
	return contains(f.Branches, r.Branch) &&
		contains(f.Carriers, r.Carrier) &&
		contains(f.Clients, r.Client) &&
		contains(f.Regions, r.Region)
}

func contains(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// selectMonth returns the records of month that match the dimension filters
func (d *Dataset) selectMonth(month string, f Filter) []Record {
	var out []Record
	for i := range d.records {
		r := &d.records[i]
		if r.Month == month && f.matchesDimensions(r) {
			out = append(out, *r)
		}
	}
	return out
}

// previousMonth returns the month before month in the dataset, or "" for the earliest
func (d *Dataset) previousMonth(month string) string {
	for i, m := range d.months {
		if m == month && i+1 < len(d.months) {
			return d.months[i+1]
		}
	}
	return ""
}

func (d *Dataset) hasMonth(month string) bool {
	for _, m := range d.months {
		if m == month {
			return true
		}
	}
	return false
}
