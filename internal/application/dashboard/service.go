package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/logtower/backend/internal/domain/shared"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultSLATarget is the OTIF percentage the operation commits to
const DefaultSLATarget = 96.0

// Polarity tells a client whether an increase of a KPI is good news
type Polarity string

const (
	PolarityNormal  Polarity = "normal"
	PolarityInverse Polarity = "inverse"
	PolarityOff     Polarity = "off"
)

// KPI keys
const (
	KPITotalFreight  = "total_freight"
	KPITotalDistance = "total_distance"
	KPICostPerKM     = "cost_per_km"
	KPIShipmentCount = "shipment_count"
	KPIAverageWeight = "average_weight"
	KPIOccupancy     = "occupancy"
	KPICostPerCTe    = "cost_per_cte"
	KPICostPerKG     = "cost_per_kg"
	KPIOTIF          = "otif"
	KPISLA           = "sla"
	KPILeadTime      = "lead_time"
)

const deltaLabelPattern = "%s%% vs. Período Anterior"

// KPI is one metric card of the control tower
type KPI struct {
	Key          string   `json:"key"`
	Label        string   `json:"label"`
	Value        float64  `json:"value"`
	Formatted    string   `json:"formatted"`
	Previous     float64  `json:"previous"`
	DeltaPercent float64  `json:"delta_percent"`
	Polarity     Polarity `json:"polarity"`
	DeltaLabel   string   `json:"delta_label"`
}

// Summary holds the KPIs of a month under a filter
type Summary struct {
	Month         string `json:"month"`
	PreviousMonth string `json:"previous_month,omitempty"`
	Synthetic     bool   `json:"synthetic_previous"`
	Count         int    `json:"count"`
	KPIs          []KPI  `json:"kpis"`
}

// KPI returns the KPI with the given key
func (s *Summary) KPI(key string) (KPI, bool) {
	for _, k := range s.KPIs {
		if k.Key == key {
			return k, true
		}
	}
	return KPI{}, false
}

// Point is a labelled value of a chart series
type Point struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

// SharePoint is a slice of the carrier share chart
type SharePoint struct {
	Label   string          `json:"label"`
	Value   decimal.Decimal `json:"value"`
	Percent float64         `json:"percent"`
}

// Charts holds every chart series of the control tower
type Charts struct {
	Month        string       `json:"month"`
	CostByBranch []Point      `json:"cost_by_branch"`
	FreightTrend []Point      `json:"freight_trend"`
	TopShipments []Point      `json:"top_shipments"`
	CarrierShare []SharePoint `json:"carrier_share"`
}

// Report is the audit table of a month
type Report struct {
	Month    string   `json:"month"`
	FileName string   `json:"file_name"`
	Rows     []Record `json:"rows"`
}

const (
	topShipments     = 5
	shareThreshold   = 5.0
	otherCarriers    = "Outros"
	reportFilePrefix = "relatorio_logistico_executivo_"
)

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithSLATarget overrides the OTIF target percentage
func WithSLATarget(target float64) ServiceOption {
	return func(s *Service) {
		if target > 0 {
			s.slaTarget = target
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service answers dashboard queries over a dataset
type Service struct {
	dataset   *Dataset
	slaTarget float64
	logger    *zap.Logger
}

// NewService creates a dashboard service over ds
func NewService(ds *Dataset, opts ...ServiceOption) *Service {
	s := &Service{
		dataset:   ds,
		slaTarget: DefaultSLATarget,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Options returns the filter options
func (s *Service) Options() Options {
	return s.dataset.Options()
}

// apply resolves the month of f and returns the matching records
func (s *Service) apply(ctx context.Context, f Filter) (Filter, []Record, error) {
	if f.Month == "" {
		if len(s.dataset.Months()) == 0 {
			return f, nil, shared.ErrNoData
		}
		f.Month = s.dataset.Months()[0]
	}
	if !s.dataset.hasMonth(f.Month) {
		return f, nil, shared.NewDomainError(shared.ErrInvalidInput.Code, fmt.Sprintf("Unknown month: %s", f.Month))
	}
	records := s.dataset.selectMonth(f.Month, f)
	if len(records) == 0 {
		logger.L(ctx, s.logger).Debug("No CT-e matches filter", zap.String("month", f.Month))
		return f, nil, shared.NewDomainError(shared.ErrNoData.Code,
			fmt.Sprintf("No CT-e matches the selected filters for month %s", f.Month))
	}
	return f, records, nil
}

// measures are the raw values behind the KPIs
type measures struct {
	freight       float64
	distance      float64
	count         float64
	costPerKM     float64
	costPerCTe    float64
	weight        float64
	capacity      float64
	averageWeight float64
	occupancy     float64
	costPerKG     float64
	otif          float64
	leadTime      float64
}

func measure(records []Record) measures {
	var m measures
	freight := decimal.Zero
	costPerKG := decimal.Zero
	var onTime int
	var leadTime float64
	for i := range records {
		r := &records[i]
		freight = freight.Add(r.Freight)
		costPerKG = costPerKG.Add(r.CostPerKG)
		m.distance += r.DistanceKM
		m.weight += r.WeightKG
		m.capacity += r.CapacityKG
		leadTime += r.LeadTimeDays
		if r.OTIF {
			onTime++
		}
	}
	m.freight = freight.InexactFloat64()
	m.count = float64(len(records))
	if m.distance > 0 {
		m.costPerKM = m.freight / m.distance
	}
	if m.count > 0 {
		m.costPerCTe = m.freight / m.count
		m.averageWeight = m.weight / m.count
		m.costPerKG = costPerKG.Div(decimal.NewFromInt(int64(len(records)))).InexactFloat64()
		m.otif = float64(onTime) / m.count * 100
		m.leadTime = leadTime / m.count
	}
	if m.capacity > 0 {
		m.occupancy = m.weight / m.capacity * 100
	}
	return m
}

// synthesizePrevious builds a stand-in previous month for the earliest month
func synthesizePrevious(cur measures) measures {
	prev := measures{
		freight:    cur.freight * 0.95,
		distance:   cur.distance * 1.05,
		count:      math.Trunc(cur.count * 1.02),
		costPerKM:  cur.costPerKM * 1.1,
		weight:     cur.weight * 0.90,
		capacity:   cur.capacity * 1.10,
		costPerCTe: cur.costPerCTe * 1.05,
		costPerKG:  cur.costPerKG * 1.15,
		otif:       cur.otif * 0.95,
		leadTime:   cur.leadTime * 1.15,
	}
	if prev.count > 0 {
		prev.averageWeight = prev.weight / prev.count
	}
	if prev.capacity > 0 {
		prev.occupancy = prev.weight / prev.capacity * 100
	}
	return prev
}

// delta returns the percent change from previous to current
func delta(current, previous float64, inverse bool) (float64, Polarity) {
	if previous == 0 {
		return 0, PolarityOff
	}
	pct := (current - previous) / previous * 100
	if inverse {
		return pct, PolarityInverse
	}
	return pct, PolarityNormal
}

func newKPI(key, label string, cur, prev float64, formatted string, inverse bool) KPI {
	pct, pol := delta(cur, prev, inverse)
	return KPI{
		Key:          key,
		Label:        label,
		Value:        cur,
		Formatted:    formatted,
		Previous:     prev,
		DeltaPercent: pct,
		Polarity:     pol,
		DeltaLabel:   fmt.Sprintf(deltaLabelPattern, FormatPercent(math.Abs(pct))),
	}
}

func (s *Service) slaKPI(otif float64) KPI {
	gap := otif - s.slaTarget
	k := KPI{
		Key:          KPISLA,
		Label:        "SLA - META ESTABELECIDA",
		Value:        s.slaTarget,
		Formatted:    FormatPercent(s.slaTarget) + " %",
		Previous:     s.slaTarget,
		DeltaPercent: gap,
	}
	if gap >= 0 {
		k.Polarity = PolarityNormal
		k.DeltaLabel = fmt.Sprintf("+%s%% ACIMA DA META", FormatPercent(math.Abs(gap)))
	} else {
		k.Polarity = PolarityInverse
		k.DeltaLabel = fmt.Sprintf("-%s%% ABAIXO DA META", FormatPercent(math.Abs(gap)))
	}
	return k
}

// Summary computes the KPIs of the filtered month. Deltas compare with the
// previous month under the same dimension filters; the earliest month is
// compared with a synthesized one.
func (s *Service) Summary(ctx context.Context, f Filter) (*Summary, error) {
	f, records, err := s.apply(ctx, f)
	if err != nil {
		return nil, err
	}

	cur := measure(records)
	sum := &Summary{Month: f.Month, Count: len(records)}

	var prev measures
	if pm := s.dataset.previousMonth(f.Month); pm != "" {
		sum.PreviousMonth = pm
		prev = measure(s.dataset.selectMonth(pm, f))
	} else {
		sum.Synthetic = true
		prev = synthesizePrevious(cur)
	}

	sum.KPIs = []KPI{
		newKPI(KPITotalFreight, "CUSTO TOTAL DE FRETE", cur.freight, prev.freight,
			"R$ "+FormatCurrency(cur.freight), true),
		newKPI(KPITotalDistance, "DISTÂNCIA TOTAL PERCORRIDA", cur.distance, prev.distance,
			FormatInteger(cur.distance)+" KM", false),
		newKPI(KPICostPerKM, "CUSTO/KM MÉDIO", cur.costPerKM, prev.costPerKM,
			"R$ "+FormatCostPerKM(cur.costPerKM), true),
		newKPI(KPIShipmentCount, "VOLUME DE DOCUMENTOS", cur.count, prev.count,
			FormatInteger(cur.count)+" CT-es", false),
		newKPI(KPIAverageWeight, "PESO MÉDIO TRANSPORTADO", cur.averageWeight, prev.averageWeight,
			FormatWeight(cur.averageWeight), false),
		newKPI(KPIOccupancy, "TAXA DE OCUPAÇÃO MÉDIA", cur.occupancy, prev.occupancy,
			FormatPercent(cur.occupancy)+" %", false),
		newKPI(KPICostPerCTe, "CUSTO MÉDIO POR CT-e", cur.costPerCTe, prev.costPerCTe,
			"R$ "+FormatCurrency(cur.costPerCTe), true),
		newKPI(KPICostPerKG, "CUSTO/KG MÉDIO", cur.costPerKG, prev.costPerKG,
			"R$ "+FormatCostPerKM(cur.costPerKG), true),
		newKPI(KPIOTIF, "OTIF (ON-TIME, IN-FULL)", cur.otif, prev.otif,
			FormatPercent(cur.otif)+" %", false),
		s.slaKPI(cur.otif),
		newKPI(KPILeadTime, "LEAD TIME MÉDIO", cur.leadTime, prev.leadTime,
			FormatDecimal(cur.leadTime, 2)+" Dias", true),
	}
	return sum, nil
}

// Charts computes the chart series of the filtered month. The freight trend
// covers the whole dataset up to the selected month.
func (s *Service) Charts(ctx context.Context, f Filter) (*Charts, error) {
	f, records, err := s.apply(ctx, f)
	if err != nil {
		return nil, err
	}

	return &Charts{
		Month:        f.Month,
		CostByBranch: sumBy(records, func(r *Record) string { return r.Branch }),
		FreightTrend: s.freightTrend(f.Month),
		TopShipments: topByMonthlyCost(records, topShipments),
		CarrierShare: carrierShare(records),
	}, nil
}

// sumBy sums the monthly cost per key, ordered by key
func sumBy(records []Record, key func(*Record) string) []Point {
	totals := map[string]decimal.Decimal{}
	for i := range records {
		k := key(&records[i])
		totals[k] = totals[k].Add(records[i].MonthlyCost)
	}
	points := make([]Point, 0, len(totals))
	for k, v := range totals {
		points = append(points, Point{Label: k, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Label < points[j].Label })
	return points
}

func (s *Service) freightTrend(month string) []Point {
	totals := map[string]decimal.Decimal{}
	for _, r := range s.dataset.Records() {
		if r.Month <= month {
			totals[r.Month] = totals[r.Month].Add(r.Freight)
		}
	}
	points := make([]Point, 0, len(totals))
	for m, v := range totals {
		points = append(points, Point{Label: m, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Label < points[j].Label })
	return points
}

func topByMonthlyCost(records []Record, n int) []Point {
	sorted := sortedByMonthlyCost(records)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	points := make([]Point, len(sorted))
	for i, r := range sorted {
		points[i] = Point{Label: r.CTeNumber, Value: r.MonthlyCost}
	}
	return points
}

// carrierShare groups carriers below the share threshold under Outros
func carrierShare(records []Record) []SharePoint {
	perCarrier := sumBy(records, func(r *Record) string { return r.Carrier })
	total := decimal.Zero
	for _, p := range perCarrier {
		total = total.Add(p.Value)
	}

	grouped := map[string]decimal.Decimal{}
	for _, p := range perCarrier {
		label := p.Label
		if share(p.Value, total) < shareThreshold {
			label = otherCarriers
		}
		grouped[label] = grouped[label].Add(p.Value)
	}

	points := make([]SharePoint, 0, len(grouped))
	for label, v := range grouped {
		points = append(points, SharePoint{Label: label, Value: v, Percent: share(v, total)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Label < points[j].Label })
	return points
}

func share(v, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return v.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func sortedByMonthlyCost(records []Record) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MonthlyCost.GreaterThan(sorted[j].MonthlyCost)
	})
	return sorted
}

// Report returns the filtered rows sorted by monthly cost, highest first
func (s *Service) Report(ctx context.Context, f Filter) (*Report, error) {
	f, records, err := s.apply(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Report{
		Month:    f.Month,
		FileName: ReportFileName(f.Month),
		Rows:     sortedByMonthlyCost(records),
	}, nil
}

// ReportFileName is the download name of a month's CSV report
func ReportFileName(month string) string {
	return reportFilePrefix + month + ".csv"
}
