package dashboard

import (
	"context"
	"io"
	"strconv"

	"github.com/logtower/backend/internal/infrastructure/sheet"
)

// ReportDelimiter separates the columns of the CSV report
const ReportDelimiter = ';'

// ReportHeaders are the column titles of the CSV report
var ReportHeaders = []string{
	"Nº CT-e", "Unidade", "Parceiro Logístico", "Cliente Faturador",
	"Região", "Frete (R$)", "Dist. (KM)", "Peso (KG)", "Capacidade (KG)",
	"Custo/KM (R$)", "Custo/KG (R$)", "Custo Mensal (R$)",
	"OTIF", "Lead Time (Dias)", "Data Emissão",
}

// WriteReportCSV writes the filtered report as UTF-8 CSV to w and returns
// the file name the download should carry
func (s *Service) WriteReportCSV(ctx context.Context, w io.Writer, f Filter) (string, error) {
	report, err := s.Report(ctx, f)
	if err != nil {
		return "", err
	}
	rows := make([][]string, len(report.Rows))
	for i := range report.Rows {
		rows[i] = reportRecord(&report.Rows[i])
	}
	if err := sheet.WriteDelimited(w, ReportDelimiter, ReportHeaders, rows); err != nil {
		return "", err
	}
	return report.FileName, nil
}

func reportRecord(r *Record) []string {
	otif := "Não"
	if r.OTIF {
		otif = "Sim"
	}
	return []string{
		r.CTeNumber,
		r.Branch,
		r.Carrier,
		r.Client,
		r.Region,
		r.Freight.StringFixed(2),
		formatFloat(r.DistanceKM),
		formatFloat(r.WeightKG),
		formatFloat(r.CapacityKG),
		r.CostPerKM.StringFixed(4),
		r.CostPerKG.StringFixed(4),
		r.MonthlyCost.StringFixed(2),
		otif,
		formatFloat(r.LeadTimeDays),
		r.IssuedAt.Format("2006-01-02"),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
