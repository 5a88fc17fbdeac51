package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "currency", got: FormatCurrency(1234.56), want: "1.234,56"},
		{name: "currency millions", got: FormatCurrency(1234567.891), want: "1.234.567,89"},
		{name: "currency small", got: FormatCurrency(5), want: "5,00"},
		{name: "currency negative", got: FormatCurrency(-1500.5), want: "-1.500,50"},
		{name: "cost per km", got: FormatCostPerKM(1.23456), want: "1,2346"},
		{name: "integer", got: FormatInteger(123456.7), want: "123.457"},
		{name: "integer small", got: FormatInteger(999), want: "999"},
		{name: "percent", got: FormatPercent(85.125), want: "85,13"},
		{name: "weight tonnes", got: FormatWeight(7654.321), want: "7,65 T"},
		{name: "weight exactly one tonne", got: FormatWeight(1000), want: "1,00 T"},
		{name: "weight kilos", got: FormatWeight(950.4), want: "950 KG"},
		{name: "zero", got: FormatCurrency(0), want: "0,00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
