package utils

import (
	"testing"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/stretchr/testify/assert"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,250.00", 1250},
		{"$1,250.00", 1250},
		{"1.250,00", 1250},
		{"12,50", 12.5},
		{"1,000,000", 1000000},
		{"99", 99},
		{"", 0},
		{"n/a", 0},
		{"1.2.3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseMoney(tt.in), 1e-9)
		})
	}
}

func TestBuildInvoiceForm(t *testing.T) {
	annotations := []dto.Annotation{
		{Type: dto.FieldVendor, Value: " Acme Corp "},
		{Type: dto.FieldDate, Value: "2024-10-01"},
		{Type: dto.FieldDueDate, Value: "2024-11-01"},
		{Type: dto.FieldAmount, Value: "1,100.00"},
		{Type: dto.FieldTax, Value: "220.00"},
		{Type: dto.FieldTotal, Value: "1,320.00"},
		{Type: dto.FieldCurrency, Value: "eur"},
		{Type: dto.FieldNotes, Value: "Net 30"},
	}

	form := BuildInvoiceForm(annotations)

	assert.Equal(t, "Acme Corp", form.Vendor)
	assert.Equal(t, "2024-10-01", form.Date)
	assert.Equal(t, "2024-11-01", form.DueDate)
	assert.InDelta(t, 1100, form.Amount, 1e-9)
	assert.InDelta(t, 220, form.Tax, 1e-9)
	assert.InDelta(t, 1320, form.Total, 1e-9)
	assert.Equal(t, "EUR", form.Currency)
	assert.Equal(t, "Net 30", form.Notes)
	assert.Equal(t, dto.FieldTypes, form.Connected)
}

func TestBuildInvoiceFormDefaults(t *testing.T) {
	form := BuildInvoiceForm(nil)

	assert.Equal(t, DefaultCurrency, form.Currency)
	assert.Empty(t, form.Connected)
	assert.NotNil(t, form.Connected)
	assert.Zero(t, form.Total)
}
