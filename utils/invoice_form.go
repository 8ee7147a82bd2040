package utils

import (
	"strconv"
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
)

// DefaultCurrency fills the form when no currency was pinned.
const DefaultCurrency = "USD"

// BuildInvoiceForm populates the invoice form from the current annotations.
func BuildInvoiceForm(annotations []dto.Annotation) dto.InvoiceForm {
	form := dto.InvoiceForm{
		Currency:  DefaultCurrency,
		Connected: []dto.FieldType{},
	}

	for _, ann := range annotations {
		form.Connected = append(form.Connected, ann.Type)
		value := strings.TrimSpace(ann.Value)

		switch ann.Type {
		case dto.FieldVendor:
			form.Vendor = value
		case dto.FieldDate:
			form.Date = value
		case dto.FieldDueDate:
			form.DueDate = value
		case dto.FieldAmount:
			form.Amount = ParseMoney(value)
		case dto.FieldTax:
			form.Tax = ParseMoney(value)
		case dto.FieldTotal:
			form.Total = ParseMoney(value)
		case dto.FieldCurrency:
			if value != "" {
				form.Currency = strings.ToUpper(value)
			}
		case dto.FieldNotes:
			form.Notes = value
		}
	}

	return form
}

// ParseMoney reads a cleaned money string. "1,250.00" and "1.250,00" both
// give 1250; a comma followed by exactly two trailing digits is a decimal comma.
func ParseMoney(text string) float64 {
	s := CleanMoneyValue(text)
	if s == "" {
		return 0
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot && len(s)-lastComma-1 == 2 {
		whole := strings.NewReplacer(".", "", ",", "").Replace(s[:lastComma])
		s = whole + "." + s[lastComma+1:]
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return amount
}
