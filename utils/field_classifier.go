package utils

import (
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
)

// containsRule maps a set of label substrings onto a field type.
type containsRule struct {
	fieldType dto.FieldType
	needles   []string
}

// classifierRules is evaluated top to bottom. "due" must come before "date"
// and "subtotal" (amount) before "total".
var classifierRules = []containsRule{
	{dto.FieldVendor, []string{"vendor"}},
	{dto.FieldDueDate, []string{"due"}},
	{dto.FieldDate, []string{"date"}},
	{dto.FieldAmount, []string{"amount", "subtotal"}},
	{dto.FieldTax, []string{"tax", "vat"}},
	{dto.FieldTotal, []string{"total"}},
	{dto.FieldCurrency, []string{"currency"}},
	{dto.FieldNotes, []string{"notes"}},
}

// ClassifyFieldType maps an arbitrary label onto a canonical field type.
// The second return value is false when the label is rejected.
func ClassifyFieldType(label string) (dto.FieldType, bool) {
	cleaned := cleanLabel(label)
	if cleaned == "" {
		return "", false
	}

	compact := compactLabel(cleaned)
	for _, ft := range dto.FieldTypes {
		if compact == strings.ToLower(string(ft)) {
			return ft, true
		}
	}

	for _, rule := range classifierRules {
		for _, needle := range rule.needles {
			if strings.Contains(compact, needle) {
				return rule.fieldType, true
			}
		}
	}

	return "", false
}

// cleanLabel lowercases a label and strips markdown noise around it.
func cleanLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.Trim(label, "*_`#:- \t")
	return strings.TrimSpace(label)
}

// compactLabel removes separators so "due date" and "due_date" compare equal to "duedate".
func compactLabel(label string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(label)
}
