package models

// AccountMapping maps an expense to a chart-of-accounts debit account.
type AccountMapping struct {
	Account       string `json:"account" yaml:"account"`
	Label         string `json:"label" yaml:"label"`
	VATDeductible bool   `json:"vat_deductible" yaml:"vat_deductible"`
}

// IsZero reports whether no account is set.
func (m AccountMapping) IsZero() bool {
	return m.Account == ""
}

// KeywordGroup maps an ordered set of keywords to a chart category.
type KeywordGroup struct {
	Category string   `json:"category" yaml:"category"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// KeywordGroupsConfig is the YAML layout of the keyword groups file.
type KeywordGroupsConfig struct {
	Groups []KeywordGroup `yaml:"groups"`
}
