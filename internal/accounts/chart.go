// Package accounts holds the Swiss SME chart of accounts used for posting
// supplier invoices, together with the VAT rates and codes.
package accounts

import (
	"sort"
	"strings"

	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/textutils"
)

// Fixed accounts.
const (
	VATInput  = "1170"
	VATImport = "1171"
	VATOutput = "2200"
	Payables  = "2000"
)

// Well-known categories.
const (
	CategoryFallback   = "autre"
	CategoryFixedAsset = "materiel"
)

// Entry is one category of the chart.
type Entry struct {
	Category string `json:"category" yaml:"category"`
	models.AccountMapping
}

func entry(category, account, label string, deductible bool) Entry {
	return Entry{Category: category, AccountMapping: models.AccountMapping{Account: account, Label: label, VATDeductible: deductible}}
}

var defaultEntries = []Entry{
	entry("marchandises", "4000", "Achat marchandises", true),
	entry("marchandises_import", "4010", "Achats importation", true),
	entry("fournitures", "4200", "Fournitures de bureau", true),
	entry("emballages", "4300", "Emballages", true),
	entry("services", "4400", "Services externes", true),
	entry("informatique", "4410", "Frais informatiques", true),
	entry("logiciel", "4411", "Licences logiciels", true),
	entry("hebergement_web", "4412", "Hébergement web", true),
	entry("telecom", "4420", "Télécommunications", true),
	entry("telephonie", "4421", "Téléphonie mobile", true),
	entry("internet", "4422", "Accès internet", true),
	entry("sous_traitance", "4450", "Sous-traitance", true),

	entry("salaires", "5000", "Salaires bruts", false),
	entry("charges_sociales", "5700", "Charges sociales", false),
	entry("avs", "5710", "AVS/AI/APG", false),
	entry("lpp", "5720", "Prévoyance professionnelle", false),
	entry("assurance_accident", "5730", "Assurance accidents", false),
	entry("formation_personnel", "5800", "Formation du personnel", true),

	entry("loyer", "6000", "Loyer", false),
	entry("charges_locatives", "6010", "Charges locatives", true),
	entry("entretien_locaux", "6050", "Entretien locaux", true),
	entry("energie", "6100", "Énergie", true),
	entry("electricite", "6110", "Électricité", true),
	entry("chauffage", "6120", "Chauffage", true),
	entry("eau", "6130", "Eau", true),
	entry("transport", "6200", "Transport", true),
	entry("vehicule", "6210", "Frais véhicule", true),
	entry("carburant", "6211", "Carburant", true),
	entry("entretien_vehicule", "6212", "Entretien véhicule", true),
	entry("assurance_vehicule", "6213", "Assurance véhicule", false),
	entry("deplacements", "6220", "Frais de déplacement", true),
	entry("parking", "6230", "Parking", true),
	entry("assurances", "6300", "Assurances", false),
	entry("assurance_rc", "6310", "Assurance RC", false),
	entry("assurance_choses", "6320", "Assurance choses", false),
	entry("honoraires", "6500", "Honoraires", true),
	entry("fiduciaire", "6510", "Frais fiduciaire", true),
	entry("avocat", "6520", "Frais avocat", true),
	entry("notaire", "6530", "Frais notaire", true),
	entry("consultant", "6540", "Frais consultant", true),
	entry("publicite", "6600", "Publicité", true),
	entry("marketing", "6610", "Marketing", true),
	entry("site_web", "6620", "Site web", true),
	entry("imprimerie", "6630", "Imprimerie", true),
	entry("formation", "6700", "Formation", true),
	entry("livres", "6710", "Documentation", true),
	entry("abonnements", "6720", "Abonnements", true),
	entry("frais_bancaires", "6800", "Frais bancaires", false),
	entry("interets_passifs", "6800", "Intérêts passifs", false),
	entry("amortissements", "6800", "Amortissements", false),
	entry("frais_admin", "6810", "Frais administratifs", true),
	entry("poste", "6820", "Frais postaux", false),
	entry("cotisations", "6830", "Cotisations associations", false),
	entry("dons", "6840", "Dons", false),
	entry("frais_leasing", "6850", "Frais leasing", true),
	entry("autre", "6900", "Frais divers", true),

	entry("materiel", "1500", "Machines et équipements", true),
	entry("mobilier", "1510", "Mobilier et installations", true),
	entry("informatique_immobilise", "1520", "Matériel informatique", true),
	entry("vehicule_immobilise", "1530", "Véhicules", true),
	entry("immobilier", "1600", "Immeubles", true),

	entry("pertes_debiteurs", "8000", "Pertes sur débiteurs", false),
}

var accountNames = map[string]string{
	"1170": "TVA déductible (impôt préalable)",
	"1171": "TVA import",
	"1500": "Machines et équipements",
	"1510": "Mobilier et installations",
	"1520": "Matériel informatique",
	"1530": "Véhicules",
	"1600": "Immeubles",
	"2000": "Créanciers (fournisseurs)",
	"2200": "TVA due",
	"4000": "Charges de marchandises",
	"4010": "Achats importation",
	"4200": "Fournitures de bureau",
	"4300": "Emballages",
	"4400": "Services et sous-traitance",
	"4410": "Frais informatiques",
	"4411": "Licences logiciels",
	"4412": "Hébergement web",
	"4420": "Télécommunications",
	"4421": "Téléphonie mobile",
	"4422": "Accès internet",
	"4450": "Sous-traitance",
	"5000": "Salaires bruts",
	"5700": "Charges sociales",
	"5710": "AVS/AI/APG",
	"5720": "Prévoyance professionnelle (LPP)",
	"5730": "Assurance accidents (LAA)",
	"5800": "Formation du personnel",
	"6000": "Charges de locaux (loyer)",
	"6010": "Charges locatives",
	"6050": "Entretien et réparations locaux",
	"6100": "Énergie",
	"6110": "Électricité",
	"6120": "Chauffage",
	"6130": "Eau",
	"6200": "Transport",
	"6210": "Frais véhicule",
	"6211": "Carburant",
	"6212": "Entretien véhicule",
	"6213": "Assurance véhicule",
	"6220": "Frais de déplacement",
	"6230": "Parking",
	"6300": "Assurances",
	"6310": "Assurance RC",
	"6320": "Assurance choses",
	"6500": "Honoraires",
	"6510": "Frais fiduciaire",
	"6520": "Frais avocat",
	"6530": "Frais notaire",
	"6540": "Frais consultant",
	"6600": "Publicité",
	"6610": "Marketing",
	"6620": "Site web",
	"6630": "Imprimerie",
	"6700": "Formation",
	"6710": "Documentation",
	"6720": "Abonnements",
	"6800": "Frais bancaires / Intérêts passifs",
	"6810": "Frais administratifs",
	"6820": "Frais postaux",
	"6830": "Cotisations associations",
	"6840": "Dons",
	"6850": "Frais leasing",
	"6900": "Frais divers",
	"8000": "Pertes sur débiteurs",
}

// alternativeCategories are offered when a user reviews a classification.
var alternativeCategories = []string{"fournitures", "services", "informatique", "autre"}

// Chart is an immutable category to account table.
type Chart struct {
	entries    []Entry
	byCategory map[string]Entry
}

// DefaultChart returns the built-in Swiss SME chart.
func DefaultChart() *Chart {
	return NewChart(defaultEntries)
}

// NewChart builds a chart from entries. Later duplicates of a category
// replace earlier ones.
func NewChart(entries []Entry) *Chart {
	c := &Chart{byCategory: make(map[string]Entry, len(entries))}
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Category))
		if i, dup := index[key]; dup {
			c.entries[i] = e
		} else {
			index[key] = len(c.entries)
			c.entries = append(c.entries, e)
		}
		c.byCategory[key] = e
	}
	return c
}

// Lookup returns the mapping of category.
func (c *Chart) Lookup(category string) (models.AccountMapping, bool) {
	e, ok := c.byCategory[strings.ToLower(strings.TrimSpace(category))]
	return e.AccountMapping, ok
}

// MustLookup returns the mapping of a built-in category and panics if the
// chart lacks it.
func (c *Chart) MustLookup(category string) models.AccountMapping {
	m, ok := c.Lookup(category)
	if !ok {
		panic("accounts: chart has no category " + category)
	}
	return m
}

// Entries returns the chart entries in declaration order.
func (c *Chart) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// AccountName returns the display name of an account number, falling back
// to "Compte <n>".
func AccountName(number string) string {
	if name, ok := accountNames[number]; ok {
		return name
	}
	return "Compte " + number
}

// Search returns the entries whose category, label or account number
// contains query, ordered by account number.
func (c *Chart) Search(query string) []Entry {
	q := textutils.Fold(query)
	var out []Entry
	for _, e := range c.entries {
		if q == "" ||
			strings.Contains(textutils.Fold(e.Category), q) ||
			strings.Contains(textutils.Fold(e.Label), q) ||
			strings.HasPrefix(e.Account, q) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

// Alternatives returns up to max common mappings whose account differs from
// exclude.
func (c *Chart) Alternatives(exclude string, max int) []Entry {
	var out []Entry
	for _, cat := range alternativeCategories {
		e, ok := c.byCategory[cat]
		if !ok || e.Account == exclude {
			continue
		}
		out = append(out, e)
		if len(out) == max {
			break
		}
	}
	return out
}
