package models

// Default currency of the books.
const DefaultCurrency = "CHF"
