package nfe

import "github.com/shopspring/decimal"

// Batch kinds, detected from the root element of the markup.
const (
	KindSingle    = "single"
	KindBatch     = "batch"
	KindProcessed = "processed"
)

// Batch is the parsed form of one markup payload, which may carry a single
// document or an envelope with many.
type Batch struct {
	Kind      string
	BatchID   string
	Version   string
	Documents []Document
}

// Document is the typed intermediate model of one fiscal document. It is
// built entirely in memory; the parser performs no I/O.
type Document struct {
	// DeclaredKey is the access key claimed by the Id attribute, without the
	// "NFe" prefix. Empty when the attribute is absent.
	DeclaredKey    string
	Version        string
	Identification Identification
	Issuer         Party
	Recipient      Party
	Items          []Item
	Totals         Totals
	Transport      Transport
	Payments       []Payment
	AdditionalInfo string
	// Findings records non-fatal field coercion problems and structural
	// defects (masked tax IDs, unparsable numbers/dates) hit while parsing.
	Findings []string
}

// Identification mirrors the ide block. Immutable once parsed.
type Identification struct {
	StateCode        string
	ControlCode      string
	OperationNature  string
	Model            string
	Series           string
	Number           string
	EmissionDate     string // ISO-8601 when normalizable, raw text otherwise
	DepartureDate    string
	OperationType    string
	Destination      string
	MunicipalityCode string
	EmissionType     string
	Environment      string
	Purpose          string
	FinalConsumer    string
	BuyerPresence    string
}

// Party describes the issuer or the recipient; both share the same shape.
type Party struct {
	TaxID             string // CPF(11) or CNPJ(14), digits only
	LegalName         string
	TradeName         string
	StateRegistration string
	StateRegIndicator string
	Email             string
	Address           Address
}

type Address struct {
	Street           string
	Number           string
	Complement       string
	District         string
	MunicipalityCode string
	Municipality     string
	State            string
	PostalCode       string
	CountryCode      string
	Country          string
	Phone            string
}

// Item is one det entry. Items are exclusively owned by their document.
type Item struct {
	Number          int
	ProductCode     string
	EAN             string
	Description     string
	NCM             string
	CFOP            string
	Unit            string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	Total           decimal.Decimal
	TaxableUnit     string
	TaxableQuantity decimal.Decimal
	Freight         decimal.Decimal
	Insurance       decimal.Decimal
	Discount        decimal.Decimal
	ICMS            TaxBlock
	IPI             TaxBlock
	PIS             TaxBlock
	COFINS          TaxBlock
	AdditionalInfo  string
}

// TaxBlock carries the situation/base/rate/value quadruplet shared by ICMS,
// IPI, PIS and COFINS. Absent sub-blocks parse to the zero value.
type TaxBlock struct {
	SituationCode string
	Base          decimal.Decimal
	Rate          decimal.Decimal
	Value         decimal.Decimal
}

// Totals mirrors the ICMSTot block of declared document totals.
type Totals struct {
	Products  decimal.Decimal
	Freight   decimal.Decimal
	Insurance decimal.Decimal
	Discount  decimal.Decimal
	ICMS      decimal.Decimal
	IPI       decimal.Decimal
	PIS       decimal.Decimal
	COFINS    decimal.Decimal
	Other     decimal.Decimal
	Grand     decimal.Decimal
	TaxBurden decimal.Decimal
}

type Transport struct {
	FreightMode string
	Volumes     []Volume
}

type Volume struct {
	Quantity    string
	Kind        string
	Brand       string
	NetWeight   decimal.Decimal
	GrossWeight decimal.Decimal
}

type Payment struct {
	Indicator string
	Method    string
	Amount    decimal.Decimal
}
