package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Document is one persisted fiscal document header. The 44-digit access key
// is the natural key: at most one row exists per key, and rows are never
// updated or deleted after insertion.
type Document struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccessKey string    `gorm:"type:varchar(44);uniqueIndex;not null" json:"access_key"`

	DocModel        string `gorm:"type:varchar(2)" json:"doc_model"`
	Series          string `gorm:"type:varchar(3)" json:"series"`
	DocNumber       string `gorm:"type:varchar(9)" json:"doc_number"`
	OperationNature string `gorm:"type:varchar(120)" json:"operation_nature"`
	// EmissionDate keeps the normalized ISO text, or the raw source text when
	// normalization failed; the required-field check treats both as present.
	EmissionDate  string `gorm:"type:varchar(40)" json:"emission_date"`
	Destination   string `gorm:"type:varchar(1)" json:"destination"`
	FinalConsumer string `gorm:"type:varchar(1)" json:"final_consumer"`
	BuyerPresence string `gorm:"type:varchar(1)" json:"buyer_presence"`

	IssuerTaxID             string `gorm:"column:issuer_tax_id;type:varchar(14);index" json:"issuer_tax_id"`
	IssuerName              string `gorm:"type:varchar(120)" json:"issuer_name"`
	IssuerStateRegistration string `gorm:"type:varchar(20)" json:"issuer_state_registration"`
	IssuerState             string `gorm:"type:varchar(2)" json:"issuer_state"`
	IssuerCity              string `gorm:"type:varchar(80)" json:"issuer_city"`

	RecipientTaxID           string `gorm:"column:recipient_tax_id;type:varchar(14)" json:"recipient_tax_id"`
	RecipientName            string `gorm:"type:varchar(120)" json:"recipient_name"`
	RecipientState           string `gorm:"type:varchar(2)" json:"recipient_state"`
	RecipientStateRegInd     string `gorm:"type:varchar(1)" json:"recipient_state_reg_ind"`

	ProductsTotal  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"products_total"`
	FreightTotal   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"freight_total"`
	InsuranceTotal decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"insurance_total"`
	DiscountTotal  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"discount_total"`
	ICMSTotal      decimal.Decimal `gorm:"column:icms_total;type:decimal(18,4);not null;default:0" json:"icms_total"`
	IPITotal       decimal.Decimal `gorm:"column:ipi_total;type:decimal(18,4);not null;default:0" json:"ipi_total"`
	PISTotal       decimal.Decimal `gorm:"column:pis_total;type:decimal(18,4);not null;default:0" json:"pis_total"`
	COFINSTotal    decimal.Decimal `gorm:"column:cofins_total;type:decimal(18,4);not null;default:0" json:"cofins_total"`
	OtherTotal     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"other_total"`
	GrandTotal     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"grand_total"`

	SourceFile  string    `gorm:"type:varchar(255)" json:"source_file"`
	ProcessedAt time.Time `json:"processed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Document) TableName() string { return "fiscal_documents" }

// DocumentItem is one persisted line item. Items are inserted once, at
// document creation, tagged with the owning header's id and access key, and
// never reassigned.
type DocumentItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	AccessKey  string    `gorm:"type:varchar(44);not null;index" json:"access_key"`
	ItemNumber int       `gorm:"not null" json:"item_number"`

	ProductCode string `gorm:"type:varchar(60)" json:"product_code"`
	EAN         string `gorm:"column:ean;type:varchar(14)" json:"ean"`
	Description string `gorm:"type:varchar(255)" json:"description"`
	NCM         string `gorm:"column:ncm;type:varchar(8)" json:"ncm"`
	CFOP        string `gorm:"column:cfop;type:varchar(4)" json:"cfop"`
	Unit        string `gorm:"type:varchar(6)" json:"unit"`

	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,10);not null;default:0" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"line_total"`

	ICMSSituation string          `gorm:"column:icms_situation;type:varchar(3)" json:"icms_situation"`
	ICMSBase      decimal.Decimal `gorm:"column:icms_base;type:decimal(18,4);not null;default:0" json:"icms_base"`
	ICMSRate      decimal.Decimal `gorm:"column:icms_rate;type:decimal(7,4);not null;default:0" json:"icms_rate"`
	ICMSValue     decimal.Decimal `gorm:"column:icms_value;type:decimal(18,4);not null;default:0" json:"icms_value"`

	IPISituation string          `gorm:"column:ipi_situation;type:varchar(3)" json:"ipi_situation"`
	IPIBase      decimal.Decimal `gorm:"column:ipi_base;type:decimal(18,4);not null;default:0" json:"ipi_base"`
	IPIRate      decimal.Decimal `gorm:"column:ipi_rate;type:decimal(7,4);not null;default:0" json:"ipi_rate"`
	IPIValue     decimal.Decimal `gorm:"column:ipi_value;type:decimal(18,4);not null;default:0" json:"ipi_value"`

	PISSituation string          `gorm:"column:pis_situation;type:varchar(3)" json:"pis_situation"`
	PISBase      decimal.Decimal `gorm:"column:pis_base;type:decimal(18,4);not null;default:0" json:"pis_base"`
	PISRate      decimal.Decimal `gorm:"column:pis_rate;type:decimal(7,4);not null;default:0" json:"pis_rate"`
	PISValue     decimal.Decimal `gorm:"column:pis_value;type:decimal(18,4);not null;default:0" json:"pis_value"`

	COFINSSituation string          `gorm:"column:cofins_situation;type:varchar(3)" json:"cofins_situation"`
	COFINSBase      decimal.Decimal `gorm:"column:cofins_base;type:decimal(18,4);not null;default:0" json:"cofins_base"`
	COFINSRate      decimal.Decimal `gorm:"column:cofins_rate;type:decimal(7,4);not null;default:0" json:"cofins_rate"`
	COFINSValue     decimal.Decimal `gorm:"column:cofins_value;type:decimal(18,4);not null;default:0" json:"cofins_value"`

	AdditionalInfo string    `gorm:"type:text" json:"additional_info"`
	CreatedAt      time.Time `json:"created_at"`
}

func (DocumentItem) TableName() string { return "fiscal_document_items" }
