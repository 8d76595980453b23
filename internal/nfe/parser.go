package nfe

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// Namespace is the fixed namespace of fiscal document markup. Input in any
// other namespace is rejected as structurally malformed.
const Namespace = "http://www.portalfiscal.inf.br/nfe"

// StructuralError aborts parsing for one payload. No partial batch is
// returned alongside it.
type StructuralError struct {
	Filename   string
	Complaints []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed document %s: %s", e.Filename, strings.Join(e.Complaints, "; "))
}

// Parse walks the markup of a single document, a processed envelope or a
// batch into a typed Batch. It is side-effect free: unparsable numbers and
// dates become per-document findings, while malformed XML, an unexpected root
// or a wrong namespace abort with *StructuralError.
func Parse(data []byte, filename string) (*Batch, error) {
	root, err := rootName(data)
	if err != nil {
		return nil, &StructuralError{Filename: filename, Complaints: []string{"unparsable XML: " + err.Error()}}
	}
	if root.Space != Namespace {
		return nil, &StructuralError{Filename: filename, Complaints: []string{
			fmt.Sprintf("unexpected namespace %q, want %q", root.Space, Namespace),
		}}
	}

	switch root.Local {
	case "enviNFe":
		var env xmlEnviNFe
		if err := decode(data, &env); err != nil {
			return nil, &StructuralError{Filename: filename, Complaints: []string{"unparsable XML: " + err.Error()}}
		}
		if len(env.NFe) == 0 {
			return nil, &StructuralError{Filename: filename, Complaints: []string{"batch envelope contains no documents"}}
		}
		batch := &Batch{Kind: KindBatch, BatchID: env.IDLote, Version: env.Versao}
		for _, n := range env.NFe {
			batch.Documents = append(batch.Documents, buildDocument(n.InfNFe))
		}
		return batch, nil

	case "nfeProc":
		var proc xmlNFeProc
		if err := decode(data, &proc); err != nil {
			return nil, &StructuralError{Filename: filename, Complaints: []string{"unparsable XML: " + err.Error()}}
		}
		if emptyInfNFe(proc.NFe.InfNFe) {
			return nil, &StructuralError{Filename: filename, Complaints: []string{"processed envelope is missing the infNFe element"}}
		}
		return &Batch{Kind: KindProcessed, Version: proc.Versao, Documents: []Document{buildDocument(proc.NFe.InfNFe)}}, nil

	case "NFe":
		var n xmlNFe
		if err := decode(data, &n); err != nil {
			return nil, &StructuralError{Filename: filename, Complaints: []string{"unparsable XML: " + err.Error()}}
		}
		if emptyInfNFe(n.InfNFe) {
			return nil, &StructuralError{Filename: filename, Complaints: []string{"document is missing the infNFe element"}}
		}
		return &Batch{Kind: KindSingle, Version: n.InfNFe.Versao, Documents: []Document{buildDocument(n.InfNFe)}}, nil

	default:
		return nil, &StructuralError{Filename: filename, Complaints: []string{
			fmt.Sprintf("root element must be NFe, enviNFe or nfeProc, got %q", root.Local),
		}}
	}
}

// rootName reads tokens up to the first start element.
func rootName(data []byte) (xml.Name, error) {
	d := newDecoder(data)
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return xml.Name{}, fmt.Errorf("no root element found")
			}
			return xml.Name{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name, nil
		}
	}
}

func decode(data []byte, v interface{}) error {
	return newDecoder(data).Decode(v)
}

// newDecoder tolerates the legacy single-byte encodings still seen in the
// wild for fiscal XML.
func newDecoder(data []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "iso-8859-1", "latin1":
			return charmap.ISO8859_1.NewDecoder().Reader(input), nil
		case "windows-1252", "cp1252":
			return charmap.Windows1252.NewDecoder().Reader(input), nil
		default:
			return nil, fmt.Errorf("unsupported charset %q", charset)
		}
	}
	return d
}

func emptyInfNFe(inf xmlInfNFe) bool {
	return inf.ID == "" && inf.Ide.NNF == "" && len(inf.Det) == 0
}

// fieldCollector accumulates non-fatal coercion findings while the document
// model is assembled.
type fieldCollector struct {
	findings []string
}

func (c *fieldCollector) decimal(field, raw string) decimal.Decimal {
	d, err := ParseDecimal(raw)
	if err != nil {
		c.findings = append(c.findings, fmt.Sprintf("%s: unparsable number %q", field, raw))
	}
	return d
}

func (c *fieldCollector) date(field, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	iso, ok := NormalizeDate(raw)
	if !ok {
		c.findings = append(c.findings, fmt.Sprintf("%s: unrecognized date format %q", field, raw))
	}
	return iso
}

// taxID keeps digits only. Masking characters mean redacted source data,
// which is a structural defect rather than a valid value.
func (c *fieldCollector) taxID(field, raw string) string {
	if strings.ContainsRune(raw, '*') {
		c.findings = append(c.findings, fmt.Sprintf("%s: masked tax ID %q", field, raw))
		return ""
	}
	return digitsOnly(raw)
}

func buildDocument(inf xmlInfNFe) Document {
	c := &fieldCollector{}

	doc := Document{
		DeclaredKey: strings.TrimPrefix(inf.ID, "NFe"),
		Version:     inf.Versao,
		Identification: Identification{
			StateCode:        inf.Ide.CUF,
			ControlCode:      inf.Ide.CNF,
			OperationNature:  inf.Ide.NatOp,
			Model:            inf.Ide.Mod,
			Series:           inf.Ide.Serie,
			Number:           inf.Ide.NNF,
			EmissionDate:     c.date("ide.dhEmi", firstNonEmpty(inf.Ide.DhEmi, inf.Ide.DEmi)),
			DepartureDate:    c.date("ide.dhSaiEnt", firstNonEmpty(inf.Ide.DhSaiEnt, inf.Ide.DSaiEnt)),
			OperationType:    inf.Ide.TpNF,
			Destination:      inf.Ide.IDDest,
			MunicipalityCode: inf.Ide.CMunFG,
			EmissionType:     inf.Ide.TpEmis,
			Environment:      inf.Ide.TpAmb,
			Purpose:          inf.Ide.FinNFe,
			FinalConsumer:    inf.Ide.IndFinal,
			BuyerPresence:    inf.Ide.IndPres,
		},
		Issuer: Party{
			TaxID:             c.taxID("emit.CNPJ", firstNonEmpty(inf.Emit.CNPJ, inf.Emit.CPF)),
			LegalName:         inf.Emit.XNome,
			TradeName:         inf.Emit.XFant,
			StateRegistration: inf.Emit.IE,
			Address:           buildAddress(inf.Emit.Ender),
		},
		Recipient: Party{
			TaxID:             c.taxID("dest.CNPJ", firstNonEmpty(inf.Dest.CNPJ, inf.Dest.CPF)),
			LegalName:         inf.Dest.XNome,
			StateRegistration: inf.Dest.IE,
			StateRegIndicator: inf.Dest.IndIEDest,
			Email:             inf.Dest.Email,
			Address:           buildAddress(inf.Dest.Ender),
		},
		Totals: Totals{
			Products:  c.decimal("total.vProd", inf.Total.ICMSTot.VProd),
			Freight:   c.decimal("total.vFrete", inf.Total.ICMSTot.VFrete),
			Insurance: c.decimal("total.vSeg", inf.Total.ICMSTot.VSeg),
			Discount:  c.decimal("total.vDesc", inf.Total.ICMSTot.VDesc),
			ICMS:      c.decimal("total.vICMS", inf.Total.ICMSTot.VICMS),
			IPI:       c.decimal("total.vIPI", inf.Total.ICMSTot.VIPI),
			PIS:       c.decimal("total.vPIS", inf.Total.ICMSTot.VPIS),
			COFINS:    c.decimal("total.vCOFINS", inf.Total.ICMSTot.VCOFINS),
			Other:     c.decimal("total.vOutro", inf.Total.ICMSTot.VOutro),
			Grand:     c.decimal("total.vNF", inf.Total.ICMSTot.VNF),
			TaxBurden: c.decimal("total.vTotTrib", inf.Total.ICMSTot.VTotTrib),
		},
		Transport:      buildTransport(inf.Transp, c),
		AdditionalInfo: strings.TrimSpace(inf.InfAdic.InfCpl),
	}

	for i, det := range inf.Det {
		number, err := strconv.Atoi(det.NItem)
		if err != nil || number <= 0 {
			// Sequence numbers are 1-based; fall back to position.
			number = i + 1
			if det.NItem != "" && err != nil {
				c.findings = append(c.findings, fmt.Sprintf("det.nItem: unparsable sequence %q", det.NItem))
			}
		}
		doc.Items = append(doc.Items, buildItem(det, number, c))
	}

	for _, p := range inf.Pag.DetPag {
		doc.Payments = append(doc.Payments, Payment{
			Indicator: p.IndPag,
			Method:    p.TPag,
			Amount:    c.decimal("pag.vPag", p.VPag),
		})
	}

	doc.Findings = c.findings
	return doc
}

func buildAddress(e xmlEndereco) Address {
	return Address{
		Street:           e.XLgr,
		Number:           e.Nro,
		Complement:       e.XCpl,
		District:         e.XBairro,
		MunicipalityCode: e.CMun,
		Municipality:     e.XMun,
		State:            e.UF,
		PostalCode:       e.CEP,
		CountryCode:      e.CPais,
		Country:          e.XPais,
		Phone:            e.Fone,
	}
}

func buildItem(det xmlDet, number int, c *fieldCollector) Item {
	prefix := fmt.Sprintf("det[%d]", number)
	item := Item{
		Number:          number,
		ProductCode:     det.Prod.CProd,
		EAN:             det.Prod.CEAN,
		Description:     det.Prod.XProd,
		NCM:             det.Prod.NCM,
		CFOP:            det.Prod.CFOP,
		Unit:            det.Prod.UCom,
		Quantity:        c.decimal(prefix+".qCom", det.Prod.QCom),
		UnitPrice:       c.decimal(prefix+".vUnCom", det.Prod.VUnCom),
		Total:           c.decimal(prefix+".vProd", det.Prod.VProd),
		TaxableUnit:     det.Prod.UTrib,
		TaxableQuantity: c.decimal(prefix+".qTrib", det.Prod.QTrib),
		Freight:         c.decimal(prefix+".vFrete", det.Prod.VFrete),
		Insurance:       c.decimal(prefix+".vSeg", det.Prod.VSeg),
		Discount:        c.decimal(prefix+".vDesc", det.Prod.VDesc),
		AdditionalInfo:  det.InfAdProd,
	}

	if b := det.Imposto.ICMS.Body; b != nil {
		item.ICMS = TaxBlock{
			SituationCode: firstNonEmpty(b.CST, b.CSOSN),
			Base:          c.decimal(prefix+".ICMS.vBC", b.VBC),
			Rate:          c.decimal(prefix+".ICMS.pICMS", b.PICMS),
			Value:         c.decimal(prefix+".ICMS.vICMS", b.VICMS),
		}
	}
	if ipi := det.Imposto.IPI; ipi != nil {
		if t := ipi.IPITrib; t != nil {
			item.IPI = TaxBlock{
				SituationCode: t.CST,
				Base:          c.decimal(prefix+".IPI.vBC", t.VBC),
				Rate:          c.decimal(prefix+".IPI.pIPI", t.PIPI),
				Value:         c.decimal(prefix+".IPI.vIPI", t.VIPI),
			}
		} else if nt := ipi.IPINT; nt != nil {
			item.IPI = TaxBlock{SituationCode: nt.CST}
		}
	}
	if b := det.Imposto.PIS.Body; b != nil {
		item.PIS = TaxBlock{
			SituationCode: b.CST,
			Base:          c.decimal(prefix+".PIS.vBC", b.VBC),
			Rate:          c.decimal(prefix+".PIS.pPIS", b.PPIS),
			Value:         c.decimal(prefix+".PIS.vPIS", b.VPIS),
		}
	}
	if b := det.Imposto.COFINS.Body; b != nil {
		item.COFINS = TaxBlock{
			SituationCode: b.CST,
			Base:          c.decimal(prefix+".COFINS.vBC", b.VBC),
			Rate:          c.decimal(prefix+".COFINS.pCOFINS", b.PCOFINS),
			Value:         c.decimal(prefix+".COFINS.vCOFINS", b.VCOFINS),
		}
	}
	return item
}

func buildTransport(t xmlTransp, c *fieldCollector) Transport {
	tr := Transport{FreightMode: t.ModFrete}
	for _, v := range t.Vol {
		tr.Volumes = append(tr.Volumes, Volume{
			Quantity:    v.QVol,
			Kind:        v.Esp,
			Brand:       v.Marca,
			NetWeight:   c.decimal("transp.vol.pesoL", v.PesoL),
			GrossWeight: c.decimal("transp.vol.pesoB", v.PesoB),
		})
	}
	return tr
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// --- wire structs ---

type xmlEnviNFe struct {
	XMLName xml.Name `xml:"enviNFe"`
	Versao  string   `xml:"versao,attr"`
	IDLote  string   `xml:"idLote"`
	NFe     []xmlNFe `xml:"NFe"`
}

type xmlNFeProc struct {
	XMLName xml.Name `xml:"nfeProc"`
	Versao  string   `xml:"versao,attr"`
	NFe     xmlNFe   `xml:"NFe"`
}

type xmlNFe struct {
	InfNFe xmlInfNFe `xml:"infNFe"`
}

type xmlInfNFe struct {
	ID      string     `xml:"Id,attr"`
	Versao  string     `xml:"versao,attr"`
	Ide     xmlIde     `xml:"ide"`
	Emit    xmlEmit    `xml:"emit"`
	Dest    xmlDest    `xml:"dest"`
	Det     []xmlDet   `xml:"det"`
	Total   xmlTotal   `xml:"total"`
	Transp  xmlTransp  `xml:"transp"`
	Pag     xmlPag     `xml:"pag"`
	InfAdic xmlInfAdic `xml:"infAdic"`
}

type xmlIde struct {
	CUF      string `xml:"cUF"`
	CNF      string `xml:"cNF"`
	NatOp    string `xml:"natOp"`
	Mod      string `xml:"mod"`
	Serie    string `xml:"serie"`
	NNF      string `xml:"nNF"`
	DhEmi    string `xml:"dhEmi"`
	DEmi     string `xml:"dEmi"`
	DhSaiEnt string `xml:"dhSaiEnt"`
	DSaiEnt  string `xml:"dSaiEnt"`
	TpNF     string `xml:"tpNF"`
	IDDest   string `xml:"idDest"`
	CMunFG   string `xml:"cMunFG"`
	TpEmis   string `xml:"tpEmis"`
	CDV      string `xml:"cDV"`
	TpAmb    string `xml:"tpAmb"`
	FinNFe   string `xml:"finNFe"`
	IndFinal string `xml:"indFinal"`
	IndPres  string `xml:"indPres"`
}

type xmlEmit struct {
	CNPJ  string      `xml:"CNPJ"`
	CPF   string      `xml:"CPF"`
	XNome string      `xml:"xNome"`
	XFant string      `xml:"xFant"`
	IE    string      `xml:"IE"`
	CRT   string      `xml:"CRT"`
	Ender xmlEndereco `xml:"enderEmit"`
}

type xmlDest struct {
	CNPJ      string      `xml:"CNPJ"`
	CPF       string      `xml:"CPF"`
	XNome     string      `xml:"xNome"`
	IE        string      `xml:"IE"`
	IndIEDest string      `xml:"indIEDest"`
	Email     string      `xml:"email"`
	Ender     xmlEndereco `xml:"enderDest"`
}

type xmlEndereco struct {
	XLgr    string `xml:"xLgr"`
	Nro     string `xml:"nro"`
	XCpl    string `xml:"xCpl"`
	XBairro string `xml:"xBairro"`
	CMun    string `xml:"cMun"`
	XMun    string `xml:"xMun"`
	UF      string `xml:"UF"`
	CEP     string `xml:"CEP"`
	CPais   string `xml:"cPais"`
	XPais   string `xml:"xPais"`
	Fone    string `xml:"fone"`
}

type xmlDet struct {
	NItem     string     `xml:"nItem,attr"`
	Prod      xmlProd    `xml:"prod"`
	Imposto   xmlImposto `xml:"imposto"`
	InfAdProd string     `xml:"infAdProd"`
}

type xmlProd struct {
	CProd  string `xml:"cProd"`
	CEAN   string `xml:"cEAN"`
	XProd  string `xml:"xProd"`
	NCM    string `xml:"NCM"`
	CFOP   string `xml:"CFOP"`
	UCom   string `xml:"uCom"`
	QCom   string `xml:"qCom"`
	VUnCom string `xml:"vUnCom"`
	VProd  string `xml:"vProd"`
	UTrib  string `xml:"uTrib"`
	QTrib  string `xml:"qTrib"`
	VFrete string `xml:"vFrete"`
	VSeg   string `xml:"vSeg"`
	VDesc  string `xml:"vDesc"`
	IndTot string `xml:"indTot"`
}

type xmlImposto struct {
	ICMS   xmlICMS   `xml:"ICMS"`
	IPI    *xmlIPI   `xml:"IPI"`
	PIS    xmlPIS    `xml:"PIS"`
	COFINS xmlCOFINS `xml:"COFINS"`
}

// The ICMS container wraps exactly one situation-specific element (ICMS00,
// ICMS10, ...); ",any" captures whichever variant is present.
type xmlICMS struct {
	Body *xmlICMSBody `xml:",any"`
}

type xmlICMSBody struct {
	XMLName xml.Name
	Orig    string `xml:"orig"`
	CST     string `xml:"CST"`
	CSOSN   string `xml:"CSOSN"`
	VBC     string `xml:"vBC"`
	PICMS   string `xml:"pICMS"`
	VICMS   string `xml:"vICMS"`
}

type xmlIPI struct {
	CEnq    string      `xml:"cEnq"`
	IPITrib *xmlIPITrib `xml:"IPITrib"`
	IPINT   *xmlIPINT   `xml:"IPINT"`
}

type xmlIPITrib struct {
	CST  string `xml:"CST"`
	VBC  string `xml:"vBC"`
	PIPI string `xml:"pIPI"`
	VIPI string `xml:"vIPI"`
}

type xmlIPINT struct {
	CST string `xml:"CST"`
}

type xmlPIS struct {
	Body *xmlPISBody `xml:",any"`
}

type xmlPISBody struct {
	XMLName xml.Name
	CST     string `xml:"CST"`
	VBC     string `xml:"vBC"`
	PPIS    string `xml:"pPIS"`
	VPIS    string `xml:"vPIS"`
}

type xmlCOFINS struct {
	Body *xmlCOFINSBody `xml:",any"`
}

type xmlCOFINSBody struct {
	XMLName xml.Name
	CST     string `xml:"CST"`
	VBC     string `xml:"vBC"`
	PCOFINS string `xml:"pCOFINS"`
	VCOFINS string `xml:"vCOFINS"`
}

type xmlTotal struct {
	ICMSTot xmlICMSTot `xml:"ICMSTot"`
}

type xmlICMSTot struct {
	VBC      string `xml:"vBC"`
	VICMS    string `xml:"vICMS"`
	VProd    string `xml:"vProd"`
	VFrete   string `xml:"vFrete"`
	VSeg     string `xml:"vSeg"`
	VDesc    string `xml:"vDesc"`
	VIPI     string `xml:"vIPI"`
	VPIS     string `xml:"vPIS"`
	VCOFINS  string `xml:"vCOFINS"`
	VOutro   string `xml:"vOutro"`
	VNF      string `xml:"vNF"`
	VTotTrib string `xml:"vTotTrib"`
}

type xmlTransp struct {
	ModFrete string   `xml:"modFrete"`
	Vol      []xmlVol `xml:"vol"`
}

type xmlVol struct {
	QVol  string `xml:"qVol"`
	Esp   string `xml:"esp"`
	Marca string `xml:"marca"`
	PesoL string `xml:"pesoL"`
	PesoB string `xml:"pesoB"`
}

type xmlPag struct {
	DetPag []xmlDetPag `xml:"detPag"`
}

type xmlDetPag struct {
	IndPag string `xml:"indPag"`
	TPag   string `xml:"tPag"`
	VPag   string `xml:"vPag"`
}

type xmlInfAdic struct {
	InfAdFisco string `xml:"infAdFisco"`
	InfCpl     string `xml:"infCpl"`
}
