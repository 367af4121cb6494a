package model

// DocType distinguishes the three hallmark document kinds.
type DocType string

const (
	DocTypeProcess DocType = "process_qh"
	DocTypeData    DocType = "data_qh"
	DocTypeProduct DocType = "product_qh"
)

// ParseDocType maps the short CLI spelling to a DocType.
func ParseDocType(s string) (DocType, bool) {
	switch s {
	case "process", string(DocTypeProcess):
		return DocTypeProcess, true
	case "data", string(DocTypeData):
		return DocTypeData, true
	case "product", string(DocTypeProduct):
		return DocTypeProduct, true
	default:
		return "", false
	}
}

// QualityDocument is the publishable quality hallmark document.
type QualityDocument struct {
	Pwd string `json:"pwd"`
	CID string `json:"cid"`
	QHD QHD    `json:"qhd"`
}

// QHD is the header + body envelope.
type QHD struct {
	Header Header         `json:"qhd-header"`
	Body   map[string]any `json:"qhd-body"`
}

// Header identifies the document for the downstream service.
type Header struct {
	Owner   string `json:"owner"`
	Subject string `json:"subject"`
	Timeref string `json:"timeref"`
	Model   string `json:"model"`
	Asset   string `json:"asset"`
}
