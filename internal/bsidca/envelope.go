package bsidca

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/EternisAI/silo-enroll/internal/xmlfield"
)

const (
	Namespace     = "http://www.cryptocard.com/blackshield/"
	soapNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
)

type envelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	SoapNS  string   `xml:"xmlns:soap,attr"`
	XsiNS   string   `xml:"xmlns:xsi,attr"`
	XsdNS   string   `xml:"xmlns:xsd,attr"`
	Body    envelopeBody
}

type envelopeBody struct {
	XMLName xml.Name `xml:"soap:Body"`
	Content any
}

func encodeEnvelope(payload any) ([]byte, error) {
	env := envelope{
		SoapNS: soapNamespace,
		XsiNS:  "http://www.w3.org/2001/XMLSchema-instance",
		XsdNS:  "http://www.w3.org/2001/XMLSchema",
		Body:   envelopeBody{Content: payload},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeEnvelope returns the <op>Response element of a SOAP reply or the
// Fault carried in its body.
func decodeEnvelope(op string, doc *xmlfield.Document) (*xmlfield.Document, error) {
	if fault := doc.Child("Envelope/Body/Fault"); fault != nil {
		return nil, &Fault{
			Code:   fault.Text("faultcode"),
			String: fault.Text("faultstring"),
		}
	}

	resp := doc.Child("Envelope/Body/" + op + "Response")
	if resp == nil {
		return nil, fmt.Errorf("%w: missing %sResponse element", xmlfield.ErrMalformed, op)
	}
	return resp, nil
}
