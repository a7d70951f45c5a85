package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
)

const (
	envelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	xsiNS      = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNS      = "http://www.w3.org/2001/XMLSchema"
)

// ErrEmptyResult is returned when the service answers without a fault but the
// return value is missing, nil or empty. The KDP API uses this to signal
// failure, so callers must not treat it as success.
var ErrEmptyResult = errors.New("soap: empty result")

// Param is one named argument of an RPC call.
//
// Value is a scalar (string, integer, float or bool), a nested []Param for
// structures, or nil for an absent optional argument. Nil params are left
// out of the request body.
type Param struct {
	Name  string
	Value any
}

// Fault is a structured SOAP 1.1 fault returned by the remote service.
type Fault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

func (f *Fault) Error() string {
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.String)
}

// FormatScalar renders a scalar argument the way it is written on the wire
// and in request signatures.
func FormatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Encode renders an RPC-style SOAP 1.1 request calling method in namespace ns.
func Encode(ns, method string, params []Param) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)

	envelope := xml.StartElement{
		Name: xml.Name{Local: "soapenv:Envelope"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:soapenv"}, Value: envelopeNS},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: xsiNS},
			{Name: xml.Name{Local: "xmlns:xsd"}, Value: xsdNS},
			{Name: xml.Name{Local: "xmlns:ns1"}, Value: ns},
		},
	}
	body := xml.StartElement{Name: xml.Name{Local: "soapenv:Body"}}
	call := xml.StartElement{Name: xml.Name{Local: "ns1:" + method}}

	for _, start := range []xml.StartElement{envelope, body, call} {
		if err := enc.EncodeToken(start); err != nil {
			return nil, fmt.Errorf("soap: encode %s: %w", method, err)
		}
	}
	if err := encodeParams(enc, params); err != nil {
		return nil, fmt.Errorf("soap: encode %s: %w", method, err)
	}
	for _, start := range []xml.StartElement{call, body, envelope} {
		if err := enc.EncodeToken(start.End()); err != nil {
			return nil, fmt.Errorf("soap: encode %s: %w", method, err)
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("soap: encode %s: %w", method, err)
	}
	return buf.Bytes(), nil
}

// xsdType returns the xsi:type of a scalar argument, or "" for structures.
func xsdType(v any) string {
	switch v.(type) {
	case string:
		return "xsd:string"
	case int, int32, int64, uint32, uint64:
		return "xsd:int"
	case float64:
		return "xsd:double"
	case bool:
		return "xsd:boolean"
	default:
		return ""
	}
}

func encodeParams(enc *xml.Encoder, params []Param) error {
	for _, p := range params {
		if p.Value == nil {
			continue
		}
		start := xml.StartElement{Name: xml.Name{Local: p.Name}}
		if typ := xsdType(p.Value); typ != "" {
			start.Attr = []xml.Attr{{Name: xml.Name{Local: "xsi:type"}, Value: typ}}
		}
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if nested, ok := p.Value.([]Param); ok {
			if err := encodeParams(enc, nested); err != nil {
				return err
			}
		} else if err := enc.EncodeToken(xml.CharData(FormatScalar(p.Value))); err != nil {
			return err
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return err
		}
	}
	return nil
}

type envelope struct {
	Body struct {
		Fault   *Fault  `xml:"Fault"`
		Content []*Node `xml:",any"`
	} `xml:"Body"`
}

// Decode parses a SOAP response envelope and returns the RPC return value:
// the first child of the response element. A fault is returned as *Fault;
// a missing, nil or empty return value as ErrEmptyResult.
func Decode(data []byte) (*Node, error) {
	var env envelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Body.Fault != nil {
		return nil, env.Body.Fault
	}
	if len(env.Body.Content) == 0 {
		return nil, errors.New("decode envelope: empty body")
	}
	resp := env.Body.Content[0]
	if len(resp.Children) == 0 {
		return nil, ErrEmptyResult
	}
	ret := resp.Children[0]
	if ret.Nil() || ret.Empty() {
		return nil, ErrEmptyResult
	}
	return ret, nil
}
