package soap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const versionResponse = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ns1="urn:KDP">
  <SOAP-ENV:Body>
    <ns1:get_api_versionResponse>
      <return>
        <version>2.3</version>
        <mode>client</mode>
      </return>
    </ns1:get_api_versionResponse>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

const faultResponse = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
  <SOAP-ENV:Body>
    <SOAP-ENV:Fault>
      <faultcode>SOAP-ENV:Client</faultcode>
      <faultstring>Authentication failed</faultstring>
    </SOAP-ENV:Fault>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

const emptyListResponse = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ns1="urn:KDP">
  <SOAP-ENV:Body>
    <ns1:attack_active_listResponse>
      <return/>
    </ns1:attack_active_listResponse>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

const nilResponse = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <SOAP-ENV:Body>
    <ns1:pingResponse xmlns:ns1="urn:KDP"><return xsi:nil="true"/></ns1:pingResponse>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

func TestEncode_RPCRequest(t *testing.T) {
	body, err := Encode("urn:KDP", "get_resource_geo_ratio", []Param{
		{Name: "Auth", Value: []Param{
			{Name: "client_id", Value: uint32(7)},
			{Name: "hash", Value: "abc"},
		}},
		{Name: "client_id", Value: uint32(7)},
		{Name: "group_id", Value: nil},
		{Name: "name", Value: "a<b"},
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got := string(body)

	for _, want := range []string{
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"`,
		`xmlns:ns1="urn:KDP"`,
		`<ns1:get_resource_geo_ratio>`,
		`xmlns:xsd="http://www.w3.org/2001/XMLSchema"`,
		`<Auth><client_id xsi:type="xsd:int">7</client_id><hash xsi:type="xsd:string">abc</hash></Auth>`,
		`</Auth><client_id xsi:type="xsd:int">7</client_id>`,
		`<name xsi:type="xsd:string">a&lt;b</name>`,
		`</ns1:get_resource_geo_ratio></soapenv:Body></soapenv:Envelope>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("request missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "group_id") {
		t.Errorf("nil param should be omitted:\n%s", got)
	}
}

func TestDecode_ReturnValue(t *testing.T) {
	ret, err := Decode([]byte(versionResponse))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := ret.Child("version").Value(); got != "2.3" {
		t.Errorf("version: got %q, want 2.3", got)
	}
	if got := ret.Child("mode").Value(); got != "client" {
		t.Errorf("mode: got %q, want client", got)
	}
	if ret.Child("missing") != nil {
		t.Error("Child(missing) should be nil")
	}
}

func TestDecode_Fault(t *testing.T) {
	_, err := Decode([]byte(faultResponse))
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("expected *Fault, got %v", err)
	}
	if fault.String != "Authentication failed" {
		t.Errorf("faultstring: got %q", fault.String)
	}
}

func TestDecode_EmptyAndNil(t *testing.T) {
	for name, body := range map[string]string{
		"empty list": emptyListResponse,
		"xsi:nil":    nilResponse,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(body)); !errors.Is(err, ErrEmptyResult) {
				t.Errorf("Decode() error = %v, want ErrEmptyResult", err)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode([]byte("<html>oops")); err == nil {
		t.Fatal("expected error for malformed envelope")
	}
}

func TestTransport_Call(t *testing.T) {
	var action, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action = r.Header.Get("SOAPAction")
		contentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(versionResponse))
	}))
	defer srv.Close()

	tr := NewTransport(Options{Endpoint: srv.URL, Namespace: "urn:KDP"}, discardLogger())
	ret, err := tr.Call(context.Background(), "get_api_version", nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got := ret.Child("version").Value(); got != "2.3" {
		t.Errorf("version: got %q", got)
	}
	if action != "urn:KDP#get_api_version" {
		t.Errorf("SOAPAction: got %q", action)
	}
	if !strings.HasPrefix(contentType, "text/xml") {
		t.Errorf("Content-Type: got %q", contentType)
	}
}

func TestTransport_FaultWith500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(faultResponse))
	}))
	defer srv.Close()

	tr := NewTransport(Options{Endpoint: srv.URL, Namespace: "urn:KDP"}, discardLogger())
	_, err := tr.Call(context.Background(), "ping", nil)
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("expected *Fault, got %v", err)
	}
}

func TestTransport_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tr := NewTransport(Options{Endpoint: srv.URL, Namespace: "urn:KDP"}, discardLogger())
	_, err := tr.Call(context.Background(), "ping", nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
}

func TestTransport_ConnectFailure(t *testing.T) {
	tr := NewTransport(Options{Endpoint: "http://127.0.0.1:1", Namespace: "urn:KDP"}, discardLogger())
	_, err := tr.Call(context.Background(), "ping", nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
}

func TestTransport_DiscoversEndpointFromWSDL(t *testing.T) {
	var wsdlFetches atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/api.wsdl", func(w http.ResponseWriter, _ *http.Request) {
		wsdlFetches.Add(1)
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<definitions xmlns="http://schemas.xmlsoap.org/wsdl/" xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap/" targetNamespace="urn:KDPApi">
  <service name="KDPService">
    <port name="KDPPort" binding="tns:KDPBinding">
      <soap:address location="` + srv.URL + `/soap"/>
    </port>
  </service>
</definitions>`))
	})
	mux.HandleFunc("/soap", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("SOAPAction"); got != "urn:KDPApi#get_api_version" {
			t.Errorf("SOAPAction: got %q", got)
		}
		_, _ = w.Write([]byte(versionResponse))
	})

	tr := NewTransport(Options{WSDLURL: srv.URL + "/api.wsdl"}, discardLogger())
	for i := 0; i < 3; i++ {
		if _, err := tr.Call(context.Background(), "get_api_version", nil); err != nil {
			t.Fatalf("Call() #%d error = %v", i, err)
		}
	}
	if n := wsdlFetches.Load(); n != 1 {
		t.Errorf("wsdl fetched %d times, want 1", n)
	}
}

func TestTransport_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tr := NewTransport(Options{WSDLURL: srv.URL + "/missing.wsdl"}, discardLogger())
	_, err := tr.Call(context.Background(), "ping", nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
}

func TestParseWSDL_NoAddress(t *testing.T) {
	if _, _, err := parseWSDL([]byte(`<definitions targetNamespace="urn:x"/>`)); err == nil {
		t.Fatal("expected error when no service address is present")
	}
}
