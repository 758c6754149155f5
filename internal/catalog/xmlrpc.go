package catalog

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// A minimal XML-RPC request/response codec covering exactly the method
// calls the subtitle catalog needs (LogIn, SearchSubtitles,
// DownloadSubtitles). No library in the retrieved example pack carries
// an XML-RPC client, so this talks the wire protocol directly over
// net/http + encoding/xml (see DESIGN.md for the stdlib justification).

type xmlrpcValue struct {
	XMLName xml.Name `xml:"value"`
	String  *string  `xml:"string,omitempty"`
	Int     *int     `xml:"int,omitempty"`
	Struct  *xmlrpcStruct `xml:"struct,omitempty"`
	Array   *xmlrpcArray  `xml:"array,omitempty"`
}

type xmlrpcStruct struct {
	Members []xmlrpcMember `xml:"member"`
}

type xmlrpcMember struct {
	Name  string      `xml:"name"`
	Value xmlrpcValue `xml:"value"`
}

type xmlrpcArray struct {
	Data struct {
		Values []xmlrpcValue `xml:"value"`
	} `xml:"data"`
}

type xmlrpcResponse struct {
	XMLName xml.Name `xml:"methodResponse"`
	Params  struct {
		Param struct {
			Value xmlrpcValue `xml:"value"`
		} `xml:"param"`
	} `xml:"params"`
}

func stringValue(s string) xmlrpcValue { return xmlrpcValue{String: &s} }
func intValue(i int) xmlrpcValue       { return xmlrpcValue{Int: &i} }

func structValue(members map[string]xmlrpcValue) xmlrpcValue {
	s := &xmlrpcStruct{}
	for name, v := range members {
		s.Members = append(s.Members, xmlrpcMember{Name: name, Value: v})
	}
	return xmlrpcValue{Struct: s}
}

func arrayValue(values ...xmlrpcValue) xmlrpcValue {
	a := &xmlrpcArray{}
	a.Data.Values = values
	return xmlrpcValue{Array: a}
}

func buildRequest(method string, params ...xmlrpcValue) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0"?>` + "\n<methodCall>\n  <methodName>")
	xml.EscapeText(&buf, []byte(method))
	buf.WriteString("</methodName>\n  <params>\n")
	for _, p := range params {
		buf.WriteString("    <param>")
		enc := xml.NewEncoder(&buf)
		if err := enc.Encode(p); err != nil {
			return nil, fmt.Errorf("catalog: encode param: %w", err)
		}
		buf.WriteString("</param>\n")
	}
	buf.WriteString("  </params>\n</methodCall>")
	return buf.Bytes(), nil
}

func (c *Client) call(ctx context.Context, method string, params ...xmlrpcValue) (*xmlrpcStruct, error) {
	body, err := buildRequest(method, params...)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Message: string(respBody)}
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{Message: fmt.Sprintf("http %d: %s", resp.StatusCode, respBody)}
	}

	var parsed xmlrpcResponse
	if err := xml.Unmarshal(respBody, &parsed); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("malformed xml-rpc response: %v", err)}
	}
	if parsed.Params.Param.Value.Struct == nil {
		return nil, &APIError{Message: "xml-rpc response missing struct payload"}
	}
	return parsed.Params.Param.Value.Struct, nil
}

func (s *xmlrpcStruct) field(name string) (xmlrpcValue, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return xmlrpcValue{}, false
}

func (s *xmlrpcStruct) stringField(name string) string {
	v, ok := s.field(name)
	if !ok || v.String == nil {
		return ""
	}
	return *v.String
}

func (s *xmlrpcStruct) status() string {
	status := s.stringField("status")
	return strings.TrimSpace(status)
}
