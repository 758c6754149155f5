package catalog

import (
	"compress/gzip"
	"bytes"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yairabf/submitter/internal/config"
	"github.com/yairabf/submitter/internal/retry"
)

func noRetryEngine() *retry.Engine {
	return retry.New(config.RetryConfig{MaxRetries: 0, InitialDelay: time.Millisecond, ExponentialBase: 2, MaxDelay: time.Millisecond})
}

func gzipBase64(t *testing.T, content string) string {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestConnectSucceedsAndStoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<methodResponse><params><param><value><struct>
<member><name>status</name><value><string>200 OK</string></value></member>
<member><name>token</name><value><string>abc123</string></value></member>
</struct></value></param></params></methodResponse>`))
	}))
	defer server.Close()

	cfg := config.CatalogConfig{Endpoint: server.URL, Username: "u", Password: "p", UserAgent: "test", RequestTimeout: time.Second}
	c := New(cfg, noRetryEngine())

	require.NoError(t, c.Connect(t.Context()))
	require.Equal(t, "abc123", c.token)
}

func TestConnectFailsWithoutCredentials(t *testing.T) {
	cfg := config.CatalogConfig{Endpoint: "http://example.invalid", RequestTimeout: time.Second}
	c := New(cfg, noRetryEngine())

	err := c.Connect(t.Context())
	require.Error(t, err)
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestDownloadDecodesBase64Gzip(t *testing.T) {
	content := "1\n00:00:01,000 --> 00:00:02,000\nHello\n"
	encoded := gzipBase64(t, content)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<methodResponse><params><param><value><struct>
<member><name>status</name><value><string>200 OK</string></value></member>
<member><name>data</name><value><array><data>
<value><struct><member><name>data</name><value><string>` + encoded + `</string></value></member></struct></value>
</data></array></value></member>
</struct></value></param></params></methodResponse>`))
	}))
	defer server.Close()

	cfg := config.CatalogConfig{Endpoint: server.URL, RequestTimeout: time.Second}
	c := New(cfg, noRetryEngine())
	c.token = "preauthenticated"

	outputPath := t.TempDir() + "/out.srt"
	written, err := c.Download(t.Context(), "12345", outputPath)
	require.NoError(t, err)
	require.Equal(t, outputPath, written)
}

func TestAPIErrorClassifiesTransientBySubstring(t *testing.T) {
	e := &APIError{Message: "upstream returned 503 Service Unavailable"}
	require.True(t, e.IsTransient())

	e2 := &APIError{Message: "invalid request format"}
	require.False(t, e2.IsTransient())
}

func TestClassifyMapsErrorTypesToRetryKinds(t *testing.T) {
	require.False(t, retry.IsTransient(classify(&AuthenticationError{Message: "bad creds"})))
	require.True(t, retry.IsTransient(classify(&RateLimitError{Message: "slow down"})))
	require.True(t, retry.IsTransient(classify(&APIError{Message: "503 unavailable"})))
	require.False(t, retry.IsTransient(classify(&APIError{Message: "400 bad request"})))
}
