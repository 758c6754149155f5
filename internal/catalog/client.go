// Package catalog is a synchronous RPC client over a third-party subtitle
// catalog (spec.md §4.3). It speaks a minimal XML-RPC subset directly
// over net/http, since no library in the retrieved example pack carries
// an XML-RPC client (see DESIGN.md).
package catalog

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yairabf/submitter/internal/config"
	"github.com/yairabf/submitter/internal/retry"
)

// SubtitleResult is a single catalog search hit.
type SubtitleResult struct {
	SubtitleID string
	Language   string
	FileName   string
}

// Client wraps the subtitle catalog's XML-RPC API, holding an opaque
// session token after a successful Connect.
type Client struct {
	cfg        config.CatalogConfig
	httpClient *http.Client
	retry      *retry.Engine

	token string
}

// New builds a Client. It does not authenticate; call Connect first.
func New(cfg config.CatalogConfig, retryEngine *retry.Engine) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		retry:      retryEngine,
	}
}

// Connect authenticates and stores the session token.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return &AuthenticationError{Message: "no credentials configured"}
	}

	return c.retry.Do(ctx, "catalog.connect", func(ctx context.Context) error {
		result, err := c.call(ctx, "LogIn",
			stringValue(c.cfg.Username),
			stringValue(c.cfg.Password),
			stringValue("en"),
			stringValue(c.cfg.UserAgent),
		)
		if err != nil {
			return classify(err)
		}
		if result.status() != "" && !strings.HasPrefix(result.status(), "200") {
			return retry.Permanent("catalog.connect", "login rejected", &AuthenticationError{Message: result.status()})
		}
		token := result.stringField("token")
		if token == "" {
			return retry.Permanent("catalog.connect", "no token in response", &AuthenticationError{Message: "empty token"})
		}
		c.token = token
		slog.Info("catalog client connected", "component", "catalog")
		return nil
	})
}

// Disconnect clears the session token.
func (c *Client) Disconnect() {
	c.token = ""
}

// Search looks up subtitles by IMDB ID and/or free-text query.
func (c *Client) Search(ctx context.Context, imdbID, query string, languages []string) ([]SubtitleResult, error) {
	if c.token == "" {
		return nil, &APIError{Message: "not authenticated"}
	}
	criteria := map[string]xmlrpcValue{}
	if imdbID != "" {
		criteria["imdbid"] = stringValue(imdbID)
	}
	if query != "" {
		criteria["query"] = stringValue(query)
	}
	if len(languages) > 0 {
		criteria["sublanguageid"] = stringValue(strings.Join(languages, ","))
	}
	return c.search(ctx, "catalog.search", structValue(criteria))
}

// SearchByHash looks up subtitles by file hash and size, the preferred
// match strategy when available (spec.md §4.9).
func (c *Client) SearchByHash(ctx context.Context, hash string, fileSize int64, languages []string) ([]SubtitleResult, error) {
	if c.token == "" {
		return nil, &APIError{Message: "not authenticated"}
	}
	criteria := map[string]xmlrpcValue{
		"moviehash":     stringValue(hash),
		"moviebytesize": stringValue(fmt.Sprintf("%d", fileSize)),
	}
	if len(languages) > 0 {
		criteria["sublanguageid"] = stringValue(strings.Join(languages, ","))
	}
	return c.search(ctx, "catalog.search_by_hash", structValue(criteria))
}

func (c *Client) search(ctx context.Context, op string, criteria xmlrpcValue) ([]SubtitleResult, error) {
	var results []SubtitleResult
	err := c.retry.Do(ctx, op, func(ctx context.Context) error {
		result, err := c.call(ctx, "SearchSubtitles", stringValue(c.token), arrayValue(criteria))
		if err != nil {
			return classify(err)
		}
		if !strings.HasPrefix(result.status(), "200") {
			return classify(&APIError{Message: result.status()})
		}
		data, _ := result.field("data")
		results = parseSearchResults(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func parseSearchResults(v xmlrpcValue) []SubtitleResult {
	if v.Array == nil {
		return nil
	}
	results := make([]SubtitleResult, 0, len(v.Array.Data.Values))
	for _, entry := range v.Array.Data.Values {
		if entry.Struct == nil {
			continue
		}
		results = append(results, SubtitleResult{
			SubtitleID: entry.Struct.stringField("IDSubtitleFile"),
			Language:   entry.Struct.stringField("SubLanguageID"),
			FileName:   entry.Struct.stringField("SubFileName"),
		})
	}
	return results
}

// Download fetches subtitleID's content (base64+gzip encoded on the
// wire), decodes it, and writes it to outputPath, creating parent
// directories as needed. It returns the final path written.
func (c *Client) Download(ctx context.Context, subtitleID, outputPath string) (string, error) {
	if c.token == "" {
		return "", &APIError{Message: "not authenticated"}
	}

	var written string
	err := c.retry.Do(ctx, "catalog.download", func(ctx context.Context) error {
		result, err := c.call(ctx, "DownloadSubtitles", stringValue(c.token), arrayValue(stringValue(subtitleID)))
		if err != nil {
			return classify(err)
		}
		if !strings.HasPrefix(result.status(), "200") {
			return classify(&APIError{Message: result.status()})
		}
		data, ok := result.field("data")
		if !ok || data.Array == nil || len(data.Array.Data.Values) == 0 {
			return retry.Permanent("catalog.download", "no subtitle data in response", &APIError{Message: "empty data array"})
		}
		entry := data.Array.Data.Values[0]
		if entry.Struct == nil {
			return retry.Permanent("catalog.download", "malformed subtitle data entry", &APIError{Message: "expected struct"})
		}
		encoded := entry.Struct.stringField("data")

		content, err := decodeSubtitleContent(encoded)
		if err != nil {
			return retry.Permanent("catalog.download", "decode subtitle content", err)
		}

		if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
			return fmt.Errorf("catalog: create output directory: %w", err)
		}
		if err := os.WriteFile(outputPath, content, 0o644); err != nil {
			return fmt.Errorf("catalog: write subtitle file: %w", err)
		}
		written = outputPath
		return nil
	})
	if err != nil {
		return "", err
	}
	return written, nil
}

func decodeSubtitleContent(encoded string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer reader.Close()
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	return content, nil
}

// classify wraps a raw catalog error (Authentication/RateLimit/API) in
// the retry engine's tagged error so Engine.Do knows whether to retry.
func classify(err error) error {
	switch e := err.(type) {
	case *AuthenticationError:
		return retry.Permanent("catalog", "authentication", e)
	case *RateLimitError:
		return retry.Transient("catalog", "rate limited", e)
	case *APIError:
		if e.IsTransient() {
			return retry.Transient("catalog", "api error", e)
		}
		return retry.Permanent("catalog", "api error", e)
	default:
		return retry.Transient("catalog", "unclassified", err)
	}
}
