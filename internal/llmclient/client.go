// Package llmclient wraps a remote chat-completion API for subtitle
// translation (spec.md §4.4). It talks to the API through
// sashabaranov/go-openai, the chat-completion client used across the
// retrieved example pack (haasonsaas-nexus, fanjia1024-Aetheris).
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/yairabf/submitter/internal/config"
	"github.com/yairabf/submitter/internal/retry"
)

// Client translates batches of subtitle text via a chat-completion model.
type Client struct {
	cfg    config.LLMConfig
	api    *openai.Client
	retry  *retry.Engine
	omitTemperature bool
}

// New builds a Client from cfg. Models whose name contains "nano" only
// accept the default temperature, so the temperature field is omitted
// from every request to them (spec.md §4.4).
func New(cfg config.LLMConfig, retryEngine *retry.Engine) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}
	return &Client{
		cfg:             cfg,
		api:             openai.NewClientWithConfig(apiConfig),
		retry:           retryEngine,
		omitTemperature: strings.Contains(strings.ToLower(cfg.Model), "nano"),
	}
}

// Result is the outcome of a TranslateBatch call. ParsedNumbers is non-nil
// only when exactly one translation was missing from the response and the
// caller must back-fill the gap with the original text (spec.md §4.5).
type Result struct {
	Translations  []string
	ParsedNumbers []int
}

// TranslateBatch translates texts as a single chat-completion request,
// preserving their order and 1-based numbering end to end.
func (c *Client) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) (*Result, error) {
	var result *Result
	err := c.retry.Do(ctx, "llmclient.translate_batch", func(ctx context.Context) error {
		req := c.buildRequest(texts, sourceLang, targetLang)

		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(reqCtx, req)
		if err != nil {
			return classify(err)
		}

		content, err := c.extractContent(resp, len(texts))
		if err != nil {
			return err
		}

		translations, parsedNumbers, err := parseTranslationResponse(content, len(texts))
		if err != nil {
			return err
		}
		result = &Result{Translations: translations, ParsedNumbers: parsedNumbers}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) buildRequest(texts []string, sourceLang, targetLang string) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(sourceLang, targetLang)},
			{Role: openai.ChatMessageRoleUser, Content: buildTranslationPrompt(texts, sourceLang, targetLang)},
		},
		MaxCompletionTokens: c.cfg.MaxCompletionTokens,
	}
	if !c.omitTemperature {
		req.Temperature = c.cfg.Temperature
	}
	return req
}

// classify wraps a chat-completion transport error in the retry engine's
// tagged error, dispatching on the API's HTTP status code the same way
// internal/catalog.classify dispatches on its own error taxonomy
// (spec.md §4.2: authentication/4xx are permanent, 429/5xx and
// network/timeout errors are transient).
func classify(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return retry.Transient("llmclient.translate_batch", "chat completion transport error", err)
	}
	switch {
	case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
		return retry.Permanent("llmclient.translate_batch", "authentication failed", apiErr)
	case apiErr.HTTPStatusCode == 429:
		return retry.Transient("llmclient.translate_batch", "rate limited", apiErr)
	case apiErr.HTTPStatusCode >= 500:
		return retry.Transient("llmclient.translate_batch", "server error", apiErr)
	case apiErr.HTTPStatusCode >= 400:
		return retry.Permanent("llmclient.translate_batch", "client error", apiErr)
	default:
		return retry.Transient("llmclient.translate_batch", "chat completion request failed", apiErr)
	}
}

func systemPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(
		"You are a professional subtitle translator specializing in natural, idiomatic "+
			"translations from %s to %s. Translate complete sentences and phrases naturally, "+
			"not word-by-word. Use idiomatic expressions appropriate for %s and adapt cultural "+
			"references so they read naturally. Preserve all inline markup (like <i>, <b>, <u>) "+
			"exactly as it appears, translating only the text content inside it.",
		sourceLang, targetLang, targetLang,
	)
}

// buildTranslationPrompt numbers every input with a 1-based index and asks
// for a reply in the identical numbered format with no commentary
// (spec.md §4.4 step 1-2).
func buildTranslationPrompt(texts []string, sourceLang, targetLang string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following %d subtitle segments from %s to %s.\n\n", len(texts), sourceLang, targetLang)
	sb.WriteString("Preserve inline markup exactly, adapt idiom rather than translating word-for-word, ")
	sb.WriteString("and reply using the identical numbered format with no additional commentary.\n\n")
	sb.WriteString("Format your response exactly like this:\n[1]\ntranslation\n\n[2]\ntranslation\n\netc.\n\n")
	sb.WriteString("Subtitles to translate:\n\n")
	for i, text := range texts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d]\n%s", i+1, text)
	}
	return sb.String()
}

// extractContent implements the three anomalous-completion branches of
// spec.md §4.4 step 4.
func (c *Client) extractContent(resp openai.ChatCompletionResponse, expectedCount int) (string, error) {
	if len(resp.Choices) == 0 {
		return "", retry.Permanent("llmclient.translate_batch", "no choices in response", fmt.Errorf("empty choices"))
	}
	choice := resp.Choices[0]
	content := choice.Message.Content

	if choice.FinishReason == openai.FinishReasonLength {
		if content == "" {
			return "", c.truncatedEmptyError(resp, expectedCount)
		}
		slog.Warn("llm response truncated but non-empty, proceeding",
			"component", "llmclient", "finish_reason", choice.FinishReason, "content_length", len(content))
		return content, nil
	}

	if content == "" {
		return "", retry.Permanent("llmclient.translate_batch", "empty content",
			fmt.Errorf("finish_reason=%s", choice.FinishReason))
	}
	return content, nil
}

// truncatedEmptyError detects the reasoning-model pathology where
// reasoning tokens consume the entire completion budget, leaving no room
// for visible output (spec.md §4.4 step 4, second bullet).
func (c *Client) truncatedEmptyError(resp openai.ChatCompletionResponse, expectedCount int) error {
	usage := resp.Usage
	var reasoningTokens int
	if usage.CompletionTokensDetails != nil {
		reasoningTokens = usage.CompletionTokensDetails.ReasoningTokens
	}

	if reasoningTokens > 0 && usage.CompletionTokens > 0 && reasoningTokens >= int(float64(usage.CompletionTokens)*0.9) {
		return retry.Permanent("llmclient.translate_batch", "reasoning tokens consumed entire completion budget",
			fmt.Errorf("%d/%d completion tokens spent on reasoning (model %q, %d segments); "+
				"increase max completion tokens, reduce chunk size, or switch to a non-reasoning model",
				reasoningTokens, usage.CompletionTokens, c.cfg.Model, expectedCount))
	}

	return retry.Permanent("llmclient.translate_batch", "response truncated with empty content",
		fmt.Errorf("finish_reason=length, completion_tokens=%d, %d segments requested", usage.CompletionTokens, expectedCount))
}

// parseTranslationResponse splits on "[", extracting "[n]\n..." blocks, and
// applies the single-segment tolerance rule of spec.md §4.5/§4.4 step 6.
func parseTranslationResponse(content string, expectedCount int) ([]string, []int, error) {
	var translations []string
	var parsedNumbers []int

	for _, segment := range strings.Split(content, "[") {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		parts := strings.SplitN(segment, "]", 2)
		if len(parts) != 2 {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		translations = append(translations, strings.TrimSpace(parts[1]))
		parsedNumbers = append(parsedNumbers, number)
	}

	if len(translations) == expectedCount {
		return translations, nil, nil
	}

	missing := expectedCount - len(translations)
	if missing == 1 {
		slog.Warn("translation response missing one segment, using tolerance rule",
			"component", "llmclient", "expected", expectedCount, "parsed", len(translations))
		return translations, parsedNumbers, nil
	}

	slog.Warn("translation response count mismatch",
		"component", "llmclient", "expected", expectedCount, "parsed", len(translations))
	return nil, nil, retry.Transient("llmclient.translate_batch", "translation count mismatch", retry.ErrTranslationCountMismatch)
}
