package composer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultModel = "gpt-4o-mini"

// OpenAIComposer implements Composer against any OpenAI-compatible
// chat completions API (OpenAI, Groq, OpenRouter, DeepSeek, etc.)
type OpenAIComposer struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
}

// NewOpenAI creates a composer for the given endpoint. An empty
// apiBase falls back to the OpenAI API; an empty model falls back to
// a small default.
func NewOpenAI(apiKey, apiBase, model string) *OpenAIComposer {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if model == "" {
		model = defaultModel
	}
	return &OpenAIComposer{
		apiKey:  apiKey,
		apiBase: strings.TrimRight(apiBase, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Compose builds the prompt, calls the chat API, and parses the copy
// out of the response. Transient upstream errors (429, 5xx) get one
// retry with a short backoff.
func (c *OpenAIComposer) Compose(ctx context.Context, req Request) (Draft, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    buildMessages(req),
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return Draft{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Draft{}, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}

		content, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			return parseDraft(content, req.Channel), nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return Draft{}, lastErr
}

func (c *OpenAIComposer) doRequest(ctx context.Context, body []byte) (content string, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", true, fmt.Errorf("composer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("composer status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", false, fmt.Errorf("composer returned empty completion")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

func buildMessages(req Request) []chatMessage {
	var sys strings.Builder
	sys.WriteString("You write short, warm outreach messages on behalf of a ")
	sys.WriteString(req.AgentType)
	sys.WriteString(" agent for a customer relationship platform.\n")
	sys.WriteString("Message purpose: ")
	sys.WriteString(strings.ReplaceAll(req.Kind, "_", " "))
	sys.WriteString(".\n")
	if req.Channel == "sms" {
		sys.WriteString("Write for SMS: at most 2 sentences, no subject line, no links unless asked.\n")
	} else {
		sys.WriteString("Write for email. Put the subject on the first line prefixed with 'Subject: ', then a blank line, then the body.\n")
	}
	sys.WriteString("Never mention that you are automated. Do not use placeholders.")

	var usr strings.Builder
	if req.Contact.FirstName != "" {
		fmt.Fprintf(&usr, "Contact first name: %s\n", req.Contact.FirstName)
	}
	if req.Context != "" {
		fmt.Fprintf(&usr, "Situation: %s\n", req.Context)
	}
	if len(req.History) > 0 {
		usr.WriteString("Recent conversation, oldest first:\n")
		for _, h := range req.History {
			fmt.Fprintf(&usr, "- %s: %s\n", h.Role, h.Body)
		}
	}
	usr.WriteString("Write the message now.")

	return []chatMessage{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: usr.String()},
	}
}

// parseDraft splits a "Subject: ..." first line off email copy. SMS
// copy is used verbatim.
func parseDraft(content, channel string) Draft {
	content = strings.TrimSpace(content)
	if channel != "email" {
		return Draft{Body: content}
	}

	lines := strings.SplitN(content, "\n", 2)
	if strings.HasPrefix(strings.ToLower(lines[0]), "subject:") {
		subject := strings.TrimSpace(lines[0][len("subject:"):])
		body := ""
		if len(lines) > 1 {
			body = strings.TrimSpace(lines[1])
		}
		return Draft{Subject: subject, Body: body}
	}
	return Draft{Body: content}
}
