// Package llm talks to an OpenAI-compatible chat-completions endpoint
// (LM Studio by default) to derive meeting titles, summaries, and
// sentiment analysis. Every call degrades to a fallback string on failure;
// nothing here ever returns an error to its caller.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// FallbackTitle is used when title derivation fails or returns nothing.
const FallbackTitle = "Team Discussion"

const (
	titleTimeout    = 30 * time.Second
	summaryTimeout  = 60 * time.Second
	analysisTimeout = 30 * time.Second
)

// Client is a stateless requestor against one chat-completions endpoint.
type Client struct {
	apiURL string
	model  string
	client *http.Client
}

// New creates a Client for the endpoint at apiURL using the given model id.
func New(apiURL, model string) *Client {
	return &Client{
		apiURL: apiURL,
		model:  model,
		// Per-call deadlines are set with context timeouts; the client
		// timeout is a ceiling matching the longest call.
		client: &http.Client{Timeout: summaryTimeout + 5*time.Second},
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

// complete performs one chat call and returns the trimmed assistant text.
func (c *Client) complete(ctx context.Context, timeout time.Duration, system, user string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// DeriveTitle asks for a short descriptive title for the conversation
// excerpt. Any failure yields FallbackTitle; meeting finalization must
// never block on this.
func (c *Client) DeriveTitle(ctx context.Context, excerpt string) string {
	prompt := fmt.Sprintf(`Based on the following conversation, generate a short, descriptive title (max 5-6 words) that captures the main topic or purpose of the discussion. Return ONLY the title without any additional text.

Conversation:
%s

Title:`, excerpt)

	title, err := c.complete(ctx, titleTimeout,
		"You are a helpful assistant that creates concise, descriptive titles for conversations.",
		prompt, 50)
	if err != nil {
		slog.Warn("title derivation failed, using fallback", "error", err)
		return FallbackTitle
	}

	title = strings.Trim(title, `"'`)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return FallbackTitle
	}
	return title
}

// Summarize produces a structured markdown summary of the conversation.
// On failure it returns a placeholder embedding the reason.
func (c *Client) Summarize(ctx context.Context, conversation, title string) string {
	prompt := fmt.Sprintf(`Please analyze this meeting conversation and provide a comprehensive summary using proper markdown formatting:

**Meeting:** %s

**Conversation:**
%s

Please provide a structured summary with the following sections using markdown headers (## for main sections, ### for subsections):

## Meeting Summary
- Brief overview of the main discussion points

## Key Topics Discussed
- List the main topics covered in the conversation

## Decisions Made
- Important decisions or agreements reached

## Action Items
- Specific tasks with responsible persons if mentioned
- Include deadlines if discussed

## Next Steps
- Future plans and follow-up actions

## Important Points
- Notable insights or critical information shared

Format the response using proper markdown with headers, bullet points, and clear organization.`, title, conversation)

	summary, err := c.complete(ctx, summaryTimeout,
		"You are a professional meeting assistant. Provide clear, structured summaries using markdown formatting with headers (## for main sections), bullet points, and organized sections.",
		prompt, 1500)
	if err != nil {
		slog.Warn("summary generation failed, returning placeholder", "error", err)
		return fmt.Sprintf("## Summary Unavailable\nUnable to generate summary due to: %v\n\n**Meeting was recorded successfully. You can generate the summary later.**", err)
	}
	return summary
}

// Analyze produces a markdown sentiment and dynamics analysis of the
// conversation, with the same failure policy as Summarize.
func (c *Client) Analyze(ctx context.Context, conversation string) string {
	prompt := fmt.Sprintf(`Analyze the following conversation and provide insights about:

**Conversation Dynamics**
- Overall tone and sentiment
- Participation balance
- Communication style

**Key Emotional Themes**
- Predominant emotions detected
- Mood shifts if any
- Engagement level

**Interaction Patterns**
- Collaborative or confrontational elements
- Leadership emergence
- Decision-making style

Conversation:
%s

Provide the analysis in markdown format with clear sections.`, conversation)

	analysis, err := c.complete(ctx, analysisTimeout,
		"You are an expert in conversational analysis. Provide insightful observations using markdown formatting.",
		prompt, 800)
	if err != nil {
		slog.Warn("analysis generation failed, returning placeholder", "error", err)
		return fmt.Sprintf("## Analysis Unavailable\nUnable to generate analysis due to: %v", err)
	}
	return analysis
}
