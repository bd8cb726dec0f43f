package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/pkg/logger"
	"ensemble-chat/backend/pkg/resilience"
)

// Client talks to the generation service over HTTP. Text completions arrive
// as a server-sent event stream whose events carry the cumulative text so
// far; everything else is plain request/response JSON.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger

	textBreaker  *resilience.CircuitBreaker
	mediaBreaker *resilience.CircuitBreaker
}

// ClientConfig holds the connection settings for the generation service.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a generation-service client. Media calls get a long
// timeout because video rendering is slow; the per-request context still
// bounds individual calls.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		log:          log,
		textBreaker:  resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("generation-text"), log),
		mediaBreaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("generation-media"), log),
	}
}

// streamEvent is one SSE payload from the text endpoint.
type streamEvent struct {
	Text  string `json:"text"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// StreamText drives one agent completion. Each SSE event replaces, not
// extends, the previously reported text.
func (c *Client) StreamText(ctx context.Context, req StreamTextRequest, onChunk ChunkFunc) (string, error) {
	var final string
	err := c.textBreaker.Execute(func() error {
		body, err := json.Marshal(req)
		if err != nil {
			return &GenerationError{Op: "stream_text", Err: err}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/text/stream", bytes.NewReader(body))
		if err != nil {
			return &GenerationError{Op: "stream_text", Err: err}
		}
		c.setHeaders(httpReq)
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return &GenerationError{Op: "stream_text", Message: "The character could not respond. Check your connection and try again.", Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return c.errorFromResponse("stream_text", resp)
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" || payload == "[DONE]" {
				continue
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				c.log.Warn("Skipping malformed stream event", "payload", payload, "error", err.Error())
				continue
			}
			if event.Error != "" {
				return &GenerationError{Op: "stream_text", Message: event.Error}
			}

			final = event.Text
			if onChunk != nil {
				onChunk(final)
			}
			if event.Done {
				break
			}
		}
		if err := scanner.Err(); err != nil {
			return &GenerationError{Op: "stream_text", Message: "The response stream was interrupted.", Err: err}
		}
		return nil
	})
	if err != nil {
		return "", wrapBreakerErr("stream_text", err)
	}
	return final, nil
}

// GenerateImage renders an image for the prompt. Reference images are inline
// data URIs used as visual anchors for the characters in the scene.
func (c *Client) GenerateImage(ctx context.Context, prompt string, referenceImages []string) (string, error) {
	var url string
	err := c.mediaBreaker.Execute(func() error {
		reqBody := map[string]any{
			"prompt":           prompt,
			"reference_images": referenceImages,
		}
		var respBody struct {
			URL string `json:"url"`
		}
		if err := c.postJSON(ctx, "/v1/images", "generate_image", reqBody, &respBody); err != nil {
			return err
		}
		url = respBody.URL
		return nil
	})
	if err != nil {
		return "", wrapBreakerErr("generate_image", err)
	}
	return url, nil
}

// GenerateVideo renders a short clip for the prompt.
func (c *Client) GenerateVideo(ctx context.Context, prompt string) (string, error) {
	var url string
	err := c.mediaBreaker.Execute(func() error {
		reqBody := map[string]any{"prompt": prompt}
		var respBody struct {
			URL string `json:"url"`
		}
		if err := c.postJSON(ctx, "/v1/videos", "generate_video", reqBody, &respBody); err != nil {
			return err
		}
		url = respBody.URL
		return nil
	})
	if err != nil {
		return "", wrapBreakerErr("generate_video", err)
	}
	return url, nil
}

// SummarizePlot condenses the transcript into a short scene summary used as
// a prompt for backgrounds and media.
func (c *Client) SummarizePlot(ctx context.Context, transcript []models.TranscriptLine, participantDescriptions []string) (string, error) {
	var summary string
	err := c.textBreaker.Execute(func() error {
		reqBody := map[string]any{
			"transcript":               transcript,
			"participant_descriptions": participantDescriptions,
		}
		var respBody struct {
			Summary string `json:"summary"`
		}
		if err := c.postJSON(ctx, "/v1/plot/summary", "summarize_plot", reqBody, &respBody); err != nil {
			return err
		}
		summary = respBody.Summary
		return nil
	})
	if err != nil {
		return "", wrapBreakerErr("summarize_plot", err)
	}
	return summary, nil
}

// SynthesizeSpeech returns encoded audio for the text. A 204 from the
// service means no audio is available for that voice; callers get nil, nil.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	reqBody := map[string]any{"text": text, "voice_id": voiceID}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &GenerationError{Op: "synthesize_speech", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/speech", bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Op: "synthesize_speech", Err: err}
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GenerationError{Op: "synthesize_speech", Message: "Speech synthesis is unavailable right now.", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse("synthesize_speech", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GenerationError{Op: "synthesize_speech", Err: err}
	}
	return audio, nil
}

// AnalyzeEvolution asks for an updated long-term memory summary for an agent.
func (c *Client) AnalyzeEvolution(ctx context.Context, req EvolutionRequest) (string, error) {
	var evolved string
	err := c.textBreaker.Execute(func() error {
		var respBody struct {
			EvolutionContext string `json:"evolution_context"`
		}
		if err := c.postJSON(ctx, "/v1/evolution", "analyze_evolution", req, &respBody); err != nil {
			return err
		}
		evolved = respBody.EvolutionContext
		return nil
	})
	if err != nil {
		return "", wrapBreakerErr("analyze_evolution", err)
	}
	return evolved, nil
}

func (c *Client) postJSON(ctx context.Context, path, op string, reqBody, respBody any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return &GenerationError{Op: op, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &GenerationError{Op: op, Err: err}
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &GenerationError{Op: op, Message: "The generation service is unreachable.", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.errorFromResponse(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return &GenerationError{Op: op, Err: fmt.Errorf("error decoding response: %v", err)}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) errorFromResponse(op string, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))

	var svcErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(bodyBytes, &svcErr); err == nil && svcErr.Error != "" {
		return &GenerationError{Op: op, Message: svcErr.Error}
	}

	c.log.Warn("Generation service returned an error",
		"op", op,
		"status", resp.StatusCode,
		"body", string(bodyBytes),
	)
	return &GenerationError{
		Op:      op,
		Message: fmt.Sprintf("The generation service failed with status %d.", resp.StatusCode),
	}
}

// wrapBreakerErr normalizes circuit-breaker short-circuits into the
// GenerationError taxonomy so callers see one failure type.
func wrapBreakerErr(op string, err error) error {
	if _, ok := AsGenerationError(err); ok {
		return err
	}
	return &GenerationError{Op: op, Message: "The generation service is temporarily unavailable.", Err: err}
}
