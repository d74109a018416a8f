// Package answer provides Answerer implementations: given a question and the
// lesson's material, decide whether the material answers it and produce the
// answer text.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lectern/internal/logger"
	"lectern/pkg/interfaces"
)

const answerSystemPrompt = `You are a teaching assistant. You receive lesson slides and a student question.
Answer only from the slide content. Respond with JSON:
{"answer": string, "found": bool, "relevance": number between 0 and 1}.
Set found=false and relevance low when the slides do not cover the question.`

// OpenAI answers questions through an OpenAI-compatible chat completions
// endpoint, grounding the model on the lesson's slide text.
type OpenAI struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	bundles interfaces.BundleSource
	log     *logger.Logger
}

// NewOpenAI creates the adapter. bundles supplies the slide text used as
// material context.
func NewOpenAI(baseURL, model, apiKey string, bundles interfaces.BundleSource, log *logger.Logger) *OpenAI {
	return &OpenAI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
		bundles: bundles,
		log:     log.With("component", "answer.openai"),
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type answerPayload struct {
	Answer    string  `json:"answer"`
	Found     bool    `json:"found"`
	Relevance float64 `json:"relevance"`
}

// Answer asks the model whether the lesson material covers the question.
func (o *OpenAI) Answer(ctx context.Context, lessonID int64, question string) (string, bool, float64, error) {
	material := o.materialContext(lessonID)

	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Slides:\n%s\n\nQuestion: %s", material, question)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", false, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", false, 0, fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, 0, fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, 0, fmt.Errorf("parse chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", false, 0, fmt.Errorf("chat completion status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", false, 0, fmt.Errorf("chat completion returned no choices")
	}

	var payload answerPayload
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &payload); err != nil {
		return "", false, 0, fmt.Errorf("parse answer payload: %w", err)
	}
	if payload.Relevance < 0 {
		payload.Relevance = 0
	}
	if payload.Relevance > 1 {
		payload.Relevance = 1
	}

	o.log.Debug("question answered", "lesson_id", lessonID, "found", payload.Found, "relevance", payload.Relevance)
	return payload.Answer, payload.Found, payload.Relevance, nil
}

// materialContext concatenates the slide texts of the lesson's bundle. An
// unprocessed lesson yields an empty context; the model then reports
// found=false rather than inventing material.
func (o *OpenAI) materialContext(lessonID int64) string {
	bundle, err := o.bundles.Bundle(lessonID)
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for _, s := range bundle.Slides {
		fmt.Fprintf(&sb, "[slide %d] %s\n", s.Index+1, s.Text)
	}
	return sb.String()
}
