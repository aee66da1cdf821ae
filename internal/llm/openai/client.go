package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

// Complete streams a chat completion and returns the concatenated deltas.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	creq := goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toMessages(req),
		Temperature: temperature(req.Temperature),
	}
	if req.JSONMode {
		creq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	c.logger.Info("llm.openai.request",
		"req_id", rid,
		"model", c.cfg.Model,
		"messages", len(creq.Messages),
		"json_mode", req.JSONMode,
	)

	stream, err := c.api.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		c.logger.Error("llm.openai.stream_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("openai: %w", err)
	}
	defer stream.Close()

	var b strings.Builder
	fragments := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.logger.Error("llm.openai.recv_error",
				"req_id", rid, "error", err, "fragments", fragments,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return "", fmt.Errorf("openai stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		b.WriteString(resp.Choices[0].Delta.Content)
		fragments++
	}

	c.logger.Info("llm.openai.response",
		"req_id", rid,
		"fragments", fragments,
		"bytes", b.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b.String(), nil
}

func toMessages(req llm.CompletionRequest) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := goopenai.ChatMessageRoleUser
		if m.Role == llm.RoleModel {
			role = goopenai.ChatMessageRoleAssistant
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// temperature works around omitempty on the request field: a literal 0 is dropped from
// the payload and the API then applies its default of 1.
func temperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
