package channel

import (
	"encoding/json"
	"strings"
)

// streamLine is the subset of Claude Code's `--output-format stream-json`
// NDJSON envelope this parser cares about.
type streamLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Message struct {
		Content []struct {
			Type  string `json:"type"`
			Text  string `json:"text"`
			Name  string `json:"name"`
			Input any    `json:"input"`
		} `json:"content"`
	} `json:"message"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// ParsedLine is one classified line of streamed output.
type ParsedLine struct {
	Text              string
	IsResponseContent bool
}

// ParseStreamLine classifies a single NDJSON line into response-content
// text (assistant deltas) or a progress label (tool use, thinking).
// Unrecognized or non-JSON lines yield ok=false.
func ParseStreamLine(line string) (ParsedLine, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ParsedLine{}, false
	}

	var parsed streamLine
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return ParsedLine{}, false
	}

	switch parsed.Type {
	case "assistant":
		var text strings.Builder
		var progress strings.Builder
		for _, block := range parsed.Message.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.Text)
			case "tool_use":
				progress.WriteString("using tool: " + block.Name)
			}
		}
		if text.Len() > 0 {
			return ParsedLine{Text: text.String(), IsResponseContent: true}, true
		}
		if progress.Len() > 0 {
			return ParsedLine{Text: progress.String()}, true
		}
		return ParsedLine{}, false
	case "system":
		if parsed.Subtype != "" {
			return ParsedLine{Text: "system: " + parsed.Subtype}, true
		}
		return ParsedLine{}, false
	default:
		return ParsedLine{}, false
	}
}

// ParsedResponse is the final assistant text and token accounting
// extracted from a completed process's stdout/stderr.
type ParsedResponse struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
}

// ParseResponse scans every NDJSON line of stdout for the final "result"
// event (which carries cumulative usage) and concatenates assistant text
// blocks into the final message. stderr is only consulted to enrich an
// otherwise-empty result.
func ParseResponse(stdout, stderr string) ParsedResponse {
	var text strings.Builder
	var resp ParsedResponse

	for _, line := range strings.Split(stdout, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		var parsed streamLine
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			continue
		}

		switch parsed.Type {
		case "assistant":
			for _, block := range parsed.Message.Content {
				if block.Type == "text" {
					text.WriteString(block.Text)
				}
			}
		case "result":
			resp.InputTokens = parsed.Usage.InputTokens
			resp.OutputTokens = parsed.Usage.OutputTokens
		}
	}

	resp.Content = text.String()
	if resp.Content == "" && strings.TrimSpace(stderr) != "" {
		resp.Content = strings.TrimSpace(stderr)
	}

	return resp
}
