package transcript

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yoockh/medscribe/internal/utils"
)

// Transcribe output: {"results":{"transcripts":[{"transcript":"..."}]}}
type awsDocument struct {
	Results *struct {
		Transcripts []struct {
			Transcript *string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// Speech-to-Text output: {"results":[{"alternatives":[{"transcript":"..."}]}]}
type googleResult struct {
	Alternatives []struct {
		Transcript string `json:"transcript"`
	} `json:"alternatives"`
}

// Extract returns the transcript text of a provider result document.
// Every level is checked before it is indexed.
func Extract(doc []byte) (string, error) {
	const op = "transcript.Extract"

	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return "", utils.FormatError(op, "result document is not a JSON object", err)
	}
	raw, ok := top["results"]
	if !ok || len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", utils.FormatError(op, "result document has no results", nil)
	}

	switch bytes.TrimSpace(raw)[0] {
	case '{':
		return extractAWS(doc)
	case '[':
		return extractGoogle(raw)
	default:
		return "", utils.FormatError(op, "results has unexpected type", nil)
	}
}

func extractAWS(doc []byte) (string, error) {
	const op = "transcript.extractAWS"

	var d awsDocument
	if err := json.Unmarshal(doc, &d); err != nil {
		return "", utils.FormatError(op, "malformed transcribe result", err)
	}
	if d.Results == nil || len(d.Results.Transcripts) == 0 {
		return "", utils.FormatError(op, "results.transcripts is missing or empty", nil)
	}
	first := d.Results.Transcripts[0].Transcript
	if first == nil {
		return "", utils.FormatError(op, "results.transcripts[0].transcript is missing", nil)
	}
	return *first, nil
}

func extractGoogle(raw json.RawMessage) (string, error) {
	const op = "transcript.extractGoogle"

	var results []googleResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return "", utils.FormatError(op, "malformed speech result", err)
	}
	if len(results) == 0 {
		return "", utils.FormatError(op, "results is empty", nil)
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		if len(r.Alternatives) == 0 {
			continue // silence segments carry no alternatives
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}
