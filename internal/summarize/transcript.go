// Package summarize turns a session transcript into a short stored summary.
// The work runs in a detached background process so the session-end hook
// returns immediately.
package summarize

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// minFragment is the shortest fragment worth keeping; shorter ones are
// mostly streaming noise ("OK.", "Done").
const minFragment = 10

type transcriptEntry struct {
	Type    string `json:"type"`
	Message struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ExtractTranscript reads a JSONL transcript file. A missing file yields an
// empty string and no error.
func ExtractTranscript(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("summarize: open transcript: %w", err)
	}
	defer f.Close()
	return ParseTranscript(f)
}

// ParseTranscript renders the user and assistant turns of a transcript as
// "role: text" lines. Tool calls, tool results and thinking blocks are
// dropped, as are consecutive duplicates and undecodable lines.
func ParseTranscript(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	var (
		lines []string
		last  string
	)
	for {
		raw, err := br.ReadBytes('\n')
		if len(raw) > 0 {
			if text, role := decodeTurn(raw); text != "" && text != last {
				last = text
				lines = append(lines, role+": "+text)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("summarize: read transcript: %w", err)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func decodeTurn(raw []byte) (text, role string) {
	var entry transcriptEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", ""
	}
	if entry.Type != "user" && entry.Type != "assistant" {
		return "", ""
	}

	role = entry.Message.Role
	if role == "" {
		role = entry.Type
	}

	text = contentText(entry.Message.Content)
	if utf8.RuneCountInString(text) <= minFragment {
		return "", ""
	}
	return text, role
}

func contentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type != "text" {
			continue
		}
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
