package provider

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/openai/openai-go/v3"
)

var doneSentinel = []byte("[DONE]")

// FrameReader splits a streamed response body into data frames.
//
// The body is newline-delimited: blank lines, "data: <payload>" lines and
// anything else (comments, event names), which is ignored.
type FrameReader struct {
	reader *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{reader: bufio.NewReader(r)}
}

// Next returns the payload of the next data frame, or io.EOF when the body
// ends.
func (f *FrameReader) Next() ([]byte, error) {
	for {
		line, err := f.reader.ReadBytes('\n')
		if payload, ok := framePayload(line); ok {
			// A final frame without trailing newline still counts.
			if err == nil || errors.Is(err, io.EOF) {
				return payload, nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

func framePayload(line []byte) ([]byte, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, false
	}
	payload, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return nil, false
	}
	payload = bytes.TrimPrefix(payload, []byte(" "))
	return payload, true
}

// IsDone reports whether payload is the terminal [DONE] sentinel.
func IsDone(payload []byte) bool {
	return bytes.Equal(bytes.TrimSpace(payload), doneSentinel)
}

// DecodeDelta extracts choices[0].delta.content from a chunk payload.
func DecodeDelta(payload []byte) (string, error) {
	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", err
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}
