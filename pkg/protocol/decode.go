package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// Parses a received payload (UTF-8 JSON text) into a document
func Decode(payload []byte) (doc Document, err error) {
	if !utf8.Valid(payload) {
		offset := firstInvalidRune(payload)
		err = &DecodeError{
			Offset: offset,
			Window: contextWindow(payload, offset),
			Reason: "payload is not valid UTF-8",
		}
		return
	}

	var tree any
	jsonErr := json.Unmarshal(payload, &tree)
	if jsonErr != nil {
		offset := len(payload)
		var syntaxErr *json.SyntaxError
		if errors.As(jsonErr, &syntaxErr) {
			// SyntaxError.Offset counts the bytes read including the offending one
			offset = int(syntaxErr.Offset) - 1
		}
		offset = max(0, min(offset, len(payload)))

		err = &DecodeError{
			Offset: offset,
			Window: contextWindow(payload, offset),
			Reason: jsonErr.Error(),
			Err:    jsonErr,
		}
		return
	}

	doc = Document{
		raw:  append([]byte(nil), payload...),
		tree: tree,
	}
	return
}

// Two line rendering of the failure: surrounding text and a caret under its midpoint
func (err *DecodeError) Diagnostic() (text string) {
	caretIndent := utf8.RuneCountInString(err.Window)/2 + len(windowPrefix)
	text = windowPrefix + err.Window + "\n" + strings.Repeat(" ", caretIndent) + caretMarker
	return
}

// Extracts up to windowRadius characters either side of the byte offset, flattened to one line
func contextWindow(payload []byte, offset int) (window string) {
	offset = max(0, min(offset, len(payload)))
	runes := []rune(string(payload))
	index := utf8.RuneCount(payload[:offset])

	start := max(0, index-windowRadius)
	stop := min(len(runes), index+windowRadius)
	if start >= stop {
		return
	}

	window = string(runes[start:stop])
	window = strings.ReplaceAll(window, "\r", "")
	window = strings.ReplaceAll(window, "\n", " ")
	return
}

func firstInvalidRune(payload []byte) (offset int) {
	for offset < len(payload) {
		r, size := utf8.DecodeRune(payload[offset:])
		if r == utf8.RuneError && size <= 1 {
			return
		}
		offset += size
	}
	return
}
