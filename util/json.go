// util/json.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DuplicateJSONKey represents a key that appears more than once in the
// same JSON object.
type DuplicateJSONKey struct {
	Path string // dotted path to the enclosing object, e.g. "drones.pid"
	Key  string
}

// FindDuplicateJSONKeys walks the token stream of data and returns every
// key that repeats within a single object. encoding/json silently keeps
// the last value, which hides typos in hand-edited flight files.
func FindDuplicateJSONKeys(data []byte) []DuplicateJSONKey {
	dec := json.NewDecoder(bytes.NewReader(data))
	var duplicates []DuplicateJSONKey

	type level struct {
		object    bool
		seen      map[string]bool
		expectKey bool
		popPath   bool // this container is the value of a key
	}
	var stack []level
	var path []string

	// valueDone is called after a complete value; if it was the value of
	// an object member, the member's key is popped from the path.
	valueDone := func() {
		if len(stack) > 0 && stack[len(stack)-1].object {
			stack[len(stack)-1].expectKey = true
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{', '[':
				isValue := len(stack) > 0 && stack[len(stack)-1].object && !stack[len(stack)-1].expectKey
				l := level{object: v == '{', popPath: isValue}
				if l.object {
					l.seen = make(map[string]bool)
					l.expectKey = true
				}
				stack = append(stack, l)
			case '}', ']':
				if len(stack) == 0 {
					break
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.popPath {
					valueDone()
				}
			}
		case string:
			if len(stack) > 0 && stack[len(stack)-1].object && stack[len(stack)-1].expectKey {
				top := &stack[len(stack)-1]
				if top.seen[v] {
					duplicates = append(duplicates, DuplicateJSONKey{Path: strings.Join(path, "."), Key: v})
				}
				top.seen[v] = true
				top.expectKey = false
				path = append(path, v)
			} else {
				valueDone()
			}
		default:
			valueDone()
		}
	}

	return duplicates
}

// UnmarshalJSONBytes unmarshals b into out, reporting the line and
// character of syntax and type errors.
func UnmarshalJSONBytes[T any](b []byte, out *T) error {
	err := json.Unmarshal(b, out)
	if err == nil {
		return nil
	}

	decodeOffset := func(offset int64) (line, char int) {
		line, char = 1, 1
		for i := 0; i < int(offset) && i < len(b); i++ {
			if b[i] == '\n' {
				line++
				char = 1
			} else {
				char++
			}
		}
		return
	}

	switch jerr := err.(type) {
	case *json.SyntaxError:
		line, char := decodeOffset(jerr.Offset)
		return fmt.Errorf("line %d, character %d: %w", line, char, jerr)

	case *json.UnmarshalTypeError:
		line, char := decodeOffset(jerr.Offset)
		return fmt.Errorf("line %d, character %d: %s value for %s.%s invalid for type %s",
			line, char, jerr.Value, jerr.Struct, jerr.Field, jerr.Type.String())

	default:
		return err
	}
}
