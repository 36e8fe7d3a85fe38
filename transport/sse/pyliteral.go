// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sse

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-json-experiment/json"
)

var errUnterminatedString = errors.New("unterminated string literal")

// pythonLiteralToJSON rewrites a Python dict or list literal into JSON.
//
// Single and double quoted strings are re-quoted as JSON strings, and the
// True, False and None constants become true, false and null. Numbers and
// punctuation are copied through, so only literals made of these types convert.
func pythonLiteralToJSON(src string) (string, error) {
	var out strings.Builder
	out.Grow(len(src))

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			s, n, err := readPythonString(src[i:])
			if err != nil {
				return "", err
			}
			quoted, err := json.Marshal(s)
			if err != nil {
				return "", err
			}
			out.Write(quoted)
			i += n

		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			switch word := src[i:j]; word {
			case "True":
				out.WriteString("true")
			case "False":
				out.WriteString("false")
			case "None":
				out.WriteString("null")
			default:
				out.WriteString(word)
			}
			i = j

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), nil
}

// readPythonString decodes the quoted string at the start of s and returns it
// with the number of bytes consumed.
func readPythonString(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); {
		c := s[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(s):
			switch e := s[i+1]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(e)
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
			i += 2
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size
		}
	}
	return "", 0, errUnterminatedString
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
