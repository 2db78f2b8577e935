// Package parser turns a raw command line into a command tree. The supported
// grammar is a single simple command, with optional arguments and leading
// environment bindings, followed by zero or more pipe redirects to further
// simple commands. Anything else is rejected with a ParseError.
package parser

import (
	"strings"

	"github.com/askiada/wapm-shell/pkg/shell/model"
)

// ParseError describes a malformed or unsupported command line. Its message
// is short and suitable for the shell's diagnostic surface.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return e.Msg
}

func parseErrorf(msg string) error {
	return &ParseError{Msg: msg}
}

// Parse parses a command line into a chain of commands linked by pipe
// redirects. It fails when the line holds more than one statement or when a
// pipeline stage is not a simple command invocation.
func Parse(line string) (*model.Command, error) {
	stages, err := splitPipeline(line)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, parseErrorf("missing command")
	}

	var head, tail *model.Command
	for _, stage := range stages {
		cmd, err := parseStage(stage)
		if err != nil {
			return nil, err
		}
		if head == nil {
			head = cmd
		} else {
			tail.Pipe = cmd
		}
		tail = cmd
	}

	return head, nil
}

// splitPipeline splits the line on unquoted pipe characters. Unquoted
// statement separators are rejected: only one top-level statement is
// supported.
func splitPipeline(line string) ([]string, error) {
	var (
		parts   []string
		b       strings.Builder
		quote   rune
		escaped bool
	)

	sawStage := false
	emit := func() error {
		seg := strings.TrimSpace(b.String())
		b.Reset()
		if seg == "" {
			if sawStage {
				return parseErrorf("empty pipeline stage")
			}

			return nil
		}
		parts = append(parts, seg)
		sawStage = true

		return nil
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if escaped {
			b.WriteRune('\\')
			b.WriteRune(r)
			escaped = false

			continue
		}
		if r == '\\' && quote != '\'' {
			escaped = true

			continue
		}
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			b.WriteRune(r)

			continue
		}
		switch {
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(r)
		case r == ';':
			return nil, parseErrorf("expected a single statement")
		case r == '&' && i+1 < len(runes) && runes[i+1] == '&':
			return nil, parseErrorf("expected a single statement")
		case r == '|' && i+1 < len(runes) && runes[i+1] == '|':
			return nil, parseErrorf("expected a single statement")
		case r == '&':
			return nil, parseErrorf("background jobs are not supported")
		case r == '>' || r == '<':
			return nil, parseErrorf("file redirection is not supported")
		case r == '|':
			if err := emit(); err != nil {
				return nil, err
			}
			if !sawStage {
				return nil, parseErrorf("empty pipeline stage")
			}
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		return nil, parseErrorf("trailing escape character")
	}
	if quote != 0 {
		return nil, parseErrorf("unterminated quote")
	}
	trailing := strings.TrimSpace(b.String()) == "" && sawStage
	if trailing {
		return nil, parseErrorf("empty pipeline stage")
	}
	if err := emit(); err != nil {
		return nil, err
	}

	return parts, nil
}

// parseStage parses one pipeline stage: leading NAME=value bindings, then the
// command name, then its arguments.
func parseStage(stage string) (*model.Command, error) {
	tokens, err := tokenize(stage)
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	idx := 0
	for ; idx < len(tokens); idx++ {
		name, value, ok := splitBinding(tokens[idx])
		if !ok {
			break
		}
		// Last binding wins, keys stay unique.
		env[name] = value
	}
	if idx == len(tokens) {
		return nil, parseErrorf("missing command")
	}

	cmd := &model.Command{
		Name: tokens[idx],
		Args: tokens[idx+1:],
		Env:  env,
	}

	return cmd, nil
}

// tokenize splits a stage into words, handling single quotes, double quotes
// and backslash escapes.
func tokenize(stage string) ([]string, error) {
	var (
		tokens  []string
		token   strings.Builder
		inToken bool
		quote   rune
		escaped bool
	)

	flush := func() {
		if inToken {
			tokens = append(tokens, token.String())
			token.Reset()
			inToken = false
		}
	}

	for _, r := range stage {
		if escaped {
			token.WriteRune(r)
			inToken = true
			escaped = false

			continue
		}
		switch {
		case r == '\\' && quote != '\'':
			escaped = true
			inToken = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				token.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			flush()
		default:
			token.WriteRune(r)
			inToken = true
		}
	}
	if escaped {
		return nil, parseErrorf("trailing escape character")
	}
	if quote != 0 {
		return nil, parseErrorf("unterminated quote")
	}
	flush()

	return tokens, nil
}

// splitBinding reports whether the token is a NAME=value environment binding.
func splitBinding(token string) (name, value string, ok bool) {
	eq := strings.IndexByte(token, '=')
	if eq <= 0 {
		return "", "", false
	}
	name = token[:eq]
	for i, r := range name {
		alpha := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !alpha && (i == 0 || r < '0' || r > '9') {
			return "", "", false
		}
	}

	return name, token[eq+1:], true
}
