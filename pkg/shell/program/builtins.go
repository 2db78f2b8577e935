package program

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/wapm-shell/pkg/shell/model"
)

// Builtins returns the table of programs shipped with the shell.
func Builtins() map[string]model.Artifact {
	return map[string]model.Artifact{
		"echo":  Func(echo),
		"cat":   Func(cat),
		"upper": Func(upper),
		"lower": Func(lower),
		"rev":   Func(rev),
		"wc":    Func(wc),
		"head":  Func(head),
		"grep":  Func(grep),
	}
}

func echo(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error {
	_, err := fmt.Fprintln(stdout, strings.Join(args[1:], " "))

	return errors.Wrap(err, "echo")
}

func cat(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error {
	_, err := io.Copy(stdout, contextReader(ctx, stdin))

	return errors.Wrap(err, "cat")
}

func upper(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error {
	return mapBytes(ctx, stdin, stdout, "upper", bytes.ToUpper)
}

func lower(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error {
	return mapBytes(ctx, stdin, stdout, "lower", bytes.ToLower)
}

// rev reverses every input line, keeping the line order.
func rev(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error {
	return mapLines(ctx, stdin, stdout, "rev", func(line []byte) ([]byte, bool) {
		out := make([]byte, len(line))
		for i, b := range line {
			out[len(line)-1-i] = b
		}

		return out, true
	})
}

func wc(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error {
	var lines, words, chars int64

	scanner := bufio.NewScanner(contextReader(ctx, stdin))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		lines++
		words += int64(len(bytes.Fields(line)))
		chars += int64(len(line)) + 1
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "wc")
	}
	_, err := fmt.Fprintf(stdout, "%8d %7d %7d\n", lines, words, chars)

	return errors.Wrap(err, "wc")
}

// head prints the first n lines of its input, 10 when no count is given.
// Both "head 3" and "head -n 3" forms are accepted.
func head(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error {
	limit := 10
	rest := args[1:]
	if len(rest) > 0 && rest[0] == "-n" {
		rest = rest[1:]
	}
	if len(rest) > 0 {
		n, err := strconv.Atoi(rest[0])
		if err != nil || n < 0 {
			return errors.Errorf("head: invalid line count %q", rest[0])
		}
		limit = n
	}

	seen := 0

	return mapLines(ctx, stdin, stdout, "head", func(line []byte) ([]byte, bool) {
		if seen >= limit {
			return nil, false
		}
		seen++

		return line, true
	})
}

func grep(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error {
	if len(args) < 2 {
		return errors.New("grep: missing pattern")
	}
	pattern := []byte(args[1])

	return mapLines(ctx, stdin, stdout, "grep", func(line []byte) ([]byte, bool) {
		return line, bytes.Contains(line, pattern)
	})
}

const maxLine = 1024 * 1024

func mapBytes(ctx context.Context, stdin io.Reader, stdout io.Writer, name string, fn func([]byte) []byte) error {
	buf := make([]byte, 32*1024)
	in := contextReader(ctx, stdin)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if _, werr := stdout.Write(fn(buf[:n])); werr != nil {
				return errors.Wrap(werr, name)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, name)
		}
	}
}

func mapLines(ctx context.Context, stdin io.Reader, stdout io.Writer, name string, fn func(line []byte) ([]byte, bool)) error {
	scanner := bufio.NewScanner(contextReader(ctx, stdin))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		out, keep := fn(scanner.Bytes())
		if !keep {
			continue
		}
		if _, err := stdout.Write(append(out, '\n')); err != nil {
			return errors.Wrap(err, name)
		}
	}

	return errors.Wrap(scanner.Err(), name)
}

// contextReader fails pending reads once the context is cancelled, so a
// killed unit does not stay stuck inside a program.
func contextReader(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
