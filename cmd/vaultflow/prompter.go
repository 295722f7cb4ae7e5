package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emarren/vaultflow/internal/providers"
)

// terminalPrompter implements providers.Prompter on stdin/stdout for
// standalone runs. Embedded hosts replace it with their own dialog surface.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) Prompt(ctx context.Context, spec providers.PromptSpec) (providers.PromptAnswer, error) {
	if spec.Title != "" {
		fmt.Fprintln(p.out, spec.Title)
	}
	if spec.Message != "" {
		fmt.Fprintln(p.out, spec.Message)
	}

	switch spec.Kind {
	case providers.PromptButtons:
		for i, opt := range spec.Options {
			fmt.Fprintf(p.out, "  [%d] %s\n", i+1, opt)
		}
		fmt.Fprint(p.out, "> ")
		line, err := p.readLine(ctx)
		if err != nil {
			return providers.PromptAnswer{Cancelled: true}, nil
		}
		for i, opt := range spec.Options {
			if line == fmt.Sprintf("%d", i+1) || strings.EqualFold(line, opt) {
				return providers.PromptAnswer{Value: opt}, nil
			}
		}
		return providers.PromptAnswer{Cancelled: true}, nil
	default:
		if spec.Default != "" {
			fmt.Fprintf(p.out, "[%s] > ", spec.Default)
		} else {
			fmt.Fprint(p.out, "> ")
		}
		line, err := p.readLine(ctx)
		if err != nil {
			return providers.PromptAnswer{Cancelled: true}, nil
		}
		if line == "" && spec.Default != "" {
			line = spec.Default
		}
		if line == "" {
			return providers.PromptAnswer{Cancelled: true}, nil
		}
		return providers.PromptAnswer{Value: line}, nil
	}
}

// confirm asks a yes/no question, for overwrite confirmations.
func (p *terminalPrompter) confirm(ctx context.Context, path string) (bool, error) {
	fmt.Fprintf(p.out, "overwrite %s? [y/N] ", path)
	line, err := p.readLine(ctx)
	if err != nil {
		return false, nil
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes", nil
}

func (p *terminalPrompter) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- result{strings.TrimSpace(line), err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && r.line == "" {
			return "", r.err
		}
		return r.line, nil
	}
}
