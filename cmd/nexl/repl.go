// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"nickandperla.net/nexl/pkg/nexl"
)

const banner = `nexl REPL (Ctrl+D to exit)
Enter one script document per line, e.g. {type: Binary, op: "+", left: 1, right: 2}
End a line with \ to continue it.
`

// lineReader reads input lines under a prompt.
type lineReader interface {
	ReadLine() (string, error)
	SetPrompt(prompt string)
}

type basicReader struct {
	r      *bufio.Reader
	w      io.Writer
	prompt string
}

func (b *basicReader) ReadLine() (string, error) {
	fmt.Fprint(b.w, b.prompt)
	line, err := b.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return trimLine(line), nil
}

func (b *basicReader) SetPrompt(prompt string) { b.prompt = prompt }

func runREPL(ctx context.Context, runtime *nexl.Runtime, stdin *os.File, stdout io.Writer) error {
	fd := int(stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		runtime.Engine().Logger().Warn("raw mode unavailable", "err", err)
		return repl(ctx, runtime, &basicReader{r: bufio.NewReader(stdin), w: stdout}, stdout)
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{stdin, stdout}, "")
	return repl(ctx, runtime, t, t)
}

// repl evaluates documents line by line against the runtime's context
// until EOF. Failures are printed and the loop continues.
func repl(ctx context.Context, runtime *nexl.Runtime, in lineReader, out io.Writer) error {
	fmt.Fprint(out, banner)
	var multiline strings.Builder
	for {
		if multiline.Len() > 0 {
			in.SetPrompt("... ")
		} else {
			in.SetPrompt(">>> ")
		}
		line, err := in.ReadLine()
		if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		if strings.HasSuffix(line, `\`) {
			multiline.WriteString(strings.TrimSuffix(line, `\`))
			multiline.WriteString("\n")
			continue
		}
		multiline.WriteString(line)
		input := multiline.String()
		multiline.Reset()
		if strings.TrimSpace(input) == "" {
			continue
		}

		result, err := runtime.EvalString(ctx, input)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if err := printResult(out, result); err != nil {
			return err
		}
	}
}
