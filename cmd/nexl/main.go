// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Command nexl evaluates nexl script documents.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"nickandperla.net/nexl/internal/config"
	"nickandperla.net/nexl/internal/eval"
	"nickandperla.net/nexl/internal/logger"
	"nickandperla.net/nexl/pkg/nexl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Error(err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("nexl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		evalStr    = fs.String("e", "", "Evaluate a script document")
		file       = fs.String("f", "", "Evaluate a script document file")
		dbPath     = fs.String("db", "", "SQLite database for persistent variables")
		configPath = fs.String("config", "", "YAML configuration file")
		timeout    = fs.Duration("timeout", 0, "Cancel evaluation after this long")
		debug      = fs.Bool("debug", false, "Log suppressed failures")
		noColor    = fs.Bool("no-color", false, "Disable coloured log output")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	l := logger.Init(stderr, *debug, *noColor)

	c, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		c.Store.Path = *dbPath
	}

	runtime, err := nexl.New(nexl.WithLogger(l), nexl.WithConfig(c))
	if err != nil {
		return err
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			l.Warn("closing runtime", "err", err)
		}
	}()

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	scriptArgs := make([]any, fs.NArg())
	for i, a := range fs.Args() {
		scriptArgs[i] = parseArg(a)
	}

	var result any
	switch {
	case *file != "":
		result, err = runtime.EvalFile(ctx, *file, scriptArgs...)
	case *evalStr != "":
		result, err = runtime.EvalString(ctx, *evalStr, scriptArgs...)
	case !isTerminal(stdin):
		result, err = runtime.Eval(ctx, stdin, scriptArgs...)
	default:
		return runREPL(ctx, runtime, stdin.(*os.File), stdout)
	}
	if err != nil {
		return err
	}
	return printResult(stdout, result)
}

// parseArg reads a command-line argument as a YAML scalar, so numbers and
// booleans reach the script typed.
func parseArg(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch x := v.(type) {
	case int:
		return int64(x)
	case nil:
		if s == "" {
			return ""
		}
		return nil
	case bool, float64, string:
		return x
	}
	return s
}

func printResult(w io.Writer, v any) error {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case []any, map[string]any:
		if eval.IsData(v) {
			out, err := yaml.Marshal(v)
			if err != nil {
				return err
			}
			_, err = w.Write(out)
			return err
		}
	}
	_, err := fmt.Fprintln(w, v)
	return err
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func trimLine(line string) string {
	return strings.TrimRight(line, "\r\n")
}
