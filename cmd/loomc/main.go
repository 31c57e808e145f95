// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command loomc is the LOOM language compiler, disassembler, and REPL.
//
// Usage:
//
//	loomc [flags] [source.lm]
//
// Flags:
//
//	-o <output>    Output file (default: stdout)
//	-emit <stage>  Emit intermediate output: tokens, bytecode (default: bytecode)
//	-version       Print version and exit
//
// With no source file, loomc starts an interactive REPL.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	loom "github.com/loom-lang/loom"
	"github.com/loom-lang/loom/internal/lexer"
	"github.com/loom-lang/loom/internal/token"
)

const version = "0.1.0"

func main() {
	var (
		output = flag.String("o", "", "Output file (default: stdout)")
		emit   = flag.String("emit", "bytecode", "Emit stage: tokens, bytecode")
		ver    = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *ver {
		fmt.Printf("loomc %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		runREPL()
		return
	}

	filename := flag.Arg(0)
	src, err := lexer.NewFileSource(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out, colorize, closeOut := openOutput(*output)
	defer closeOut()

	switch *emit {
	case "tokens":
		emitTokens(out, colorize, src)
	case "bytecode":
		emitBytecode(out, colorize, src, filename)
	default:
		fmt.Fprintf(os.Stderr, "unknown emit stage: %s\n", *emit)
		os.Exit(1)
	}
}

// openOutput resolves -o into a writer, reporting whether it is safe to
// colorize (never for a plain file, only for an actual terminal) and a
// cleanup func the caller must defer.
func openOutput(path string) (w io.Writer, colorize bool, closeFn func()) {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return f, false, func() { f.Close() }
	}
	colorize = isatty.IsTerminal(os.Stdout.Fd())
	return colorable.NewColorableStdout(), colorize, func() {}
}

func emitTokens(out io.Writer, colorize bool, src lexer.Source) {
	l := lexer.New(src)
	typeColor := color.New(color.FgYellow)
	for {
		tk := l.NextToken()
		if colorize {
			fmt.Fprintf(out, "%s\t%s\t%q\n", tk.Pos, typeColor.Sprint(tk.Type), tk.Literal)
		} else {
			fmt.Fprintf(out, "%s\t%s\t%q\n", tk.Pos, tk.Type, tk.Literal)
		}
		if tk.Type == token.EOF {
			return
		}
	}
}

func emitBytecode(out io.Writer, colorize bool, src lexer.Source, filename string) {
	ins := loom.New()
	cls, err := ins.CompileClosure(src, filename, loom.ScopeGlobal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	d := newDisassembler(ins, out, colorize)
	d.disassembleClosure(cls)
}
