// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	loom "github.com/loom-lang/loom"
)

// runREPL drives an interactive read-compile-run loop over one
// persistent Instance: each line compiles and runs as its own
// top-level unit in Global scope, so `def`s from one line are visible
// to the next (spec §6.1's Global scoping mode), mirroring how a
// module's top level behaves.
func runREPL() {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	colorize := isatty.IsTerminal(os.Stdout.Fd())
	errColor := color.New(color.FgRed)
	valColor := color.New(color.FgGreen)

	ins := loom.New()
	fmt.Printf("loom %s — Ctrl-D to exit\n", version)

	n := 0
	for {
		text, err := line.Prompt("loom> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			fmt.Println()
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		if text == "" {
			continue
		}
		line.AppendHistory(text)
		n++

		unit := fmt.Sprintf("repl:%d", n)
		results, err := ins.Run(loom.NewSource(unit, text), unit, loom.ScopeGlobal, nil)
		if err != nil {
			printREPL(colorize, errColor, "error: %v\n", err)
			continue
		}
		for _, v := range results {
			printREPL(colorize, valColor, "%s\n", showValue(ins, v))
		}
	}
}

func showValue(ins *loom.Instance, v loom.Value) string {
	buf := ins.Formatter()
	buf.AppendFmt(false, "%v", []loom.Value{v})
	return buf.String()
}

func printREPL(colorize bool, c *color.Color, format string, args ...interface{}) {
	if colorize {
		fmt.Print(c.Sprintf(format, args...))
		return
	}
	fmt.Printf(format, args...)
}
