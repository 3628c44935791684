// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/beevik/mini6502/host"
	"golang.org/x/term"
)

var (
	load     string
	maxSteps int
)

func init() {
	flag.StringVar(&load, "l", "", "load binary image at $8000")
	flag.IntVar(&maxSteps, "steps", 1000000, "instruction limit for each run (0 = none)")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: mini6502 [script] ..\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	h := host.New()
	h.SetMaxSteps(maxSteps)

	if load != "" {
		if err := h.LoadFile(load); err != nil {
			exitOnError(err)
		}
	}

	// Break on Ctrl-C.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(h, c)

	// Run commands contained in command-line files.
	for _, filename := range flag.Args() {
		file, err := os.Open(filename)
		if err != nil {
			exitOnError(err)
		}
		err = h.RunCommands(file, os.Stdout, false)
		file.Close()
		checkExit(err)
	}

	// Run commands interactively when attached to a terminal, otherwise
	// treat standard input as one more script.
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	checkExit(h.RunCommands(os.Stdin, os.Stdout, interactive))
}

func handleInterrupt(h *host.Host, c chan os.Signal) {
	for {
		<-c
		h.Break()
	}
}

func checkExit(err error) {
	switch {
	case err == nil:
	case errors.Is(err, host.ErrExit):
		os.Exit(0)
	default:
		exitOnError(err)
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
