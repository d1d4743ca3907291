package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"viua/internal/loader"
	"viua/internal/vm"
)

const VERSION = "0.1.0"

var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

func main() {
	var verbose, debug, scream bool
	var args []string

	for _, a := range os.Args[1:] {
		switch a {
		case "--verbose", "-v":
			verbose = true
		case "--debug", "-d":
			debug = true
		case "--scream":
			scream = true
		default:
			args = append(args, a)
		}
	}

	if len(args) == 0 {
		fmt.Println("fatal: no input file")
		os.Exit(1)
	}

	f, err := os.Open(args[0])
	if err != nil {
		log.Fatalf("fatal: could not open file: %s", args[0])
	}
	img, err := loader.Load(f, false)
	f.Close()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	cpu := vm.New(img.Code, nameTable(img.Functions), nameTable(img.Blocks), vm.Options{
		Verbose: verbose,
		Debug:   debug,
		Scream:  scream,
	})

	if _, ok := img.Functions["__entry"]; !ok {
		log.Fatalf("fatal: no __entry function in image (was it assembled as a library?)")
	}

	code, exceptionType, message, err := cpu.Run("__entry")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if exceptionType != "" {
		fmt.Fprintf(os.Stderr, "uncaught %s: %s\n", exceptionType, message)
		os.Exit(1)
	}
	os.Exit(code)
}

func nameTable(t map[string]uint16) map[string]int {
	out := make(map[string]int, len(t))
	for name, off := range t {
		out[name] = int(off)
	}
	return out
}
