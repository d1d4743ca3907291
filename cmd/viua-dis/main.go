package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"viua/internal/disasm"
	"viua/internal/loader"
)

const VERSION = "0.1.0"

var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

func main() {
	var showHelp, showVersion bool
	var withEntry, info, verbose, asLib bool
	var outfile string
	var args []string

	rawArgs := os.Args[1:]
	for i := 0; i < len(rawArgs); i++ {
		switch rawArgs[i] {
		case "--help", "-h":
			showHelp = true
		case "--version", "-V":
			showVersion = true
		case "--with-entry":
			withEntry = true
		case "--info":
			info = true
		case "--verbose", "-v":
			verbose = true
		case "--lib", "-c":
			asLib = true
		case "--out", "-o":
			if i >= len(rawArgs)-1 {
				fmt.Println("error: option '" + rawArgs[i] + "' requires an argument: filename")
				os.Exit(1)
			}
			i++
			outfile = rawArgs[i]
		default:
			args = append(args, rawArgs[i])
		}
	}

	if showHelp || showVersion {
		usage(showHelp, showVersion, verbose)
		return
	}

	if len(args) == 0 {
		fmt.Println("fatal: no input file")
		os.Exit(1)
	}

	f, err := os.Open(args[0])
	if err != nil {
		log.Fatalf("fatal: could not open file: %s", args[0])
	}
	defer f.Close()

	img, err := loader.Load(f, asLib)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	text, err := disasm.Disassemble(img, disasm.Options{
		WithEntry: withEntry,
		Info:      info,
		Verbose:   verbose,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if outfile == "" {
		fmt.Print(text)
		return
	}
	if err := os.WriteFile(outfile, []byte(text), 0o644); err != nil {
		log.Fatalf("fatal: writing %s: %v", outfile, err)
	}
}

func usage(showHelp, showVersion, verbose bool) {
	if showHelp || (showVersion && verbose) {
		fmt.Print("Viua VM disassembler, version ")
	}
	if showHelp || showVersion {
		fmt.Printf("%s %s\n", VERSION, GitCommit)
	}
	if showHelp {
		fmt.Print(`
USAGE:
    viua-dis [option...] [-o <outfile>] <infile>

OPTIONS:
    -V, --version            show version
    -h, --help                display this message
    -v, --verbose             show verbose output
    -o, --out                 write disassembly to a file instead of stdout
        --with-entry          include the synthesized __entry function
        --info                print bytecode metadata (sizes, table counts)
    -c, --lib                 treat the input file as a library (no __entry)
`)
	}
}
