package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"time"

	"viua/internal/asm"
	"viua/internal/linkcache"
	"viua/internal/loader"
)

const VERSION = "0.1.0"

var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

func main() {
	var (
		showHelp, showVersion   bool
		verbose, debug, scream  bool
		asLib                   bool
		expandOnly, verifyOnly  bool
		warnAll, warnMissingEnd bool
		errorAll, errorMissingEnd, errorHaltIsLast bool
		outfile string
	)

	var args []string
	rawArgs := os.Args[1:]
	for i := 0; i < len(rawArgs); i++ {
		switch rawArgs[i] {
		case "--help", "-h":
			showHelp = true
		case "--version", "-V":
			showVersion = true
		case "--verbose", "-v":
			verbose = true
		case "--debug", "-d":
			debug = true
		case "--scream":
			scream = true
		case "--lib", "-c":
			asLib = true
		case "--Wall", "-W":
			warnAll = true
		case "--Wmissing-end":
			warnMissingEnd = true
		case "--Eall":
			errorAll = true
		case "--Emissing-end":
			errorMissingEnd = true
		case "--Ehalt-is-last":
			errorHaltIsLast = true
		case "--expand", "-E":
			expandOnly = true
		case "--verify", "-C":
			verifyOnly = true
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

	filename := args[0]
	links := args[1:]

	if outfile == "" {
		if asLib {
			outfile = filename + ".wlib"
		} else {
			outfile = "a.out"
		}
	}

	if verbose || debug {
		fmt.Printf("message: assembling %q to %q\n", filename, outfile)
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Printf("fatal: could not open file: %s\n", filename)
		os.Exit(1)
	}

	if expandOnly {
		expanded, err := asm.Expand(string(source))
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		for _, l := range expanded {
			fmt.Println(l.Text)
		}
		return
	}

	opts := asm.CompileOptions{
		AsLib:   asLib,
		Verbose: verbose,
		Debug:   debug,
		Scream:  scream,
		VerifyOptions: asm.VerifyOptions{
			AsLib:           asLib,
			WarnAll:         warnAll,
			WarnMissingEnd:  warnMissingEnd,
			ErrorAll:        errorAll,
			ErrorMissingEnd: errorMissingEnd,
			ErrorHaltIsLast: errorHaltIsLast,
		},
	}

	cache, cacheErr := linkcache.Open(cachePath())
	if cacheErr == nil {
		defer cache.Close()
		if digest, derr := linkcache.Digest(source); derr == nil {
			if blob, hit, lerr := cache.Lookup(digest); lerr == nil && hit {
				if verifyOnly {
					return
				}
				if err := os.WriteFile(outfile, blob, 0o644); err != nil {
					log.Fatalf("fatal: writing %s: %v", outfile, err)
				}
				return
			}
		}
	}

	img, diags, err := asm.Assemble(string(source), opts)
	for _, d := range asm.Warnings(diags) {
		fmt.Println(d.String())
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	for _, link := range links {
		img, err = asm.Link(img, []string{link}, asLib)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}

	if verifyOnly {
		return
	}

	out, err := os.Create(outfile)
	if err != nil {
		log.Fatalf("fatal: creating %s: %v", outfile, err)
	}
	defer out.Close()
	if err := loader.Write(out, img); err != nil {
		log.Fatalf("fatal: writing %s: %v", outfile, err)
	}

	if cache != nil {
		if digest, derr := linkcache.Digest(source); derr == nil {
			var buf bytes.Buffer
			if err := loader.Write(&buf, img); err == nil {
				_ = cache.Store(digest, buf.Bytes())
			}
		}
	}
}

func cachePath() string {
	if dir := os.Getenv("VIUA_CACHE_DIR"); dir != "" {
		return dir + "/asm-cache.sqlite"
	}
	return "viua-asm-cache.sqlite"
}

func usage(showHelp, showVersion, verbose bool) {
	if showHelp || (showVersion && verbose) {
		fmt.Print("Viua VM assembler, version ")
	}
	if showHelp || showVersion {
		fmt.Printf("%s %s\n", VERSION, GitCommit)
	}
	if showHelp {
		fmt.Print(`
USAGE:
    viua-asm [option...] [-o <outfile>] <infile> [<linked-file>...]

OPTIONS:
    -V, --version            show version
    -h, --help                display this message
    -v, --verbose             show verbose output
    -d, --debug               show debugging output
        --scream              show so much debugging output it becomes noisy
    -W, --Wall                warn about everything
        --Wmissing-end        warn about missing 'end' at the end of functions
        --Eall                treat all warnings as errors
        --Emissing-end        treat missing 'end' as an error
        --Ehalt-is-last       treat 'halt' as the last instruction of 'main' as an error
    -c, --lib                 assemble as a library
    -E, --expand              only expand the source to simple form and print it
    -C, --verify               verify source correctness without compiling
`)
	}
}
