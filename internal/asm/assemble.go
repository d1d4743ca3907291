package asm

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"viua/internal/loader"
)

// CompileOptions configures one assembly run, threaded explicitly rather
// than read from process-global flags, per the engine's anti-singleton
// design note.
type CompileOptions struct {
	AsLib bool

	Verbose bool
	Debug   bool
	Scream  bool

	VerifyOptions
}

// entryBody is the synthesized __entry function body (pipeline step 4):
// it sets up a local regset, frames a single argument, calls main, and
// halts with main's return value in register 0 — giving every program a
// process entry independent of main's own calling convention.
func entryBody(mainName string) []Line {
	mk := func(mnemonic string, operands ...string) Line {
		return Line{Mnemonic: mnemonic, Operands: operands}
	}
	return []Line{
		mk("ress", "local"),
		mk("frame", "1", "1"),
		mk("param", "0", "1"),
		mk("call", "1", mainName),
		mk("move", "0", "1"),
		mk("halt"),
	}
}

// Assemble runs the full seven-step pipeline over a single source string,
// producing a loader.Image. Link targets (named by .link: directives or
// passed explicitly) are merged in afterwards by Link.
func Assemble(source string, opts CompileOptions) (*loader.Image, []Diagnostic, error) {
	expanded, err := Expand(source)
	if err != nil {
		return nil, nil, errors.Wrap(err, "asm: expand")
	}

	prog, err := Gather(expanded)
	if err != nil {
		return nil, nil, errors.Wrap(err, "asm: gather")
	}

	diags := Verify(prog, opts.VerifyOptions)
	if fatal, ok := FirstFatal(diags); ok {
		return nil, diags, errors.Errorf("asm: %s", fatal.String())
	}

	if !opts.AsLib {
		u := newUnit("__entry")
		u.Lines = entryBody(prog.MainName)
		prog.Functions["__entry"] = u
	}

	img, err := Emit(prog, opts.AsLib)
	if err != nil {
		return nil, diags, errors.Wrap(err, "asm: emit")
	}

	img, err = Link(img, prog.Links, opts.AsLib)
	if err != nil {
		return nil, diags, errors.Wrap(err, "asm: link")
	}

	return img, diags, nil
}

// AssembleFiles assembles every source file concurrently — one errgroup
// goroutine per file, with no limit on how many run at once — before
// linking their images together in a single-threaded
// pass, per the pipeline's step 6. Each file after the first is treated
// as a library to be statically linked into the first.
func AssembleFiles(paths []string, opts CompileOptions) (*loader.Image, error) {
	if len(paths) == 0 {
		return nil, errors.New("asm: no input files")
	}

	images := make([]*loader.Image, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return errors.Wrapf(err, "asm: reading %s", p)
			}
			fileOpts := opts
			if i > 0 {
				fileOpts.AsLib = true
			}
			img, _, err := Assemble(string(data), fileOpts)
			if err != nil {
				return errors.Wrapf(err, "asm: assembling %s", p)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	final := images[0]
	for _, img := range images[1:] {
		final = linkImage(final, img)
	}
	return final, nil
}

// Link merges each named link target's already-assembled bytecode image
// (loaded from disk via the loader's container format) into img, per
// pipeline step 6: copy code at the next offset, relocate its function
// and block tables and jump-table-recorded positions by that offset.
func Link(img *loader.Image, targets []string, asLib bool) (*loader.Image, error) {
	for _, path := range targets {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "asm: opening link target %s", path)
		}
		linked, err := loader.Load(f, true)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "asm: loading link target %s", path)
		}
		img = linkImage(img, linked)
	}
	return img, nil
}

func linkImage(host, lib *loader.Image) *loader.Image {
	offset := uint16(len(host.Code))
	loader.Relocate(lib, offset)

	host.Code = append(host.Code, lib.Code...)
	for name, off := range lib.Functions {
		host.Functions[name] = off
	}
	for name, off := range lib.Blocks {
		host.Blocks[name] = off
	}
	if host.Library {
		host.Jumps = append(host.Jumps, lib.Jumps...)
	}
	return host
}
