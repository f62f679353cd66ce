package main

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/SohamMalakar/kitty/pkg/compiler"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory, sets PWD, and restores the original on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Open(".")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		oldwd.Close()
		t.Fatal(err)
	}
	if !filepath.IsAbs(dir) {
		if dir, err = os.Getwd(); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := oldwd.Chdir(); err != nil {
			panic("testing: chdir: restoring working directory: " + err.Error())
		}
		oldwd.Close()
	})
}

var quiet = log.New(io.Discard, "", 0)

func TestCompileAllAndReport(t *testing.T) {
	dir := t.TempDir()
	debug := filepath.Join(dir, "debug")
	inputs := []string{
		writeSource(t, dir, "ok.kt", "var x: int = 1 + 2;"),
		writeSource(t, dir, "lex.kt", "var x: int = 1 @ 2;"),
		writeSource(t, dir, "syntax.kt", "var x: int = ;"),
		writeSource(t, dir, "gen.kt", "y = 1;"),
	}
	cfg := config{debugDir: debug}

	jobs, err := compileAll(inputs, cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != len(inputs) {
		t.Fatalf("got %d jobs", len(jobs))
	}
	if jobs[0].err != nil || jobs[0].res.Module == nil {
		t.Fatalf("ok.kt failed: %v", jobs[0].err)
	}
	wantPhases := []compiler.Phase{0, compiler.PhaseLex, compiler.PhaseParse, compiler.PhaseGenerate}
	for i, j := range jobs[1:] {
		var pe *compiler.PhaseError
		if !errors.As(j.err, &pe) || pe.Phase != wantPhases[i+1] {
			t.Errorf("%s: err = %v, want %s failure", j.path, j.err, wantPhases[i+1])
		}
	}

	wantCodes := []int{exitOK, 1, 2, 3}
	for i, j := range jobs {
		if code := report(j, cfg, quiet); code != wantCodes[i] {
			t.Errorf("%s: exit = %d, want %d", j.path, code, wantCodes[i])
		}
	}

	for _, name := range []string{"ok.ast.json", "ok.ll", "syntax.ast.json", "gen.ast.json"} {
		if _, err := os.Stat(filepath.Join(debug, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
	for _, name := range []string{"lex.ast.json", "syntax.ll", "gen.ll"} {
		if _, err := os.Stat(filepath.Join(debug, name)); err == nil {
			t.Errorf("unexpected artifact %s", name)
		}
	}
}

func TestEmitIRNextToInput(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "prog.kt", "var x: int = 1;")
	cfg := config{emitIR: true}

	jobs, err := compileAll([]string{path}, cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}
	if code := report(jobs[0], cfg, quiet); code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "prog.ll")); err != nil {
		t.Errorf("IR not written next to input: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "prog.ast.json")); err == nil {
		t.Error("AST dump should only be written with -debug-dir")
	}
}

func TestEmitIRBesideRelativeInput(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "rel.kt", "var x: int = 1;")
	cfg := config{emitIR: true}

	chdir(t, dir)
	jobs, err := compileAll([]string{"rel.kt"}, cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}
	if jobs[0].dir != dir {
		t.Errorf("input dir = %q, want %q", jobs[0].dir, dir)
	}

	// Artifacts follow the input, not the working directory at report time.
	elsewhere := t.TempDir()
	chdir(t, elsewhere)
	if code := report(jobs[0], cfg, quiet); code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "rel.ll")); err != nil {
		t.Errorf("IR not written beside the input: %v", err)
	}
	if _, err := os.Stat(filepath.Join(elsewhere, "rel.ll")); err == nil {
		t.Error("IR written into the working directory")
	}
}

func TestRunRuntimeFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "div.kt", "var z: int = 0; var x: int = 1 / z;")
	cfg := config{run: true}

	jobs, err := compileAll([]string{path}, cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}
	if code := report(jobs[0], cfg, quiet); code != exitIO {
		t.Errorf("exit = %d, want %d", code, exitIO)
	}
}

func TestCompileAllMissingFile(t *testing.T) {
	_, err := compileAll([]string{filepath.Join(t.TempDir(), "nope.kt")}, config{}, quiet)
	if err == nil {
		t.Fatal("expected an error for a missing input")
	}
}
