package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/SohamMalakar/kitty/pkg/compiler"
	"github.com/SohamMalakar/kitty/pkg/diagnostics"
	"github.com/SohamMalakar/kitty/pkg/utils"
	"github.com/SohamMalakar/kitty/pkg/vm"
)

// Exit statuses. Compilation failures use compiler.Phase.ExitCode.
const (
	exitOK = 0
	exitIO = 4
)

type config struct {
	emitIR   bool
	debugDir string
	run      bool
	format   diagnostics.FormatOptions
}

// job is the compilation of one input file.
type job struct {
	path string
	dir  string // absolute directory holding the input
	res  *compiler.Result
	err  error
	ast  bytes.Buffer
	ir   bytes.Buffer
}

func main() {
	emitIR := flag.Bool("emit-ir", false, "write <name>.ll next to each input (or into -debug-dir)")
	debugDir := flag.String("debug-dir", "", "write <name>.ast.json and <name>.ll into this directory")
	run := flag.Bool("run", false, "execute each program that compiles")
	jsonOut := flag.Bool("json", false, "report diagnostics as JSON")
	colorMode := flag.String("color", "auto", "color diagnostics: auto, always or never")
	verbose := flag.Bool("v", false, "trace pipeline phases on stderr")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: kitty [flags] file...")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.New(io.Discard, "kitty: ", log.Ltime|log.Lmicroseconds)
	if *verbose {
		logger.SetOutput(os.Stderr)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(exitIO)
	}

	cfg := config{emitIR: *emitIR, debugDir: *debugDir, run: *run}
	cfg.format.JSON = *jsonOut
	switch *colorMode {
	case "always":
		cfg.format.Color = true
	case "never":
	case "auto":
		cfg.format.Color = !*jsonOut && term.IsTerminal(int(os.Stderr.Fd()))
	default:
		fmt.Fprintf(os.Stderr, "invalid -color value %q: want auto, always or never\n", *colorMode)
		os.Exit(exitIO)
	}

	jobs, err := compileAll(flag.Args(), cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIO)
	}

	status := exitOK
	for _, j := range jobs {
		if code := report(j, cfg, logger); code != exitOK && status == exitOK {
			status = code
		}
	}
	os.Exit(status)
}

// compileAll compiles every input in parallel. Compilations share nothing,
// so each goroutine owns its job.
func compileAll(paths []string, cfg config, logger *log.Logger) ([]*job, error) {
	jobs := make([]*job, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		path := path // per-iteration copy; go 1.21 shares loop variables
		j := &job{path: path}
		jobs[i] = j
		g.Go(func() error {
			full, dir, err := utils.GetPathInfo(path)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", path, err)
			}
			src, err := os.ReadFile(full)
			if err != nil {
				return fmt.Errorf("failed to read input file %q: %w", path, err)
			}
			j.dir = dir
			logger.Printf("compiling %s (%d bytes)", full, len(src))

			var opts []compiler.Option
			if cfg.debugDir != "" {
				opts = append(opts, compiler.WithASTSink(&j.ast))
			}
			if cfg.debugDir != "" || cfg.emitIR {
				opts = append(opts, compiler.WithIRSink(&j.ir))
			}
			j.res, j.err = compiler.Compile(string(src), path, opts...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// report writes artifacts and diagnostics for j, runs it when asked, and
// returns its exit status.
func report(j *job, cfg config, logger *log.Logger) int {
	artifactDir := cfg.debugDir
	if artifactDir == "" {
		artifactDir = j.dir
	}
	if cfg.debugDir != "" && j.ast.Len() > 0 {
		path := utils.ArtifactPath(j.path, artifactDir, ".ast.json")
		if err := utils.WriteArtifact(path, j.ast.Bytes()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}
		logger.Printf("wrote %s", path)
	}
	if j.ir.Len() > 0 {
		path := utils.ArtifactPath(j.path, artifactDir, ".ll")
		if err := utils.WriteArtifact(path, j.ir.Bytes()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}
		logger.Printf("wrote %s", path)
	}

	if j.err != nil {
		var pe *compiler.PhaseError
		if !errors.As(j.err, &pe) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", j.path, j.err)
			return exitIO
		}
		sink := diagnostics.NewSink()
		sink.Append(pe.Diagnostics...)
		sink.Report(os.Stderr, cfg.format)
		logger.Printf("%s: %s phase failed with %d diagnostic(s)", j.path, pe.Phase, len(pe.Diagnostics))
		return pe.Phase.ExitCode()
	}
	logger.Printf("%s: compiled %d statement(s)", j.path, len(j.res.Program.Statements))

	if !cfg.run {
		return exitOK
	}
	machine := vm.New(j.res.Module, vm.WithOutput(os.Stdout))
	res, err := machine.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", j.path, err)
		return exitIO
	}
	logger.Printf("%s: main returned %d after %d steps", j.path, res.Exit, machine.Steps)
	return exitOK
}
