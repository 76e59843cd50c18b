// Command corvid inspects and runs WebAssembly modules with the corvid
// engine.
//
//	corvid [flags] validate <file.wasm>
//	corvid [flags] exports <file.wasm>
//	corvid [flags] invoke <file.wasm> <export> [args...]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/errors"
	"github.com/corvidjs/corvid/pkg/wasm"
)

const usage = `Usage: corvid [flags] <command> <file.wasm> [args...]

Commands:
  validate <file>                   check that the module compiles
  exports <file>                    list the module's imports and exports
  invoke <file> <export> [args...]  instantiate and call an exported function
`

const (
	exitOK    = 0
	exitUsage = 64
	exitError = 70
)

func main() {
	os.Exit(run())
}

// run executes the command line and returns the process exit code. Deferred
// cleanup runs before main exits.
func run() int {
	configFlag := flag.String("config", "", "YAML configuration file")
	logLevelFlag := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	devFlag := flag.Bool("dev", false, "Use the development logger")
	depthFlag := flag.Int("max-call-depth", 0, "Maximum nested wasm calls before trapping")
	noValidateFlag := flag.Bool("no-validate", false, "Skip full validation before decoding")
	stubFlag := flag.Bool("stub-imports", false, "Satisfy imports with zero-valued stubs when invoking")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "corvid: %v\n", err)
		return exitUsage
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = *logLevelFlag
		case "dev":
			cfg.Development = *devFlag
		case "max-call-depth":
			cfg.MaxCallDepth = *depthFlag
		case "no-validate":
			validate := !*noValidateFlag
			cfg.Validate = &validate
		case "stub-imports":
			cfg.StubImports = *stubFlag
		}
	})

	if flag.NArg() < 2 {
		flag.Usage()
		return exitUsage
	}
	logger, err := cfg.logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "corvid: %v\n", err)
		return exitUsage
	}
	defer func() { _ = logger.Sync() }()

	cmd, file := flag.Arg(0), flag.Arg(1)
	ctx := context.Background()
	engine := wasm.NewEngine(ctx, cfg.engineConfig(), logger)
	defer func() { _ = engine.Close(ctx) }()

	r := &runner{engine: engine, logger: logger, out: os.Stdout, stubImports: cfg.StubImports}
	switch cmd {
	case "validate":
		err = r.validate(ctx, file)
	case "exports":
		err = r.exports(ctx, file)
	case "invoke":
		if flag.NArg() < 3 {
			flag.Usage()
			return exitUsage
		}
		err = r.invoke(ctx, file, flag.Arg(2), flag.Args()[3:])
	default:
		fmt.Fprintf(os.Stderr, "corvid: unknown command %q\n", cmd)
		return exitUsage
	}
	if err != nil {
		if se, ok := errors.AsStageError(err); ok {
			errors.Display(os.Stderr, file, []errors.StageError{se})
		} else {
			fmt.Fprintf(os.Stderr, "corvid: %v\n", err)
		}
		return exitError
	}
	return exitOK
}

type runner struct {
	engine      *wasm.Engine
	logger      *zap.Logger
	out         io.Writer
	stubImports bool
}

func (r *runner) compile(ctx context.Context, file string) (*wasm.Module, error) {
	bin, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return r.engine.Compile(ctx, bin)
}

func (r *runner) validate(ctx context.Context, file string) error {
	bin, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if err := r.engine.Validate(ctx, bin); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s: ok\n", file)
	return nil
}

func (r *runner) exports(ctx context.Context, file string) error {
	m, err := r.compile(ctx, file)
	if err != nil {
		return err
	}
	for _, imp := range m.Imports {
		fmt.Fprintf(r.out, "import %s %s.%s%s\n", imp.Kind, imp.Module, imp.Name, r.importDetail(m, imp))
	}
	for _, exp := range m.Exports {
		detail := ""
		if exp.Kind == wasm.ExternFunc {
			detail = " " + m.FuncType(exp.Index).String()
		}
		fmt.Fprintf(r.out, "export %s %s%s\n", exp.Kind, exp.Name, detail)
	}
	return nil
}

func (r *runner) importDetail(m *wasm.Module, imp wasm.Import) string {
	switch imp.Kind {
	case wasm.ExternFunc:
		return " " + m.Types[imp.TypeIndex].String()
	case wasm.ExternGlobal:
		if imp.Global.Mutable {
			return " mut " + imp.Global.ValueType.String()
		}
		return " " + imp.Global.ValueType.String()
	case wasm.ExternMemory:
		return fmt.Sprintf(" min=%d", imp.Memory.Min)
	}
	return ""
}

func (r *runner) invoke(ctx context.Context, file, name string, rawArgs []string) error {
	m, err := r.compile(ctx, file)
	if err != nil {
		return err
	}
	imports, err := r.imports(m)
	if err != nil {
		return err
	}
	inst, err := r.engine.Instantiate(m, imports)
	if err != nil {
		return err
	}
	exp, ok := inst.Export(name)
	if !ok || exp.Kind != wasm.ExternFunc {
		return fmt.Errorf("no exported function %q", name)
	}
	ft := exp.Func.Type()
	if len(rawArgs) != len(ft.Params) {
		return fmt.Errorf("%s expects %d arguments %s, got %d", name, len(ft.Params), ft, len(rawArgs))
	}
	args := make([]wasm.Value, len(rawArgs))
	for i, s := range rawArgs {
		if args[i], err = parseArg(ft.Params[i], s); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}

	results, err := wasm.Invoke(exp.Func, args...)
	if err != nil {
		return err
	}
	strs := make([]string, len(results))
	for i, v := range results {
		strs[i] = v.String()
	}
	fmt.Fprintln(r.out, strings.Join(strs, " "))
	return nil
}

// imports builds stub externs for m, or fails if m has imports and stubs
// were not requested.
func (r *runner) imports(m *wasm.Module) ([]wasm.Extern, error) {
	if len(m.Imports) == 0 {
		return nil, nil
	}
	if !r.stubImports {
		return nil, errors.Linkf(m.Imports[0].Module, m.Imports[0].Name, "imports are only available with -stub-imports")
	}
	out := make([]wasm.Extern, len(m.Imports))
	for i, imp := range m.Imports {
		ext := wasm.Extern{Kind: imp.Kind}
		switch imp.Kind {
		case wasm.ExternFunc:
			ft := m.Types[imp.TypeIndex]
			qualified := imp.Module + "." + imp.Name
			ext.Func = wasm.NewHostFunction(qualified, ft, func(args []wasm.Value) ([]wasm.Value, error) {
				r.logger.Info("stub import called", zap.String("import", qualified), zap.Stringers("args", args))
				results := make([]wasm.Value, len(ft.Results))
				for j, t := range ft.Results {
					results[j] = wasm.Zero(t)
				}
				return results, nil
			})
		case wasm.ExternGlobal:
			g, err := wasm.NewGlobal(imp.Global, wasm.Zero(imp.Global.ValueType))
			if err != nil {
				return nil, err
			}
			ext.Global = g
		case wasm.ExternMemory:
			mem, err := wasm.NewMemory(imp.Memory)
			if err != nil {
				return nil, err
			}
			ext.Memory = mem
		default:
			return nil, errors.Linkf(imp.Module, imp.Name, "cannot stub a %s import", imp.Kind)
		}
		out[i] = ext
	}
	return out, nil
}

// parseArg reads a command-line argument as a value of type t.
func parseArg(t wasm.ValueType, s string) (wasm.Value, error) {
	switch t {
	case wasm.TypeI32:
		n, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			u, uerr := strconv.ParseUint(s, 0, 32)
			if uerr != nil {
				return wasm.Void, err
			}
			n = int64(int32(uint32(u)))
		}
		return wasm.I32(int32(n)), nil
	case wasm.TypeI64:
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(s, 0, 64)
			if uerr != nil {
				return wasm.Void, err
			}
			n = int64(u)
		}
		return wasm.I64(n), nil
	case wasm.TypeF32:
		f, err := strconv.ParseFloat(s, 32)
		return wasm.F32(float32(f)), err
	case wasm.TypeF64:
		f, err := strconv.ParseFloat(s, 64)
		return wasm.F64(f), err
	case wasm.TypeExternRef, wasm.TypeFuncRef:
		if s == "null" {
			return wasm.NullRef(t), nil
		}
		return wasm.Void, fmt.Errorf("only null can be passed as %s", t)
	}
	return wasm.Void, fmt.Errorf("%s arguments are not supported", t)
}
