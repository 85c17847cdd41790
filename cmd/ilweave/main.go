package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/il-weaver/il"
	"github.com/wippyai/il-weaver/weave"
)

func main() {
	var (
		targetFile   = flag.String("target", "", "Path to target module file")
		sourceFile   = flag.String("source", "", "Path to source module file")
		targetMethod = flag.String("target-method", "", "Target method full name (Type::Method)")
		sourceMethod = flag.String("source-method", "", "Source method full name (Type::Method)")
		mode         = flag.String("mode", "before", "Injection mode: before or after")
		output       = flag.String("o", "", "Output path (default: overwrite target)")
		planFile     = flag.String("plan", "", "YAML plan with multiple injections")
		list         = flag.Bool("list", false, "List target module methods and exit")
		dump         = flag.String("dump", "", "Disassemble a method of the target module and exit")
		verbose      = flag.Bool("v", false, "Trace every pipeline stage")
		interactive  = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *planFile != "" {
		if err := runPlan(*planFile, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *targetFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: ilweave -target <mod.ilw> -source <mod.ilw> -target-method T::M -source-method T::M [-mode before|after] [-o out.ilw]")
		fmt.Fprintln(os.Stderr, "       ilweave -target <mod.ilw> -list")
		fmt.Fprintln(os.Stderr, "       ilweave -target <mod.ilw> -dump T::M")
		fmt.Fprintln(os.Stderr, "       ilweave -plan <plan.yaml>")
		fmt.Fprintln(os.Stderr, "       ilweave -target <mod.ilw> -source <mod.ilw> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if *sourceFile == "" {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires -source")
			os.Exit(1)
		}
		if err := runInteractive(*targetFile, *sourceFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*targetFile, *sourceFile, *targetMethod, *sourceMethod, *mode, *output, *dump, *list, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(targetFile, sourceFile, targetMethod, sourceMethod, mode, output, dump string, listOnly, verbose bool) error {
	target, err := loadModule(targetFile)
	if err != nil {
		return err
	}

	fmt.Printf("Module: %s (%s)\n", targetFile, target.Name)
	fmt.Printf("Types: %d\n", len(target.Types))
	fmt.Printf("References: %d\n", len(target.Refs))

	if listOnly {
		fmt.Printf("\nMethods:\n")
		for _, t := range target.Types {
			for _, m := range t.Methods {
				fmt.Printf("  %s\n", formatMethod(m))
			}
		}
		return nil
	}

	if dump != "" {
		m := target.FindMethod(dump)
		if m == nil {
			return fmt.Errorf("method %q not found in %s", dump, target.Name)
		}
		if m.Body == nil {
			return fmt.Errorf("method %q has no body", dump)
		}
		fmt.Printf("\n%s\n", formatMethod(m))
		for _, line := range il.Disassemble(m.Body) {
			fmt.Printf("  %s\n", line)
		}
		return nil
	}

	if sourceFile == "" || targetMethod == "" || sourceMethod == "" {
		return fmt.Errorf("injection requires -source, -target-method, and -source-method")
	}

	source, err := loadModule(sourceFile)
	if err != nil {
		return err
	}

	cfg := &weave.Config{Trace: traceLogger(verbose)}

	var method *il.Method
	switch mode {
	case "before":
		method, err = weave.InjectBefore(target, targetMethod, source, sourceMethod, cfg)
	case "after":
		method, err = weave.InjectAfter(target, targetMethod, source, sourceMethod, cfg)
	default:
		return fmt.Errorf("unknown mode %q (want before or after)", mode)
	}
	if err != nil {
		return err
	}

	color.Green("Spliced %s::%s into %s (%s)",
		source.Name, sourceMethod, targetMethod, mode)
	fmt.Printf("  instructions: %d, slots: %d, handlers: %d, max stack: %d\n",
		len(method.Body.Instructions), len(method.Body.Locals),
		len(method.Body.Handlers), method.Body.MaxStack)

	if output == "" {
		output = targetFile
	}
	if err := saveModule(target, output); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", output)
	return nil
}

func loadModule(path string) (*il.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	mod, err := il.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return mod, nil
}

func saveModule(mod *il.Module, path string) error {
	data, err := il.Encode(mod)
	if err != nil {
		return fmt.Errorf("encode %s: %w", mod.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatMethod(m *il.Method) string {
	sig := m.FullName() + "("
	for i, p := range m.Params {
		if i > 0 {
			sig += ", "
		}
		sig += string(p)
	}
	sig += ") -> " + string(m.Return)
	if m.Static {
		sig = "static " + sig
	}
	if m.Body == nil {
		sig += "  [no body]"
	}
	return sig
}

func traceLogger(verbose bool) *zap.Logger {
	if !verbose {
		return nil
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil
	}
	return logger
}
