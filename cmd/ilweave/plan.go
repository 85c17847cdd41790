package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/il-weaver/il"
	"github.com/wippyai/il-weaver/weave"
)

// Plan describes a batch of injections against one target module. Source
// modules are loaded once and reused across entries.
type Plan struct {
	Target string      `yaml:"target"`
	Output string      `yaml:"output"`
	Inject []Injection `yaml:"inject"`
}

// Injection is one splice within a plan.
type Injection struct {
	Source string `yaml:"source"`
	Method string `yaml:"method"`
	Into   string `yaml:"into"`
	Mode   string `yaml:"mode"`
}

func loadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if plan.Target == "" {
		return nil, fmt.Errorf("plan missing target module")
	}
	if len(plan.Inject) == 0 {
		return nil, fmt.Errorf("plan has no injections")
	}
	return &plan, nil
}

func runPlan(path string, verbose bool) error {
	plan, err := loadPlan(path)
	if err != nil {
		return err
	}

	target, err := loadModule(plan.Target)
	if err != nil {
		return err
	}
	cfg := &weave.Config{Trace: traceLogger(verbose)}

	sources := make(map[string]*il.Module)
	for i, inj := range plan.Inject {
		src, ok := sources[inj.Source]
		if !ok {
			src, err = loadModule(inj.Source)
			if err != nil {
				return fmt.Errorf("inject %d: %w", i+1, err)
			}
			sources[inj.Source] = src
		}

		switch inj.Mode {
		case "before", "":
			_, err = weave.InjectBefore(target, inj.Into, src, inj.Method, cfg)
		case "after":
			_, err = weave.InjectAfter(target, inj.Into, src, inj.Method, cfg)
		default:
			err = fmt.Errorf("unknown mode %q", inj.Mode)
		}
		if err != nil {
			return fmt.Errorf("inject %d (%s into %s): %w", i+1, inj.Method, inj.Into, err)
		}
		fmt.Printf("[%d/%d] %s into %s (%s)\n", i+1, len(plan.Inject), inj.Method, inj.Into, modeOrDefault(inj.Mode))
	}

	output := plan.Output
	if output == "" {
		output = plan.Target
	}
	if err := saveModule(target, output); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", output)
	return nil
}

func modeOrDefault(mode string) string {
	if mode == "" {
		return "before"
	}
	return mode
}
