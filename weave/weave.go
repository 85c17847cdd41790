package weave

import (
	"go.uber.org/zap"

	"github.com/wippyai/il-weaver/il"
	"github.com/wippyai/il-weaver/weave/internal/engine"
)

// Provider supplies method lookup, reference resolution, and import to a
// splice. il.ModuleSet is the standard implementation.
type Provider = engine.Provider

// Config carries the optional collaborators of a splice. The zero value is
// usable: a ModuleSet over the two involved modules resolves references,
// and tracing is off.
type Config struct {
	// Provider overrides the default resolution scope.
	Provider Provider
	// Trace receives a line per pipeline stage. Observational only;
	// leaving it nil never changes the result.
	Trace *zap.Logger
}

// InjectBefore splices the source method's body in front of the target
// method's body. The target method keeps its name, signature, and module;
// only its body changes, and only when the whole splice succeeds.
func InjectBefore(target *il.Module, targetMethod string, source *il.Module, sourceMethod string, cfg *Config) (*il.Method, error) {
	provider, trace := collaborators(cfg, target, source)

	tgt, err := provider.FindMethod(target, targetMethod)
	if err != nil {
		return nil, err
	}
	src, err := provider.FindMethod(source, sourceMethod)
	if err != nil {
		return nil, err
	}

	err = engine.Merge(engine.Config{
		Top:          src,
		Bottom:       tgt,
		Target:       tgt,
		TargetModule: target,
		Provider:     provider,
		Logger:       trace,
	})
	if err != nil {
		return nil, err
	}
	return tgt, nil
}

// InjectAfter splices the source method's body behind the target method's
// body. When the target returns a value and the source does not share that
// return type, the target's trailing return is trimmed so control falls
// through into the source instructions.
func InjectAfter(target *il.Module, targetMethod string, source *il.Module, sourceMethod string, cfg *Config) (*il.Method, error) {
	provider, trace := collaborators(cfg, target, source)

	tgt, err := provider.FindMethod(target, targetMethod)
	if err != nil {
		return nil, err
	}
	src, err := provider.FindMethod(source, sourceMethod)
	if err != nil {
		return nil, err
	}

	err = engine.Merge(engine.Config{
		Top:          tgt,
		Bottom:       src,
		Target:       tgt,
		TargetModule: target,
		Provider:     provider,
		Logger:       trace,
	})
	if err != nil {
		return nil, err
	}
	return tgt, nil
}

func collaborators(cfg *Config, target, source *il.Module) (Provider, *zap.Logger) {
	if cfg == nil {
		cfg = &Config{}
	}
	provider := cfg.Provider
	if provider == nil {
		provider = il.NewModuleSet(target, source)
	}
	return provider, cfg.Trace
}
