// Package wasmhost loads programs compiled to WebAssembly as Modules. Every
// loaded artifact gets its own wazero module instance; unloading closes it
// and frees everything the program allocated.
package wasmhost

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"

	"github.com/resynth/resynth"
	"github.com/resynth/resynth/wasmhost/abi"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

type (
	// Loader compiles and instantiates artifacts on one shared runtime.
	Loader struct {
		ctx     context.Context
		runtime wazero.Runtime
		logger  *zap.Logger
	}

	Option func(*options)

	options struct {
		logger           *zap.Logger
		memoryLimitPages uint32
	}
)

// WithLogger sets the logger of the loader and the modules it loads. Guest
// output on stderr is logged as warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMemoryLimitPages caps the linear memory of every program, in 64 KiB
// pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) {
		o.memoryLimitPages = pages
	}
}

// NewLoader creates the runtime and instantiates WASI preview 1 in it. The
// context is used for every call into loaded programs.
func NewLoader(ctx context.Context, opts ...Option) (*Loader, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := wazero.NewRuntimeConfig()
	if o.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(o.memoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiating WASI failed: %w", err)
	}
	return &Loader{ctx: ctx, runtime: runtime, logger: o.logger}, nil
}

// Load reads, validates and instantiates the artifact. A failing load leaves
// nothing behind in the runtime.
func (l *Loader) Load(path string) (resynth.Module, error) {
	bin, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &resynth.LoadError{Path: path, Err: fmt.Errorf("%w: %v", resynth.ErrMissingArtifact, err)}
	}
	if err != nil {
		return nil, &resynth.LoadError{Path: path, Err: err}
	}
	return l.LoadBytes(path, bin)
}

// LoadBytes is Load for an artifact already in memory; name identifies it in
// errors and logs.
func (l *Loader) LoadBytes(name string, bin []byte) (resynth.Module, error) {
	compiled, err := l.runtime.CompileModule(l.ctx, bin)
	if err != nil {
		return nil, &resynth.LoadError{Path: name, Err: err}
	}
	if err := Validate(name, compiled); err != nil {
		compiled.Close(l.ctx)
		return nil, err
	}
	logger := l.logger.With(zap.String("artifact", name))
	stderr, err := zap.NewStdLogAt(logger.Named("guest"), zap.WarnLevel)
	if err != nil {
		compiled.Close(l.ctx)
		return nil, &resynth.LoadError{Path: name, Err: err}
	}
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions(abi.Initialize).
		WithStderr(stderr.Writer())
	mod, err := l.runtime.InstantiateModule(l.ctx, compiled, cfg)
	if err != nil {
		compiled.Close(l.ctx)
		return nil, &resynth.LoadError{Path: name, Symbol: abi.Initialize, Err: err}
	}
	m := &Module{
		name:     name,
		ctx:      l.ctx,
		logger:   logger,
		compiled: compiled,
		mod:      mod,
		mem:      mod.Memory(),
	}
	for i, export := range funcNames {
		m.fns[i] = mod.ExportedFunction(export)
	}
	return m, nil
}

// Close closes the runtime and every module still loaded in it.
func (l *Loader) Close() error {
	return l.runtime.Close(l.ctx)
}

// Validate checks that the compiled artifact exports the memory and every
// function of the program interface with the expected signature.
func Validate(name string, compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[abi.Memory]; !ok {
		return &resynth.LoadError{Path: name, Symbol: abi.Memory, Err: resynth.ErrMissingSymbol}
	}
	funcs := compiled.ExportedFunctions()
	for _, export := range slices.Sorted(maps.Keys(abi.Exports)) {
		def, ok := funcs[export]
		if !ok {
			return &resynth.LoadError{Path: name, Symbol: export, Err: resynth.ErrMissingSymbol}
		}
		sig := abi.Exports[export]
		if !sameTypes(def.ParamTypes(), sig.Params) || !sameTypes(def.ResultTypes(), sig.Results) {
			return &resynth.LoadError{Path: name, Symbol: export, Err: fmt.Errorf(
				"%w: signature %s, expected %s", resynth.ErrMissingSymbol, signature(def.ParamTypes(), def.ResultTypes()), signature(toAPI(sig.Params), toAPI(sig.Results)))}
		}
	}
	return nil
}

func sameTypes(have []api.ValueType, want []abi.ValueType) bool {
	if len(have) != len(want) {
		return false
	}
	for i := range have {
		if have[i] != api.ValueType(want[i]) {
			return false
		}
	}
	return true
}

func toAPI(types []abi.ValueType) []api.ValueType {
	ret := make([]api.ValueType, len(types))
	for i, t := range types {
		ret[i] = api.ValueType(t)
	}
	return ret
}

func signature(params, results []api.ValueType) string {
	s := "("
	for i, p := range params {
		if i > 0 {
			s += " "
		}
		s += api.ValueTypeName(p)
	}
	s += ")"
	for _, r := range results {
		s += " " + api.ValueTypeName(r)
	}
	return s
}
