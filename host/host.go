// Package host keeps one behavior program playing and replaces it while it
// plays. The Host owns the Cell that the audio and control paths share and
// is the only place Modules are loaded, swapped and unloaded.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/resynth/resynth"
	"go.uber.org/zap"
)

type (
	Host struct {
		loader     resynth.Loader
		cell       *Cell
		logger     *zap.Logger
		swapBudget time.Duration

		// mutex serializes Swap, Restore and Close from different callers.
		mutex    sync.Mutex
		path     string
		swaps    int
		failures int
		last     SwapReport
	}

	Option func(*Host)

	// SwapReport describes one completed swap.
	SwapReport struct {
		Path string
		// Old and New are the Module names.
		Old, New   string
		StateBytes int
		// Migration is set when the state could not be restored and the new
		// Instance starts from defaults.
		Migration *resynth.StateMigrationError
		// Load is the time spent loading the artifact, with audio playing.
		Load time.Duration
		// Took is how long the Cell was held for the exchange.
		Took time.Duration
	}

	// Status is a snapshot of the host for reports.
	Status struct {
		Path     string
		Module   string
		T        float64
		Swaps    int
		Failures int
		Overruns int64
		LastSwap SwapReport
	}

	// binding is a Module and its Instance taken out of the State.
	binding struct {
		module   resynth.Module
		instance resynth.Instance
	}
)

// DefaultSwapBudget is the longest a swap should interrupt audio.
const DefaultSwapBudget = 10 * time.Millisecond

var ErrClosed = errors.New("host is closed")

func WithLogger(logger *zap.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithBudget sets how long a control section may hold the Cell.
func WithBudget(d time.Duration) Option {
	return func(h *Host) {
		h.cell.budget = d
	}
}

func WithSwapBudget(d time.Duration) Option {
	return func(h *Host) {
		h.swapBudget = d
	}
}

// New loads the artifact at path and constructs its default Instance. A
// LoadError here is fatal to the caller.
func New(ctx context.Context, loader resynth.Loader, path string, opts ...Option) (*Host, error) {
	h := &Host{
		loader:     loader,
		cell:       NewCell(DefaultBudget, nil),
		logger:     zap.NewNop(),
		swapBudget: DefaultSwapBudget,
		path:       path,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.cell.logger = h.logger
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	inst, err := m.Default()
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("constructing the default instance of %s failed: %w", m.Name(), err)
	}
	h.cell.state = State{Module: m, Instance: inst}
	h.logger.Info("program loaded", zap.String("artifact", path), zap.String("module", m.Name()))
	return h, nil
}

// Cell returns the shared state for the audio and control paths.
func (h *Host) Cell() *Cell {
	return h.cell
}

// Swap replaces the active program with the artifact at path, carrying the
// musical state across as bytes. The replacement is loaded and validated
// before the Cell is taken, so a failing load leaves the old program playing
// and untouched. Under the Cell the old Instance is serialized and
// destroyed, the old Module unloaded, and the new one installed and given
// the state. State the new Module cannot restore is dropped in favor of its
// defaults and reported as the Migration of the SwapReport, as is an old
// Instance that serializes to nothing. Only the time under the Cell counts
// against the swap budget.
func (h *Host) Swap(ctx context.Context, path string) (SwapReport, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	report := SwapReport{Path: path}
	start := time.Now()
	next, err := h.loader.Load(path)
	report.Load = time.Since(start)
	if err != nil {
		h.failures++
		h.logger.Warn("reload failed, keeping the active program", zap.String("artifact", path), zap.Error(err))
		return report, err
	}
	if err := ctx.Err(); err != nil {
		next.Close()
		return report, err
	}
	var (
		closed   bool
		lost     bool
		retired  error
		instance resynth.Instance
		restored error
	)
	start = time.Now()
	h.cell.exclusive(func(s *State) {
		if s.Module == nil {
			closed = true
			return
		}
		var state []byte
		if s.Instance != nil {
			state = s.Instance.Serialize()
			lost = state == nil
		}
		report.StateBytes = len(state)
		old := take(s)
		report.Old = old.module.Name()
		retired = old.retire()
		s.Module = next
		instance, restored = restoreOrDefault(next, state)
		s.Instance = instance
	})
	report.Took = time.Since(start)
	if closed {
		next.Close()
		return report, ErrClosed
	}
	report.New = next.Name()
	h.path = path
	h.swaps++
	fields := []zap.Field{
		zap.String("artifact", path),
		zap.String("old", report.Old),
		zap.String("new", report.New),
		zap.Int("state", report.StateBytes),
		zap.Duration("load", report.Load),
		zap.Duration("took", report.Took),
	}
	if retired != nil {
		h.logger.Warn("unloading the old program failed", zap.String("module", report.Old), zap.Error(retired))
	}
	if restored != nil {
		if !errors.As(restored, &report.Migration) || instance == nil {
			h.last = report
			h.logger.Error("new program has no instance, playing silence", append(fields, zap.Error(restored))...)
			return report, restored
		}
		h.logger.Warn("state migration failed, new program starts from defaults", zap.Error(restored))
	} else if lost {
		report.Migration = &resynth.StateMigrationError{Module: report.New, Err: resynth.ErrNoState}
		h.logger.Warn("old program produced no state, new program starts from defaults", zap.String("old", report.Old))
	}
	if h.swapBudget > 0 && report.Took > h.swapBudget {
		h.logger.Warn("swap over budget", append(fields, zap.Duration("budget", h.swapBudget))...)
	} else {
		h.logger.Info("program swapped", fields...)
	}
	h.last = report
	return report, nil
}

// Restore replaces the live Instance with one restored from state, keeping
// the Module. The old Instance is destroyed first. State the Module cannot
// restore falls back to its defaults and the StateMigrationError is
// returned.
func (h *Host) Restore(ctx context.Context, state []byte) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	h.cell.exclusive(func(s *State) {
		if s.Module == nil {
			err = ErrClosed
			return
		}
		if s.Instance != nil {
			s.Instance.Destroy()
			s.Instance = nil
		}
		s.Instance, err = restoreOrDefault(s.Module, state)
	})
	if err != nil {
		h.logger.Warn("restoring state failed", zap.Error(err))
	}
	return err
}

// Snapshot serializes the live Instance.
func (h *Host) Snapshot() []byte {
	var state []byte
	h.cell.Do("snapshot", func(s *State) {
		if s.Instance != nil {
			state = s.Instance.Serialize()
		}
	})
	return state
}

// Current runs fn with the active Module and Instance. They must not be
// retained after fn returns; either may be nil.
func (h *Host) Current(fn func(m resynth.Module, i resynth.Instance)) {
	h.cell.Do("current", func(s *State) {
		fn(s.Module, s.Instance)
	})
}

func (h *Host) Status() Status {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	st := Status{
		Path:     h.path,
		Swaps:    h.swaps,
		Failures: h.failures,
		Overruns: h.cell.Overruns(),
		LastSwap: h.last,
	}
	h.cell.exclusive(func(s *State) {
		st.T = s.T
		if s.Module != nil {
			st.Module = s.Module.Name()
		}
	})
	return st
}

// Close destroys the Instance and unloads the Module. Rendering continues
// as silence.
func (h *Host) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	var err error
	h.cell.exclusive(func(s *State) {
		if s.Module == nil {
			return
		}
		err = take(s).retire()
	})
	return err
}

// take moves the binding out of the State, leaving it empty.
func take(s *State) binding {
	b := binding{module: s.Module, instance: s.Instance}
	s.Module, s.Instance = nil, nil
	return b
}

// retire destroys the Instance and then unloads the Module.
func (b binding) retire() error {
	if b.instance != nil {
		b.instance.Destroy()
	}
	return b.module.Close()
}

// restoreOrDefault constructs the Instance of m from state, or from defaults
// when there is no state or it cannot be restored.
func restoreOrDefault(m resynth.Module, state []byte) (resynth.Instance, error) {
	if state == nil {
		return m.Default()
	}
	inst, err := m.Restore(state)
	if err == nil {
		return inst, nil
	}
	migration := &resynth.StateMigrationError{Module: m.Name(), Err: err}
	inst, err = m.Default()
	if err != nil {
		return nil, errors.Join(migration, err)
	}
	return inst, migration
}
