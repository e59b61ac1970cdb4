package metrics

import (
	"sort"
	"sync"
)

// GlobalStep is the reserved cross-step bucket used when a metric is not
// attributed to any particular workflow step.
const GlobalStep = "global"

// family identifies one of the fixed set of streaming estimators kept
// per (step, key) coordinate. The set is fixed by design: callers can
// read any family for any coordinate and get "undefined" rather than a
// new zero-valued family springing into existence.
type family struct {
	count   counter
	meanVar meanVar
	minMax  minMax
	iqr     *iqr
	mad     *mad
}

func newFamily() *family {
	return &family{iqr: newIQR(), mad: newMAD()}
}

// Snapshot is a single (step, key) estimator's values at the moment
// SummarizeAll was called.
type Snapshot struct {
	Count    float64
	Mean     float64
	Variance float64
	Min      float64
	Max      float64
	IQR      float64
	MAD      float64
}

// Store is the MetricsStore: a mapping (step, key) -> estimator family,
// written and read only from the manager's single control-loop
// goroutine. The mutex exists only to make concurrent read access (e.g.
// from a metrics-export HTTP handler) safe, not to serialize writers.
type Store struct {
	mu    sync.RWMutex
	table map[string]map[string]*family
}

// NewStore returns an empty MetricsStore.
func NewStore() *Store {
	return &Store{table: make(map[string]map[string]*family)}
}

func (s *Store) familyFor(step, key string) *family {
	if step == "" {
		step = GlobalStep
	}
	byKey, ok := s.table[step]
	if !ok {
		byKey = make(map[string]*family)
		s.table[step] = byKey
	}
	f, ok := byKey[key]
	if !ok {
		f = newFamily()
		byKey[key] = f
	}
	return f
}

// IncrementCounter increments the count estimator for (step, key) by the
// given amount. step defaults to GlobalStep when empty.
func (s *Store) IncrementCounter(key, step string, by float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.familyFor(step, key).count.add(by)
}

// AddModelEntry feeds a value into every streaming model for (step, key).
func (s *Store) AddModelEntry(key string, value float64, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.familyFor(step, key)
	f.meanVar.add(value)
	f.minMax.add(value)
	f.iqr.add(value)
	f.mad.add(value)
}

// AddCustomMetric records a batch of (name, value) pairs surfaced by a
// completed job's log: each pair both feeds the streaming models under
// (step, name) and increments the counter for (step, name) by value.
func (s *Store) AddCustomMetric(values map[string]float64, stepName string) {
	for name, value := range values {
		s.AddModelEntry(name, value, stepName)
		s.IncrementCounter(name, stepName, value)
	}
}

// Get returns the current Snapshot for (step, key) and whether it
// exists. A missing coordinate is "undefined", never a zero-valued
// Snapshot, per the MetricsStore invariant.
func (s *Store) Get(step, key string) (Snapshot, bool) {
	if step == "" {
		step = GlobalStep
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKey, ok := s.table[step]
	if !ok {
		return Snapshot{}, false
	}
	f, ok := byKey[key]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(f), true
}

func snapshotOf(f *family) Snapshot {
	return Snapshot{
		Count:    f.count.value(),
		Mean:     f.meanVar.Mean(),
		Variance: f.meanVar.Variance(),
		Min:      f.minMax.min,
		Max:      f.minMax.max,
		IQR:      f.iqr.Value(),
		MAD:      f.mad.Value(),
	}
}

// SummarizeAll returns a snapshot keyed model -> step -> key -> rounded
// value, suitable for the console summary printed at workflow
// completion. Values are rounded to four decimal places to keep the
// printed summary stable across runs with the same inputs.
func (s *Store) SummarizeAll() map[string]map[string]map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]map[string]map[string]float64{
		"count":    {},
		"mean":     {},
		"variance": {},
		"min":      {},
		"max":      {},
		"iqr":      {},
		"mad":      {},
	}

	steps := make([]string, 0, len(s.table))
	for step := range s.table {
		steps = append(steps, step)
	}
	sort.Strings(steps)

	for _, step := range steps {
		keys := make([]string, 0, len(s.table[step]))
		for key := range s.table[step] {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for model := range out {
			out[model][step] = make(map[string]float64, len(keys))
		}
		for _, key := range keys {
			snap := snapshotOf(s.table[step][key])
			out["count"][step][key] = round4(snap.Count)
			out["mean"][step][key] = round4(snap.Mean)
			out["variance"][step][key] = round4(snap.Variance)
			out["min"][step][key] = round4(snap.Min)
			out["max"][step][key] = round4(snap.Max)
			out["iqr"][step][key] = round4(snap.IQR)
			out["mad"][step][key] = round4(snap.MAD)
		}
	}
	return out
}

func round4(x float64) float64 {
	const scale = 1e4
	if x == 0 {
		return 0
	}
	rounded := float64(int64(x*scale+sign(x)*0.5)) / scale
	return rounded
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
