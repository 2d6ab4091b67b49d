package upgrade

import (
	"context"
	"errors"
	"sync"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/logger"
	"github.com/alexisbeaulieu97/commons/internal/version"
)

type memoryVersions struct {
	mu       sync.Mutex
	versions map[string]version.Version
	raw      map[string]string
	getErr   error
	setErr   error
	sets     []string
}

func newMemoryVersions(initial map[string]string) *memoryVersions {
	m := &memoryVersions{versions: map[string]version.Version{}, raw: map[string]string{}}
	for target, v := range initial {
		m.raw[target] = v
	}
	return m
}

func (m *memoryVersions) GetVersion(_ context.Context, target string) (version.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return version.Version{}, m.getErr
	}
	if v, ok := m.versions[target]; ok {
		return v, nil
	}
	raw, ok := m.raw[target]
	if !ok {
		raw = "0.0.0"
	}
	return version.Parse(raw)
}

func (m *memoryVersions) SetVersion(_ context.Context, target string, v version.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.versions[target] = v
	m.sets = append(m.sets, target+"="+v.String())
	return nil
}

func (m *memoryVersions) current(target string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.versions[target]; ok {
		return v.String()
	}
	return m.raw[target]
}

type staticConfig struct {
	doc   *config.Document
	err   error
	calls int
}

func (s *staticConfig) Configuration(context.Context) (*config.Document, error) {
	s.calls++
	return s.doc, s.err
}

// callLog records the order operations ran in, across targets.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *callLog) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// recordingOp appends "<name>@<target>" to the log when executed and fails
// for targets listed in failOn.
type recordingOp struct {
	*BaseOperation[string]
	log    *callLog
	failOn map[string]error
	params config.Params
}

func newRecordingOp(name string, log *callLog) *recordingOp {
	op := &recordingOp{log: log, failOn: map[string]error{}}
	op.BaseOperation = NewBaseOperation[string](name, op)
	return op
}

func (o *recordingOp) Configure(params config.Params) error {
	if params.Has("requireMarker") {
		if _, err := params.Require("marker"); err != nil {
			return err
		}
	}
	o.params = params
	return nil
}

func (o *recordingOp) DoExecute(_ context.Context, uctx Context[string]) error {
	o.log.add(o.Name() + "@" + uctx.Target())
	if err, ok := o.failOn[uctx.Target()]; ok {
		return err
	}
	return nil
}

func testRegistry(log *callLog, names ...string) *Registry[string] {
	registry := NewRegistry[string]()
	for _, name := range names {
		name := name
		registry.MustRegister(name, func() Operation[string] { return newRecordingOp(name, log) })
	}
	return registry
}

func failingRegistry(log *callLog, failures map[string]map[string]error, names ...string) *Registry[string] {
	registry := NewRegistry[string]()
	for _, name := range names {
		name := name
		registry.MustRegister(name, func() Operation[string] {
			op := newRecordingOp(name, log)
			for target, err := range failures[name] {
				op.failOn[target] = err
			}
			return op
		})
	}
	return registry
}

func stringContexts() ContextFactory[string] {
	return ContextFactoryFunc[string](func(_ context.Context, target string) (Context[string], error) {
		return NewBasicContext(target, "site "+target).WithLogger(logger.Nop()), nil
	})
}

func entry(op, current, next string) config.Entry {
	return config.Entry{Operation: op, CurrentVersion: current, NextVersion: next, Enabled: true, Params: config.Params{}}
}

var errBoom = errors.New("boom")
