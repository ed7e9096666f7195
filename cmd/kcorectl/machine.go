package main

import (
	"fmt"
	"log/slog"
	"sync"

	"circbuf"
	"fdops"
	"mem"
	"proc"
)

// initImage is the one-page "program" init runs. It never traps into scall
// (the harness drives fork/wait/kill/yield/exit directly through each process's
// control channel, standing in for the trap path scall.Dispatch serves in a
// real boot), so its actual bytes are never fetched or executed; it exists
// only so Uvminit has a first page to map, matching the reference boot
// contract that pid 1 always starts from a concrete image.
var initImage = []byte{0}

// machine owns the process table, a fixed pool of harts each running the
// scheduler continuously, and the registry of per-process controllers that
// scall.Dispatch's harness replacement (runProcessScript) answers to.
type machine struct {
	table    *proc.Table
	harts    []*proc.Cpu
	registry *registry
	log      *slog.Logger

	// trace is a bounded one-page ring of recent step descriptions, the
	// teacher's circbuf standing in for the tty/dmesg ring a real kernel
	// would drain on shutdown. Writers (every process's own goroutine) and
	// the one reader (the CLI's final dump) serialize through traceMu
	// since Circbuf_t itself assumes a single caller.
	traceMu sync.Mutex
	trace   *circbuf.Circbuf_t
}

// newMachine boots a table with nharts scheduler goroutines and wires
// runProcessScript as the trap-return hook every process, from init on,
// hands off to. It does not start init itself; call spawnInit for that.
func newMachine(nharts int, log *slog.Logger) *machine {
	m := &machine{
		table:    proc.NewTable(),
		registry: newRegistry(),
		log:      log,
		trace:    &circbuf.Circbuf_t{},
	}
	if err := m.trace.Cb_init(mem.PGSIZE, mem.Phys); err != 0 {
		panic("newMachine: trace ring init failed")
	}
	m.table.SetTrapReturn(m.runProcessScript)
	m.harts = make([]*proc.Cpu, nharts)
	for i := range m.harts {
		h := proc.NewCpu(i)
		m.harts[i] = h
		go m.table.Scheduler(h)
	}
	return m
}

// spawnInit creates pid 1, the only process with no parent, and registers
// its controller before returning so that a scenario's first step against
// "init" never races runProcessScript's own lookup.
func (m *machine) spawnInit() (*proc.Proc, error) {
	m.registry.register(1)
	boot := m.harts[0]
	init := m.table.UserInit(boot, initImage)
	if init == nil {
		return nil, fmt.Errorf("spawnInit: UserInit failed (process table or memory exhausted)")
	}
	if init.Pid() != 1 {
		return nil, fmt.Errorf("spawnInit: expected pid 1, got %d", init.Pid())
	}
	return init, nil
}

// traceAppend records one line in the trace ring. Once the ring fills,
// Copyin reports 0 bytes written with no error rather than evicting the
// oldest entry, so a long-running scenario's trace silently caps at
// whatever fit in the first page rather than growing unbounded.
func (m *machine) traceAppend(line string) {
	m.traceMu.Lock()
	defer m.traceMu.Unlock()
	m.trace.Copyin(fdops.NewSliceIO([]byte(line + "\n")))
}

// traceDump drains the entire trace ring and returns it as whole lines. It
// consumes the ring, so it is meant to be called once, at the end of a run.
func (m *machine) traceDump() string {
	m.traceMu.Lock()
	defer m.traceMu.Unlock()
	var out []byte
	buf := make([]byte, mem.PGSIZE)
	for !m.trace.Empty() {
		n, err := m.trace.Copyout(fdops.NewSliceIO(buf))
		if err != 0 || n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return string(out)
}
