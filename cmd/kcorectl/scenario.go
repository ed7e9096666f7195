package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"defs"
)

// Scenario is a YAML-decoded end-to-end script (section 8's S1, S2, S4 and
// S5 ship under scenarios/), a named
// sequence of operations against named processes. "init" always names pid 1;
// every other name is bound the first time a fork step's As field introduces
// it, to whatever pid that fork call actually returned.
type Scenario struct {
	Name  string         `yaml:"name"`
	Steps []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one instruction: op against process, with op-specific
// fields left zero when irrelevant. A step that can block (wait, on a
// process with no zombie child yet) must set Async so a later step can kill
// or exit the thing it is waiting on; without Async, runScenario would
// deadlock waiting for a step that can only complete once a later step runs.
type ScenarioStep struct {
	Process string `yaml:"process"`         // which named process performs the op
	Op      string `yaml:"op"`               // fork, exit, wait, kill, yield, join
	As      string `yaml:"as,omitempty"`     // fork only: name to bind the child pid to
	Target  string `yaml:"target,omitempty"` // kill only: named process to kill
	Status  int    `yaml:"status,omitempty"` // exit only
	Ticks   int    `yaml:"ticks,omitempty"`  // unused by yield; reserved for a future timed variant
	Async   bool   `yaml:"async,omitempty"`  // don't block runScenario on this step's result

	// expect, when non-nil, asserts the step's outcome: a wait's returned
	// pid/status, or an error code any step produced. For an Async step,
	// Expect is checked against the result by the matching join step.
	Expect *StepExpectation `yaml:"expect,omitempty"`
}

// StepExpectation pins down what a scenario asserts about one step, used by
// `kcorectl run` to report pass/fail per step instead of just replaying.
type StepExpectation struct {
	WaitPid *string `yaml:"wait_pid,omitempty"` // name expected to be reaped, or "" for -ECHILD
	Status  *int    `yaml:"status,omitempty"`
	ErrName string  `yaml:"err,omitempty"` // e.g. "ECHILD", "ESRCH"; empty means "no error"
}

// LoadScenario reads and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return &s, nil
}

// stepOutcome is one executed step's result, returned by runScenario for the
// caller to render or assert against.
type stepOutcome struct {
	step     ScenarioStep
	result   stepResult
	errStr   string
	mismatch string // non-empty if step.Expect did not match result
}

// errName maps a defs.Err_t back to its mnemonic for scenario assertions and
// reporting; the zero value is "" ("no error"), matching err == 0.
func errName(err defs.Err_t) string {
	switch err {
	case 0:
		return ""
	case -defs.ECHILD:
		return "ECHILD"
	case -defs.ESRCH:
		return "ESRCH"
	case -defs.EINTR:
		return "EINTR"
	case -defs.EINVAL:
		return "EINVAL"
	default:
		return fmt.Sprintf("Err_t(%d)", err)
	}
}

// runScenario executes every step against m in order, on the scenario's own
// goroutine: each step blocks until the targeted process's runProcessScript
// loop has actually performed it, so steps against different processes are
// still strictly ordered exactly as written, never reordered for
// concurrency. Concurrency in this machine comes from how many hart
// goroutines are servicing the table, not from the scenario driver racing
// its own steps.
func (m *machine) runScenario(s *Scenario) ([]stepOutcome, error) {
	names := map[string]defs.Pid_t{"init": 1}
	exited := map[defs.Pid_t]bool{}
	outcomes := make([]stepOutcome, 0, len(s.Steps))

	// pending holds the not-yet-joined result of an Async step, keyed by
	// the process name it ran against (only one outstanding async step per
	// process makes sense: a process is single-threaded, so a second step
	// sent to it before the first is joined would just queue up behind it
	// in its control channel). check() against names is deliberately
	// deferred to join time, run on this same goroutine, since names is
	// mutated by ordinary (non-Async) steps and is not safe to read
	// concurrently with that from the background goroutine.
	type asyncResult struct {
		st  ScenarioStep
		res stepResult
	}
	pending := map[string]chan asyncResult{}

	for _, st := range s.Steps {
		if st.Op == "join" {
			ch, ok := pending[st.Process]
			if !ok {
				return outcomes, fmt.Errorf("scenario %s: join on %q with no pending async step", s.Name, st.Process)
			}
			delete(pending, st.Process)
			ar := <-ch
			outcome := stepOutcome{step: ar.st, result: ar.res, errStr: errName(ar.res.err)}
			outcome.mismatch = outcome.check(names)
			outcomes = append(outcomes, outcome)
			continue
		}

		pid, ok := names[st.Process]
		if !ok || exited[pid] {
			return outcomes, fmt.Errorf("scenario %s: step references unknown process %q", s.Name, st.Process)
		}

		sendStep := step{op: st.Op, status: st.Status, ticks: st.Ticks}
		if st.Op == "kill" {
			target, ok := names[st.Target]
			if !ok || exited[target] {
				return outcomes, fmt.Errorf("scenario %s: kill target %q is not a known process", s.Name, st.Target)
			}
			sendStep.target = target
		}

		if st.Async {
			resultCh := make(chan asyncResult, 1)
			pending[st.Process] = resultCh
			go func(st ScenarioStep, pid defs.Pid_t) {
				res := m.registry.send(pid, sendStep)
				resultCh <- asyncResult{st: st, res: res}
			}(st, pid)
			continue
		}

		res := m.registry.send(pid, sendStep)

		if st.Op == "fork" && res.err == 0 && st.As != "" {
			names[st.As] = res.childPid
		}

		outcome := stepOutcome{step: st, result: res, errStr: errName(res.err)}
		outcome.mismatch = outcome.check(names)
		outcomes = append(outcomes, outcome)

		if st.Op == "exit" {
			// runProcessScript's exit case answers done before actually
			// exiting; the process never reads from steps again, so
			// mark its pid exited: later steps cannot address it, while
			// its name stays bound for a later wait_pid expectation.
			exited[pid] = true
		}
	}
	if len(pending) != 0 {
		return outcomes, fmt.Errorf("scenario %s: %d async step(s) never joined", s.Name, len(pending))
	}
	return outcomes, nil
}

// check compares an executed outcome against its expectation, if any,
// returning a human-readable mismatch description or "".
func (o stepOutcome) check(names map[string]defs.Pid_t) string {
	exp := o.step.Expect
	if exp == nil {
		return ""
	}
	if exp.ErrName != o.errStr {
		return fmt.Sprintf("expected err %q, got %q", exp.ErrName, o.errStr)
	}
	if exp.Status != nil && *exp.Status != o.result.status {
		return fmt.Sprintf("expected status %d, got %d", *exp.Status, o.result.status)
	}
	if exp.WaitPid != nil {
		want, known := names[*exp.WaitPid]
		if known && want != o.result.waitPid {
			return fmt.Sprintf("expected wait to reap %q (pid %d), got pid %d", *exp.WaitPid, want, o.result.waitPid)
		}
	}
	return ""
}
