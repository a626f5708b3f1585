package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dev-bootstrap/internal/runner"
)

// Policy decides what a failed step means for the rest of the run.
type Policy int

const (
	// BestEffort failures are logged and the pass continues with the next step.
	BestEffort Policy = iota
	// Fatal failures stop the pass; later steps depend on this one's postcondition.
	Fatal
)

func (p Policy) String() string {
	if p == Fatal {
		return "fatal"
	}
	return "best-effort"
}

// Outcome is the result class of evaluating one step.
type Outcome int

const (
	AlreadySatisfied Outcome = iota
	Installed
	Skipped // Postcondition unmet, but dry-run only logged the install commands
	Failed
)

func (o Outcome) String() string {
	switch o {
	case AlreadySatisfied:
		return "already satisfied"
	case Installed:
		return "installed"
	case Skipped:
		return "skipped (dry-run)"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Step is one idempotent provisioning action.
//
// Installed is the presence check; it is called fresh every time because earlier steps
// change PATH, the filesystem and package databases. Install performs the work through the
// Runner it closed over, so a dry-run Runner turns it into a list of logged commands.
type Step struct {
	Name      string
	Policy    Policy
	Installed func(ctx context.Context) bool
	Install   func(ctx context.Context) error
}

// Result records how a step ended.
type Result struct {
	Step     string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// ErrStillMissing marks a fatal step whose install reported success while its check still fails.
var ErrStillMissing = errors.New("install finished but the check still fails")

// StepError is returned by RunAll when a Fatal step fails.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Summary collects the results of a pass in execution order.
type Summary struct {
	Results []Result
}

// Count returns how many steps ended with o.
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the names of failed steps.
func (s Summary) Failed() []string {
	var names []string
	for _, r := range s.Results {
		if r.Outcome == Failed {
			names = append(names, r.Step)
		}
	}
	return names
}

func (s Summary) String() string {
	return fmt.Sprintf("%d already satisfied, %d installed, %d skipped, %d failed",
		s.Count(AlreadySatisfied), s.Count(Installed), s.Count(Skipped), s.Count(Failed))
}

// Evaluate checks a step's postcondition and installs it when unmet.
func Evaluate(ctx context.Context, r *runner.Runner, s Step) Result {
	log := r.Logger()
	start := time.Now()
	res := Result{Step: s.Name}

	if s.Installed(ctx) {
		log.Info("[INFO] %s: already installed\n", s.Name)
		res.Outcome = AlreadySatisfied
		res.Duration = time.Since(start)
		return res
	}

	log.Info("[INFO] Installing %s...\n", s.Name)
	err := s.Install(ctx)
	res.Duration = time.Since(start)

	switch {
	case err != nil:
		log.Error("[ERROR] %s: failed: %v\n", s.Name, err)
		res.Outcome = Failed
		res.Err = err
	case r.DryRun():
		log.Info("[INFO] %s: not installed, skipped (dry-run)\n", s.Name)
		res.Outcome = Skipped
	case s.Installed(ctx):
		log.Info("[INFO] %s: installed in %s\n", s.Name, res.Duration.Round(time.Millisecond))
		res.Outcome = Installed
	case s.Policy == Fatal:
		// Later steps depend on this postcondition.
		log.Error("[ERROR] %s: failed: %v\n", s.Name, ErrStillMissing)
		res.Outcome = Failed
		res.Err = ErrStillMissing
	default:
		log.Warn("[WARN] %s: install finished but the check still fails; it will be retried next run\n", s.Name)
		res.Outcome = Installed
	}
	return res
}

// RunAll evaluates steps strictly in order. A Fatal failure stops the pass and is returned
// as *StepError; BestEffort failures are recorded and the pass continues. Nothing is
// rolled back: partial work is left for the next run's checks.
func RunAll(ctx context.Context, r *runner.Runner, steps []Step) (Summary, error) {
	var sum Summary
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("interrupted before step %s: %w", s.Name, err)
		}

		res := Evaluate(ctx, r, s)
		sum.Results = append(sum.Results, res)

		if res.Outcome == Failed {
			if s.Policy == Fatal {
				return sum, &StepError{Step: s.Name, Err: res.Err}
			}
			r.Logger().Warn("[WARN] Continuing after best-effort step %s failed\n", s.Name)
		}
	}
	return sum, nil
}

// Status is a read-only view of one step for listings.
type Status struct {
	Name      string
	Policy    Policy
	Satisfied bool
}

// Describe runs every presence check without installing anything.
func Describe(ctx context.Context, steps []Step) []Status {
	out := make([]Status, 0, len(steps))
	for _, s := range steps {
		out = append(out, Status{Name: s.Name, Policy: s.Policy, Satisfied: s.Installed(ctx)})
	}
	return out
}

// Names returns the step names in catalog order.
func Names(steps []Step) string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}
