// Package gate decides whether an agent may stop. It looks at the newest code
// review for the branch and, when there is none, at uncommitted code changes.
// Every denial cause blocks at most once: the first denial leaves a marker and
// later requests for the same cause are let through with a warning.
package gate

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/rocky2431/ultra-builder-pro/internal/gitutil"
	"github.com/rocky2431/ultra-builder-pro/internal/memory"
	"github.com/rocky2431/ultra-builder-pro/internal/review"
)

// Action is what the host should do with the stop request.
type Action int

const (
	Allow Action = iota
	Warn
	Deny
)

func (a Action) String() string {
	switch a {
	case Warn:
		return "warn"
	case Deny:
		return "deny"
	default:
		return "allow"
	}
}

// Decision is the outcome of one Evaluate call.
type Decision struct {
	Action    Action
	Reason    string
	MarkerKey string // set when a marker was consulted
}

// Repo is the git state the gate reads.
type Repo interface {
	Branch(ctx context.Context) (string, error)
	Status(ctx context.Context) ([]gitutil.Change, error)
}

// History supplies the last stored summary for a branch.
type History interface {
	LatestForBranch(ctx context.Context, branch string) (*memory.Session, error)
}

// Options configures an Engine.
type Options struct {
	ReviewsDir    string
	TrunkBranches []string
	ReviewMaxAge  time.Duration
	ReviewGrace   time.Duration
	Classifier    *Classifier
	Markers       *Markers
	History       History // optional
	Logger        *log.Logger
	Now           func() time.Time
}

// Engine evaluates stop requests.
type Engine struct {
	repo Repo
	opts Options
}

const maxListedFiles = 8

// New returns an engine reading git state from repo.
func New(repo Repo, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[stop_gate] ", 0)
	}
	return &Engine{repo: repo, opts: opts}
}

// Evaluate runs the gate once. It never fails: environment problems degrade
// to Allow.
func (e *Engine) Evaluate(ctx context.Context) Decision {
	if n, err := e.opts.Markers.Sweep(); err != nil {
		e.opts.Logger.Printf("marker sweep failed: %v", err)
	} else if n > 0 {
		e.opts.Logger.Printf("removed %d expired markers", n)
	}

	branch, err := e.repo.Branch(ctx)
	if err != nil {
		e.opts.Logger.Printf("git branch unavailable, allowing stop: %v", err)
		return Decision{Action: Allow}
	}

	sess, err := review.Locate(e.opts.ReviewsDir, branch)
	if err != nil {
		e.opts.Logger.Printf("review lookup failed, allowing stop: %v", err)
		return Decision{Action: Allow}
	}
	if sess != nil {
		if d, handled := e.checkReview(ctx, sess, branch); handled {
			return d
		}
	}

	return e.checkChanges(ctx, branch)
}

// checkReview applies the review verdict. handled is false when the review is
// too old to matter and the code-change check should run instead.
func (e *Engine) checkReview(ctx context.Context, sess *review.Session, branch string) (Decision, bool) {
	now := e.opts.Now()
	age := sess.Age(now)

	if !sess.Scoped && sess.Branch != "" && sess.Branch != branch {
		// no branch index: the newest review may belong to another branch
		e.opts.Logger.Printf("review %s was recorded for branch %q, current branch is %q", sess.ID, sess.Branch, branch)
	}

	if sess.Unusable() {
		e.opts.Logger.Printf("review %s has an unusable summary, ignoring: %v", sess.ID, sess.Err)
		return Decision{}, false
	}

	if e.opts.ReviewMaxAge > 0 && age > e.opts.ReviewMaxAge {
		e.opts.Logger.Printf("review %s is %s old, ignoring", sess.ID, units.HumanDuration(age))
		return Decision{}, false
	}

	if !sess.Complete() {
		if age < e.opts.ReviewGrace {
			return Decision{
				Action: Warn,
				Reason: fmt.Sprintf("[Stop Gate] Review %s has no summary yet (started %s ago); agents may still be running.",
					sess.ID, units.HumanDuration(age)),
			}, true
		}
		reason := fmt.Sprintf("[Stop Gate] Review %s was abandoned: no SUMMARY.json after %s.\n\n"+
			"Finish the review or rerun it before completing.", sess.ID, units.HumanDuration(age))
		return e.denyOnce(ctx, "review-"+sess.ID, reason, branch), true
	}

	s := sess.Summary
	switch s.Verdict {
	case review.VerdictPending:
		return Decision{
			Action: Warn,
			Reason: fmt.Sprintf("[Stop Gate] Review %s still in progress.", sess.ID),
		}, true
	case review.VerdictApprove, review.VerdictComment:
		return Decision{
			Action: Allow,
			Reason: fmt.Sprintf("[Stop Gate] Review %s verdict %s.", sess.ID, s.Verdict),
		}, true
	case review.VerdictRequestChanges:
		counts := s.Counts()
		var reason string
		if counts["P0"] > 0 {
			reason = fmt.Sprintf("[Stop Gate] Review %s requested changes with %d P0 (blocking) finding(s) and %d P1.\n\n"+
				"Fix the P0 findings, then update the verdict before completing.", sess.ID, counts["P0"], counts["P1"])
		} else {
			reason = fmt.Sprintf("[Stop Gate] Review %s requested changes (%d P1 finding(s)).\n\n"+
				"Address the findings or update the verdict before completing.", sess.ID, counts["P1"])
		}
		return e.denyOnce(ctx, "review-"+sess.ID, reason, branch), true
	}

	e.opts.Logger.Printf("review %s has unknown verdict %q, ignoring", sess.ID, s.Verdict)
	return Decision{}, false
}

func (e *Engine) checkChanges(ctx context.Context, branch string) Decision {
	if slices.Contains(e.opts.TrunkBranches, branch) {
		return Decision{Action: Allow}
	}

	changes, err := e.repo.Status(ctx)
	if err != nil {
		e.opts.Logger.Printf("git status unavailable, allowing stop: %v", err)
		return Decision{Action: Allow}
	}

	changed := e.opts.Classifier.ChangedFiles(changes)
	code := e.opts.Classifier.CodeFiles(changed)
	if len(code) == 0 {
		return Decision{Action: Allow}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Stop Gate] %d code file(s) changed:\n", len(code))
	for _, f := range code[:min(len(code), maxListedFiles)] {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	if len(code) > maxListedFiles {
		fmt.Fprintf(&b, "  ... and %d more\n", len(code)-maxListedFiles)
	}
	b.WriteString("\nRun code-reviewer agent to review changes before completing.")

	return e.denyOnce(ctx, "changes-"+ChangeSetKey(changed), b.String(), branch)
}

// denyOnce denies the first time key is seen and warns afterwards.
func (e *Engine) denyOnce(ctx context.Context, key, reason, branch string) Decision {
	created, err := e.opts.Markers.Claim(key)
	if err != nil && !created {
		// without a marker the next stop would deny again, forever
		e.opts.Logger.Printf("cannot record marker %s, downgrading to warning: %v", key, err)
		return Decision{Action: Warn, Reason: reason, MarkerKey: key}
	}
	if !created {
		return Decision{Action: Warn, Reason: reason, MarkerKey: key}
	}

	if last := e.lastSummary(ctx, branch); last != "" {
		reason += "\n\nLast session on this branch: " + last
	}
	return Decision{Action: Deny, Reason: reason, MarkerKey: key}
}

func (e *Engine) lastSummary(ctx context.Context, branch string) string {
	if e.opts.History == nil || branch == "" {
		return ""
	}
	sess, err := e.opts.History.LatestForBranch(ctx, branch)
	if err != nil {
		e.opts.Logger.Printf("session history unavailable: %v", err)
		return ""
	}
	if sess == nil || sess.Summary == "" {
		return ""
	}
	return memory.Clip(strings.Join(strings.Fields(sess.Summary), " "), 160)
}
