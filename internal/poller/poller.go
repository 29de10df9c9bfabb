// Package poller drives the fetch, validate, compare, notify, sleep cycle.
//
// The loop is strictly sequential: one request per cycle, then a fixed sleep.
// Change notifications fire when the latest submission's status differs from
// the previous cycle. Error notifications are deduplicated: the same error is
// reported once until it changes or a cycle succeeds.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"hwbot/internal/homework"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

// Fetcher returns the decoded API body for submissions updated since the timestamp.
type Fetcher interface {
	Fetch(ctx context.Context, since int64) (map[string]any, error)
}

type Config struct {
	Interval time.Duration
	// NotifyInitial announces the first status seen after start.
	// When false it only becomes the baseline for change detection.
	NotifyInitial bool
	Target        kit.ChatTarget
}

// Outcome labels what a cycle did.
type Outcome string

const (
	OutcomeChanged     Outcome = "changed"
	OutcomeBaseline    Outcome = "baseline"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeNoHomeworks Outcome = "no_homeworks"
	OutcomeFetchError  Outcome = "fetch_error"
	OutcomeError       Outcome = "error"
	OutcomeCanceled    Outcome = "canceled"
)

const failurePrefix = "Сбой в работе программы: "

type Poller struct {
	cfg     Config
	fetcher Fetcher
	sender  kit.Sender
	log     logx.Logger
	metrics *Metrics
	now     func() time.Time

	// cycleStart is the unix-nano start of the running cycle, 0 between cycles.
	cycleStart atomic.Int64
}

func New(cfg Config, fetcher Fetcher, sender kit.Sender, log logx.Logger, metrics *Metrics) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		sender:  sender,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run repeats Cycle every Interval until ctx is done. It returns ctx.Err().
func (p *Poller) Run(ctx context.Context, st *State) error {
	p.log.Info("polling started",
		logx.Duration("interval", p.cfg.Interval),
		logx.Int64("from_date", st.Since),
		logx.Bool("notify_initial", p.cfg.NotifyInitial),
	)
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("polling stopped")
			return ctx.Err()
		case <-t.C:
		}
		p.Cycle(ctx, st)
		t.Reset(p.cfg.Interval)
	}
}

// Cycle runs one fetch/validate/compare/notify pass and mutates st.
func (p *Poller) Cycle(ctx context.Context, st *State) Outcome {
	p.cycleStart.Store(p.now().UnixNano())
	defer p.cycleStart.Store(0)
	out := p.cycle(ctx, st)
	p.metrics.cycle(out)
	return out
}

// Stalled reports whether the running cycle started more than limit before now.
// It is safe to call from any goroutine; the loop sleeping between cycles is never stalled.
func (p *Poller) Stalled(now time.Time, limit time.Duration) bool {
	started := p.cycleStart.Load()
	if started == 0 || limit <= 0 {
		return false
	}
	return now.Sub(time.Unix(0, started)) > limit
}

func (p *Poller) cycle(ctx context.Context, st *State) Outcome {
	body, err := p.fetcher.Fetch(ctx, st.Since)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCanceled
		}
		p.reportError(ctx, st, err)
		return OutcomeFetchError
	}

	out, err := p.process(ctx, st, body)
	if err != nil {
		p.reportError(ctx, st, err)
		return OutcomeError
	}

	if !st.LastError.IsZero() {
		p.log.Info("recovered after error", logx.String("last_error", st.LastError.Text))
	}
	st.LastError = ErrorMemo{}
	if ts, ok := homework.CurrentDate(body); ok && ts > st.Since {
		st.Since = ts
	}
	p.metrics.success(p.now().Unix())
	return out
}

// process validates the body and handles a status change. Panics become errors.
func (p *Poller) process(ctx context.Context, st *State, body map[string]any) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	rec, err := homework.Latest(body)
	if errors.Is(err, homework.ErrNoHomeworks) {
		p.log.Debug("no status updates")
		return OutcomeNoHomeworks, nil
	}
	if err != nil {
		return "", err
	}
	sub, err := homework.ParseSubmission(rec)
	if err != nil {
		return "", err
	}

	if st.HaveStatus && sub.Status == st.LastStatus {
		p.log.Debug("status unchanged", logx.String("homework", sub.Name), logx.String("status", sub.Status.String()))
		return OutcomeUnchanged, nil
	}

	initial := !st.HaveStatus
	st.LastStatus, st.HaveStatus = sub.Status, true
	if initial && !p.cfg.NotifyInitial {
		p.log.Info("initial status recorded", logx.String("homework", sub.Name), logx.String("status", sub.Status.String()))
		return OutcomeBaseline, nil
	}

	p.log.Info("status changed", logx.String("homework", sub.Name), logx.String("status", sub.Status.String()))
	p.send(ctx, "change", sub.Message())
	return OutcomeChanged, nil
}

func (p *Poller) reportError(ctx context.Context, st *State, err error) {
	memo := memoOf(err)
	p.log.Error("cycle failed", logx.String("kind", string(memo.Kind)), logx.Err(err))
	if memo == st.LastError {
		p.log.Debug("error already reported; not resending", logx.String("kind", string(memo.Kind)))
		return
	}
	st.LastError = memo
	p.send(ctx, "error", failurePrefix+memo.Text)
}

// send delivers text; failures are logged, never retried.
func (p *Poller) send(ctx context.Context, kind, text string) {
	_, err := p.sender.SendText(ctx, p.cfg.Target, text, nil)
	p.metrics.notification(kind, err)
	if err != nil {
		p.log.Error("failed to send message", logx.String("kind", kind), logx.Err(err))
		return
	}
	p.log.Info("message sent", logx.String("kind", kind), logx.Int64("chat_id", p.cfg.Target.ChatID))
}
