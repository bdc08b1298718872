// Package advice keeps the latest advice text current as the ledger changes.
package advice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/ai"
	"github.com/dvloznov/moliya/internal/domain"
	"github.com/dvloznov/moliya/internal/jobs"
	"github.com/dvloznov/moliya/internal/ledger"
)

// Analyzing is shown until the first refresh completes.
const Analyzing = "Ma'lumotlar tahlil qilinmoqda..."

// Advice is the currently displayed tip.
type Advice struct {
	Text      string    `json:"text"`
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Refresher issues sequenced advice jobs and applies only the newest result.
type Refresher struct {
	publisher jobs.Publisher
	advisor   ai.AdviceGenerator
	window    int
	retries   int
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	issued  uint64
	current Advice
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithRetries sets how many times a failed advice job is retried before the
// fallback text is shown.
func WithRetries(n int) Option { return func(r *Refresher) { r.retries = n } }

// NewRefresher creates a refresher. Advisor errors are retried through the
// queue; once a job runs out of retries ai.AdviceErrorFallback is shown.
func NewRefresher(publisher jobs.Publisher, advisor ai.AdviceGenerator, window int, logger zerolog.Logger, opts ...Option) *Refresher {
	if window <= 0 {
		window = ai.AdviceWindow
	}
	r := &Refresher{
		publisher: publisher,
		advisor:   advisor,
		window:    window,
		logger:    logger,
		now:       time.Now,
		current:   Advice{Text: Analyzing},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retries < 0 {
		r.retries = 0
	}
	return r
}

// Current returns the latest applied advice.
func (r *Refresher) Current() Advice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Refresh requests new advice for txs (most recent first). An empty ledger is
// answered immediately without calling the advisor.
func (r *Refresher) Refresh(ctx context.Context, txs []domain.Transaction) error {
	r.mu.Lock()
	r.issued++
	seq := r.issued
	r.mu.Unlock()

	if len(txs) == 0 {
		r.apply(seq, ai.AdviceNoData)
		return nil
	}

	window := ai.Window(txs, r.window)
	job := &jobs.AdviceJob{
		Seq:          seq,
		Transactions: append([]domain.Transaction(nil), window...),
		MaxRetries:   r.retries,
	}
	if err := r.publisher.PublishAdvice(ctx, job); err != nil {
		return fmt.Errorf("Refresher.Refresh: publish: %w", err)
	}
	return nil
}

// OnLedgerChange is a ledger.Listener that triggers a refresh.
func (r *Refresher) OnLedgerChange(snap ledger.Snapshot) {
	if err := r.Refresh(context.Background(), snap.Transactions); err != nil {
		r.logger.Warn().Err(err).Msg("failed to schedule advice refresh")
	}
}

// Handle is the jobs.JobHandler for advice jobs. An advisor error is returned
// for retry while the job has retries left; the last attempt applies the
// fallback text and still reports the error.
func (r *Refresher) Handle(ctx context.Context, job jobs.Job) error {
	aj, ok := job.(*jobs.AdviceJob)
	if !ok {
		return fmt.Errorf("Refresher.Handle: unexpected job type %s", job.GetType())
	}
	if r.superseded(aj.Seq) {
		return jobs.ErrStale
	}

	text, err := r.advisor.Advise(ctx, aj.Transactions)
	if err != nil && aj.RetryCount < aj.MaxRetries && !errors.Is(err, ai.ErrUnavailable) {
		return fmt.Errorf("Refresher.Handle: advise: %w", err)
	}
	if err != nil {
		r.logger.Warn().Err(err).Uint64("seq", aj.Seq).Int("attempts", aj.RetryCount+1).
			Msg("advice generation failed, using fallback")
	}
	if !r.apply(aj.Seq, ai.AdviceOrFallback(text, err)) {
		return jobs.ErrStale
	}
	if err != nil {
		return fmt.Errorf("Refresher.Handle: advise: %w: %w", jobs.ErrPermanent, err)
	}
	return nil
}

func (r *Refresher) superseded(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return seq != r.issued
}

// apply stores text if seq is still the latest issued.
func (r *Refresher) apply(seq uint64, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.issued {
		r.logger.Debug().Uint64("seq", seq).Uint64("latest", r.issued).Msg("dropping stale advice")
		return false
	}
	r.current = Advice{Text: text, Seq: seq, UpdatedAt: r.now()}
	return true
}
