package report

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers report files to staff.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// Source is everything the monthly report reads.
type Source interface {
	OrderSource
	TableExporter
}

// Monthly sends last month's order report and a full archive shortly after
// each month starts.
type Monthly struct {
	src      Source
	notifier Notifier
	logger   *zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func NewMonthly(src Source, notifier Notifier, logger *zerolog.Logger) *Monthly {
	return &Monthly{src: src, notifier: notifier, logger: logger, now: time.Now}
}

// Start schedules runs until ctx is done.
func (m *Monthly) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(ctx)
}

// Wait blocks until the scheduler goroutine exits.
func (m *Monthly) Wait() {
	m.wg.Wait()
}

func (m *Monthly) loop(ctx context.Context) {
	defer m.wg.Done()

	next := nextFirstOfMonth(m.now())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	m.logger.Info().Time("next_run", next).Msg("Monthly report scheduled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
			if err := m.Run(runCtx, m.now().AddDate(0, -1, 0)); err != nil {
				m.logger.Error().Err(err).Msg("Monthly report failed")
			}
			cancel()

			next = nextFirstOfMonth(m.now())
			timer.Reset(time.Until(next))
			m.logger.Info().Time("next_run", next).Msg("Monthly report scheduled")
		}
	}
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 5, 0, 0, now.Location())
}

// MonthRange returns the first and last ISO date of the month containing t.
func MonthRange(t time.Time) (from, to string) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1)
	return first.Format("2006-01-02"), last.Format("2006-01-02")
}

// Run sends the report for the month containing month.
func (m *Monthly) Run(ctx context.Context, month time.Time) error {
	from, to := MonthRange(month)
	label := month.Format("2006-01")

	orders, err := Orders(ctx, m.src, from, to)
	if err != nil {
		return fmt.Errorf("orders report: %w", err)
	}
	if err := m.notifier.SendDocument(ctx, "orders_"+label+".xlsx", orders, "📊 Orders "+label); err != nil {
		return fmt.Errorf("send orders report: %w", err)
	}

	archive, err := Archive(ctx, m.src, m.logger)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if err := m.notifier.SendDocument(ctx, "archive_"+label+".xlsx", archive, "🗄 Database archive "+label); err != nil {
		return fmt.Errorf("send archive: %w", err)
	}

	m.logger.Info().Str("month", label).Msg("Monthly report sent")
	return nil
}
