package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/compiler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/metrics"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/repository"
)

// Populate expands rec over the horizon and upserts every occurrence from
// the current minute on into the due index, each tagged with the record's
// current hash. Earlier occurrences of today are dropped so a row the
// reconciler already executed is never queued again. It is safe to call
// repeatedly: rows are replaced by key. source labels the producer in metrics.
func Populate(
	ctx context.Context,
	due repository.DueIndexRepository,
	rec *domain.ScheduleRecord,
	horizonDays int,
	now time.Time,
	source string,
) (int, error) {
	occs, err := compiler.Expand(rec.ResourceID, rec, horizonDays, now)
	if err != nil {
		return 0, err
	}

	current := compiler.Bucket(now)
	written := 0
	for i := range occs {
		if occs[i].TimeBucket < current {
			continue
		}
		if err := due.Upsert(ctx, &occs[i]); err != nil {
			return written, fmt.Errorf("populate %s: %w", rec.ResourceID, err)
		}
		written++
		metrics.OccurrencesWrittenTotal.WithLabelValues(source).Inc()
	}
	return written, nil
}
