package usecase

import "time"

// SetClock pins the time ingest expands from.
func (u *IngestUsecase) SetClock(now func() time.Time) {
	u.now = now
}
