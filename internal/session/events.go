package session

import "time"

// Event reports transfer progress or the terminal outcome of one run.
// Exactly one terminal event is delivered per run, after which the event
// channel is closed.
type Event struct {
	// Percent is the completed share of the transfer, 0 to 100.
	Percent int

	// SectorsDone and TotalSectors count acknowledged sectors.
	SectorsDone  int
	TotalSectors int

	// BytesWritten is the number of image bytes acknowledged so far.
	BytesWritten int

	// Elapsed is the time since the run started.
	Elapsed time.Duration

	// Terminal marks the last event of the run.
	Terminal bool

	// Err is the failure cause on a terminal event, nil on success.
	// Sector-phase failures carry the failing sector in a *SectorError or
	// *SectorRejectedError.
	Err error
}

// progressPercent rounds 100*done/total to the nearest integer.
func progressPercent(done, total int) int {
	if total == 0 {
		return 100
	}
	return (200*done + total) / (2 * total)
}
