// Package harvest runs an image search through the download pipeline.
//
// A run pulls references from a search.Provider in order and admits each
// one under a single lock that checks the per-run cap and the dedup set.
// Admitted references are handed to a fixed pool of workers through an
// unbuffered channel, so the provider is only paged as fast as workers free
// up. Each worker fetches, filters, converts and writes one image and emits
// exactly one outcome.
//
// A run moves through Idle, Admitting, Draining and Done. Once admission
// stops, because the cap was hit, the provider ran dry or failed, or the
// context was canceled, the run waits for every admitted reference to
// finish before returning its report.
package harvest
