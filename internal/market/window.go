package market

import "time"

type point struct {
	ts    time.Time
	price float64
}

// tradeWindow keeps prices whose timestamp lies within horizon of now.
// Arrival order is preserved; pruning never re-admits a dropped point.
type tradeWindow struct {
	horizon time.Duration
	points  []point
}

func newTradeWindow(horizon time.Duration) *tradeWindow {
	return &tradeWindow{horizon: horizon}
}

func (w *tradeWindow) push(ts time.Time, price float64) {
	w.points = append(w.points, point{ts: ts, price: price})
}

// prune drops every point older than the horizon. Batches are not
// guaranteed to be time-sorted, so the whole window is filtered in place.
func (w *tradeWindow) prune(now time.Time) {
	kept := w.points[:0]
	for _, p := range w.points {
		if now.Sub(p.ts) <= w.horizon {
			kept = append(kept, p)
		}
	}
	clear(w.points[len(kept):])
	w.points = kept
}

func (w *tradeWindow) len() int {
	return len(w.points)
}

func (w *tradeWindow) first() point {
	return w.points[0]
}

func (w *tradeWindow) last() point {
	return w.points[len(w.points)-1]
}
