// Package clocksync makes timestamps of processes without a common clock
// comparable.
//
// Every process keeps an append-only list of Offset samples. With a global
// timer each synchronization adds (now, 0, 0). Otherwise rank 0 measures every
// other rank with ping-pong round trips, picks the round with the smallest
// round-trip time and sends the midpoint of that round to the worker, which
// stores the difference to its own clock. Local timestamps are translated by
// linear interpolation between samples.
package clocksync
