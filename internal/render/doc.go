// Package render draws the latency window on the console.
//
// Each accepted sample prints a single line with the window size, the
// newest height and latency, min/avg/max, and a sparkline of the whole
// window. Resets print their own marker line so mode switches stand
// out in scrollback.
package render
