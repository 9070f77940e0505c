// Package stream provides a per-session event broker for observing
// conversation progress in real time. Subscribers receive agent
// messages, the final summary, and errors as they happen; every
// subscription ends with a terminal done event followed by channel
// close.
package stream
