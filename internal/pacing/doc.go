// Package pacing decides how long the run waits: between sends, while a page
// settles, while a message is typed, and before a retry. It also holds the
// consecutive-failure breaker that ends a run early.
//
// All randomness comes from a Policy, which tests construct with a fixed seed.
package pacing
