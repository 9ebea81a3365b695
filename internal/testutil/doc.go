// Package testutil contains helpers shared by this module's own tests: a controllable clock,
// JWT minting and certificate writers.
package testutil
