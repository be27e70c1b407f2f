// Package fec implements systematic low-density parity-check (LDPC)
// encoding and iterative belief-propagation decoding.
//
// A ParityCheckMatrix holds the Tanner graph of the code as index-based
// adjacency lists. The Encoder derives a cached systematic generator from
// it once, at configuration time; the Decoder passes soft messages over the
// graph until every parity check is satisfied or the iteration budget runs
// out. All types are immutable after construction except the per-call
// decoder state, so a single code can serve any number of goroutines.
package fec
