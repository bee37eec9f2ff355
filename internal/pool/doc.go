// Package pool implements the concurrent request-execution pool: requests
// submitted from any number of call sites are distributed across a fixed
// set of workers, each owning a private client, and every result is
// reconciled back to the exact caller that asked for it through a Future.
//
// One delivery manager goroutine matches out-of-order completions against
// the pending-future registry; the façade is the only inserter and the
// manager the only remover. Requests and responses are treated as opaque
// payloads — the pool never interprets, validates, or retries them.
package pool
