// Package intake contains the public claim-submission surface.
//
// Dealer-originated submissions use claim/complete/fail idempotency
// semantics so transient handler failures remain retryable without
// spending a second claim number.
package intake
