// Package core contains the warranty-claims domain contracts, entities, and
// orchestration logic, including the durable claim-number allocator. Lower
// level adapters must depend on this package; core must not depend on
// provider-specific or transport-specific adapters.
package core
