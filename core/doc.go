// Package core contains the canonical repolead domain contracts, entities,
// and configuration. Lower-level adapters and stores must depend on this
// package; core must not depend on provider-specific or transport-specific
// adapters.
package core
