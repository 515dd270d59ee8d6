// Package processor adapts the Stripe API to the consumer interfaces of the
// accounts and reconcile packages. Amounts cross the boundary as int64 minor units.
package processor
