// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import "context"

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(prefix string)
}

// LedgerStore defines every data operation the ledger needs.
// Implemented by the Supabase adapter and by the in-memory store.
type LedgerStore interface {
	CardStore
	ProductStore
	PurchaseStore
	PaymentStore
	StockStore
	ClientStore
	SaleStore

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}
