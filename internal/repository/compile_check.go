// Package repository contains compile-time interface checks.
package repository

// Compile-time interface checks
var _ CurrenciesRepo = (*CurrencyRepository)(nil)
var _ SubjectsRepo = (*SubjectRepository)(nil)
var _ TransactionsRepo = (*TransactionRepository)(nil)

var _ Repository[string, int] = (*CachedRepository[string, int])(nil)
