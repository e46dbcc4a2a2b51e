// Package service contains compile-time interface checks.
package service

// Compile-time checks to ensure all service implementations satisfy their interfaces.
var (
	_ LedgerService = (*TransactionHandler)(nil)
)
