// Package integration runs the write pipeline against a real Postgres, where
// transactions interleave instead of queueing on a single SQLite connection.
//
// The tests are behind the "postgres" build tag:
//
//	go test -tags postgres ./internal/integration/...
//
// FARMOPS_TEST_DSN points them at an existing database; without it a
// throwaway container is started through testcontainers.
package integration
