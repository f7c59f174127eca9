// Package testutil provides test fixtures, builders and mock networks shared
// across the pipeline's tests.
//
// Mock capability implementations (mock chain client, relay client, proof
// engine, key store) live in the root package's test files to avoid import
// cycles; this package only holds utilities that don't depend on pipeline
// types.
package testutil
