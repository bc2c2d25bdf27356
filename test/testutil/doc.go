// Package testutil provides shared utilities for the integration and stress
// suites.
//
// This package contains the pieces those suites have in common:
//   - Addr, a deterministic address generator for seeding account pools
//   - LoadGenerator, which sustains concurrent Apply traffic against a
//     manager while sampling resource usage
//   - Assertion helpers that check balance conservation and placement
//     consistency after migrations
//
// Unit tests live next to the packages they cover; this package exists for
// scenarios that exercise the public API end to end.
package testutil
