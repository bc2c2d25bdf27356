// Package testing provides test utilities for the Sharder library.
//
// This package offers helpers for observing library behavior inside test
// runs. It follows Go's convention of providing testing utilities in a
// dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - NewTestLogger: types.Logger that writes through testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    shardertest "github.com/arloliu/sharder/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    logger := shardertest.NewTestLogger(t)
//	    // Pass logger to the component under test
//	}
package testing
