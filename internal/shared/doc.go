// Package shared holds code used across layers that belongs to no single
// domain package.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - a buffered slog handler with assertion helpers
//   - fixed payloads for every data source (working sheet, current and
//     history feeds, CDS, CSBS and NYT county feeds)
//   - an httptest server that serves those payloads and counts requests
//
// Example usage:
//
//	func TestLoadCurrent(t *testing.T) {
//	    srv := testutil.NewSourceServer(t, map[string]string{"/states.csv": testutil.CurrentCSV})
//	    // point the loader at srv.URL
//	}
package shared
