package http

import "testing"

// SetMultipartMemory lowers the in-memory multipart limit for one test so
// uploads spill to temp files.
func SetMultipartMemory(t *testing.T, n int64) {
	t.Helper()
	prev := multipartMemory
	multipartMemory = n
	t.Cleanup(func() { multipartMemory = prev })
}
