// Package oracle provides the Oracle driver implementation on top of
// github.com/godror/godror. The driver needs cgo and the Oracle client
// libraries; builds without cgo still get the Dialect, which the pure-Go
// go-ora driver reuses.
package oracle
