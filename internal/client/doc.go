// Package client implements the connection controller at the heart of the
// CXP client.
//
// The controller owns one connection entry per extension that should be
// active for the current environment snapshot. Replacing the snapshot via
// SetEnvironment triggers a reconciliation pass: extensions newly wanted by
// the activation filter get a connection (transport selection, protocol
// handshake), extensions no longer wanted are torn down, and unchanged
// extensions keep their entry untouched. Reconciliation passes are
// serialized; the connection I/O they dispatch is not.
//
// Every connection's lifecycle transitions and protocol notifications are
// merged into controller-wide channels, so consumers observe one stream per
// concern regardless of how many extensions are live.
package client
