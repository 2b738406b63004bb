// Package indi implements the INDI wire protocol: the property data
// model, the streaming XML decoder, client write encoding, and INDI
// number parsing and formatting (including the sexagesimal %m format).
//
// The protocol is a sequence of top-level XML elements exchanged over a
// TCP connection, defined by the INDI white paper. Servers push property
// definitions (defTextVector and friends), value updates (setXXXVector),
// deletions (delProperty) and free-form messages; clients request
// definitions with getProperties and submit writes with newXXXVector.
//
// This package is pure protocol: no sockets, no state. The bridge
// package owns the connection and the mirrored property trees.
package indi
