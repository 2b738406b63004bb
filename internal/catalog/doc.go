// Package catalog discovers installed INDI drivers.
//
// libindi installs one XML file per driver package under its data
// directory (normally /usr/share/indi), listing devices grouped by
// family with the executable that drives them. This package scans those
// files into an in-memory catalog keyed by device label, which profiles
// use to resolve labels to binaries at server start.
//
// User-registered custom drivers (stored in the profile database) are
// layered over the scanned set and shadow catalog entries with the same
// label.
package catalog
