// Package profile persists equipment profiles and custom drivers in the
// SQLite profile store.
//
// A profile names the set of drivers (catalog labels plus remote
// driver@host specs) started together as one indiserver instance, along
// with its port and autostart/autoconnect flags. The seeded "Simulators"
// profile is protected from rename and delete so a working configuration
// always exists.
//
// Invariants enforced here rather than in the schema:
//   - At most one profile has autostart set; setting it clears the flag
//     everywhere else in the same transaction.
//   - Remote specs must contain '@'; local driver labels must not.
package profile
