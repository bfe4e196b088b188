// Package document defines the persisted game document: a metadata envelope
// around an opaque game state, its identifier format, its JSON codec and the
// lifetime rules (creation, access, expiry) attached to the envelope.
package document
