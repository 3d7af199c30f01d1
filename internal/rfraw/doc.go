// Package rfraw owns the pulse-train model and the RFRAW hex codec.
//
// Ownership boundary:
// - PulseTrain sample-domain model
// - histogram clustering of pulse/gap widths
// - B0/B1 hex encode and decode primitives
package rfraw
