// Package spoolman owns the spool inventory collaborator.
//
// Ownership boundary:
// - spool record shape (order-preserving tagged values)
// - inventory HTTP lookup with three-way result classification
package spoolman
