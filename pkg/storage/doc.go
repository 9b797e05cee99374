// Package storage defines the run history contract shared by the storage
// adapters (memory, postgres), together with sentinel errors and owner
// context helpers.
package storage
