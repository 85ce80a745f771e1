// Package expert defines the capability contract for backend domain experts
// (generate, embed, availability) together with a deterministic in-memory
// Mock for tests and a retrying call helper shared by the fan-out
// compositions. Concrete provider adapters live in subpackages.
package expert
