// Package domain defines the expedition engine's core types and the pure
// validation rules that govern them: expeditions and their character slots,
// the shared world map of squares and quadrants, discoveries, grottos, the
// progress log, and suspended pending choices.
//
// Types in this package carry no storage or transport concerns. Mutating
// helpers operate on values owned by a single expedition; cross-expedition
// state (squares, character records) is only touched through the storage
// interfaces.
package domain
