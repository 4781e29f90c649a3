// Package model describes the base objects manipulated by the global ref database and its validators.
//
// The object model is composed of:
//
//	ObjectID:
//	  A lower case hex hash identifying some content. The zero id stands for an absent ref.
//
//	Ref:
//	  A named pointer within a project, either direct (to an ObjectID) or symbolic (to another ref).
//
//	RefUpdate, Command:
//	  Requests to move a single ref, or one ref of a batch, to a new value.
//
//	Result:
//	  The outcome of applying an update, locally or as a whole.
package model
