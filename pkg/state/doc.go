// Package state defines the persistence-facing contract a view state snapshot
// is handed to, plus a keep-alive helper that suspends and resumes a view
// through it.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - KeepAlive retrieves a view's snapshot on suspension and applies it
//     back on resumption as a restored application state.
//   - The root viewstate package remains persistence-agnostic; the physical
//     medium (URL, browser storage, app-state service) stays behind Store
//     implementations supplied by consumers.
//
// Data flow:
//
//	Controller.RetrieveViewState -> KeepAlive.Suspend -> Store.Save
//	Store.Load -> KeepAlive.Resume -> Controller.ApplyViewState(iAppState)
//
// Deterministic keys:
//
//	Ref.Identifier() renders "<app>/<view>". Adapters that persisted under a
//	different layout handle the migration themselves.
package state
