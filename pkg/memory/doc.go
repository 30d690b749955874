// Package memory provides an in-memory request client for bindings.
//
// Responsibilities:
//   - Store keeps one Model per Ref (resource + record id) and preserves
//     insertion order per resource.
//   - Backend implements binding.Client and binding.Configurer on top of a
//     Store: index filtering and paging, required-field validation, login
//     against a credential table and bearer token checks.
//   - When the factory hands it a records slice, a configured Backend tracks a
//     records.Set and returns its snapshot with every mutation.
//
// Data flow:
//
//	binding.Factory -> Backend.Configure -> Backend -> Store
//
// Failures that a server would report (missing record, invalid payload,
// unauthorized) are returned as binding.ErrorDetail values. Only context
// errors are returned as Go errors.
package memory
