// Package apierror classifies failed backend calls into a fixed set of kinds and
// carries the backend's message and field-level validation errors to callers.
//
// Every non-2xx response and every transport failure seen by the request pipeline
// becomes an [*Error]. Callers branch on [Error.Kind] with [IsKind] or errors.As.
package apierror
