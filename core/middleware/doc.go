// Package middleware contains HTTP middleware for the report API.
//
// # Components
//
//   - auth: API key validation through the X-API-Key header.
//   - rayid: assigns a RayID to every request, stored in the context locals
//     and echoed in the X-Ray-ID response header for tracing.
//
// Both are registered globally by the serve command, rayid first.
package middleware
