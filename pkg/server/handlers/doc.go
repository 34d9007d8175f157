// Package handlers implements the JSON API of the budget service.
//
// Every response carries the envelope {"success": bool, "message": string}
// plus endpoint-specific fields. Errors from the domain packages are mapped
// to status codes in one place, writeError.
package handlers
