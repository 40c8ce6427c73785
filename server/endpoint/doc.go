// Package endpoint provides the Gin handlers mounted by the server.
package endpoint
