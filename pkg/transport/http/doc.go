// Package http serves the playground API, static files and health
// endpoints over HTTP, and manages the server lifecycle.
package http
