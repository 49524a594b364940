// Package api provides HTTP handlers for the review engine: the unified
// review surface, bulk card operations, and study session tracking.
package api
