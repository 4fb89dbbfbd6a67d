// Package content provides the page and node resources and the sources pages
// are fetched from.
package content
