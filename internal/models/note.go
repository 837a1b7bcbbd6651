// Package models defines the domain types for Jotter.
package models

// Note is a single entry in a user's notebook. Title and Content are stored
// already sanitized.
type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// IndexedNote pairs a note with its position at the time it was read.
// The index is only meaningful until the next delete in the same notebook.
type IndexedNote struct {
	Index int `json:"index"`
	Note
}
