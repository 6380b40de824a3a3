// Package model defines the data structures shared by the sources, the ledger and the publisher. An Item is a single news entry discovered on a feed; its identity across runs is derived by the ledger package.
package model

import "time"

type Item struct {
	Title      string
	Link       string
	ImageURL   string
	TrailerURL string
	Summary    string
	Categories []string
	Date       time.Time
	SourceName string
}

// HasImage reports whether the item carries a thumbnail worth probing.
func (i Item) HasImage() bool {
	return i.ImageURL != ""
}
