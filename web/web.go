// Package web holds the static browser client.
package web

import _ "embed"

// Index is the single-page client served at the root path.
//
//go:embed index.html
var Index []byte
