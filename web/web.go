// Package web holds the HTML served on /.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS
