// Package stitch places rendered segments on a common timeline.
package stitch
