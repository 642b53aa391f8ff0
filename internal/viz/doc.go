// Package viz holds the terminal drawing primitives used by the viewer: a
// braille [Canvas], a planar rendering of the joint chain, color themes and
// the lipgloss styles derived from them.
package viz
