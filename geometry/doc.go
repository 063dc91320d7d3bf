// Package geometry turns named vertex arrays into GPU vertex and index
// buffers.
//
// [Interleave] packs flat per-attribute arrays into one buffer following a
// stride spec, and derives the matching vertex layout. [Factory] looks the
// spec up in the resource manager's stride table, so the same arrays can be
// fed to any shader that declares which attributes it consumes.
package geometry
