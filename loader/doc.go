// Package loader decodes texture payloads off the render thread.
//
// DecodeImage and LoadImage turn PNG, JPEG, BMP, TIFF and WebP data into
// RGBA8 gpucore.TextureData. Pool runs such work on a bounded set of
// goroutines and hands back a Future per task. The render thread polls the
// futures between frames and uploads finished payloads itself, so devices
// are only touched from one goroutine.
package loader
