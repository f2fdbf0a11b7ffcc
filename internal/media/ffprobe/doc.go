// Package ffprobe wraps the ffprobe binary.
//
// Key types:
//   - Prober: runs ffprobe with a configurable binary
//   - Result: parsed stream and format metadata from Inspect
//
// Primary entry points:
//   - Prober.Duration: the container duration used to pick the direct or
//     chunked transcription strategy; failures are tagged services.ErrProbe
//   - Prober.Inspect: full JSON inspection for operator diagnostics
package ffprobe
