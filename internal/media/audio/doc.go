// Package audio prepares media for the transcription engine with ffmpeg.
//
// Extractor normalizes video into a mono 16 kHz MP3 track (a no-op for inputs
// that are already audio). Chunker splits long audio into fixed-duration
// segments by stream copy into a fresh temporary directory. Both report a
// nonzero ffmpeg exit as services.ErrTool.
package audio
