// Package audio loads source audio and normalizes it to a codec's sample
// rate and channel layout, transcoding through ffmpeg when the container is
// not WAV.
package audio
