package audio

import "errors"

// Errors surfaced by the audio engine.
var (
	ErrNoInputDevice     = errors.New("audio: no input device")
	ErrNoOutputDevice    = errors.New("audio: no output device")
	ErrUnsupportedConfig = errors.New("audio: no supported f32 stream config")
	ErrStreamBuild       = errors.New("audio: failed to build stream")
	ErrStreamPlay        = errors.New("audio: failed to start stream")
)
