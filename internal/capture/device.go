package capture

import "github.com/MrWong99/notemate/pkg/audio"

// Device opens audio input streams. Implementations wrap a platform audio
// API; tests provide a fake that delivers chunks on demand.
type Device interface {
	// Open prepares an input stream in the given format. onData is invoked
	// with each chunk of interleaved signed 16-bit samples as it arrives.
	// The slice passed to onData may be reused by the device after onData
	// returns.
	Open(format audio.Format, onData func(samples []int16)) (Stream, error)
}

// Stream is an opened input stream.
type Stream interface {
	// Start begins delivering audio to the onData callback.
	Start() error

	// Close stops the stream and releases it. After Close returns, onData is
	// not invoked again.
	Close() error
}
