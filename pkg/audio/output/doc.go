// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface and malgo, oto and PortAudio backends
// Package output plays PCM pulled from the shared queue.
//
// Backends run their own realtime thread and read whole frames from a
// queue.Consumer, padding with silence when the network falls behind.
//
// Example:
//
//	prod, cons := queue.New(queue.DefaultCapacity)
//	out, err := output.New(output.BackendMalgo, "", logger)
//	err = out.Open(audio.Format{SampleFormat: audio.I16, Channels: 1, SampleRate: 48000}, cons)
package output
