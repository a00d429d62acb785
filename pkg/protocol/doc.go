// ABOUTME: AndroidMic wire protocol package
// ABOUTME: Defines audio packet messages, framing and handshake constants
// Package protocol implements the AndroidMic wire protocol.
//
// Each frame on the wire is a 4-byte big-endian length followed by a
// protobuf-encoded message. TCP carries AudioPacket frames after a
// fixed-token handshake; UDP carries OrderedAudioPacket frames, one or more
// per datagram.
//
// Example:
//
//	var dec protocol.FrameDecoder
//	dec.Feed(chunk)
//	for {
//	    frame, ok, err := dec.Next()
//	    if err != nil || !ok {
//	        break
//	    }
//	    pkt, err := protocol.UnmarshalAudioPacket(frame)
//	}
package protocol
