package protocol

const (
	HeaderLen     int = 4           // Big-endian uint32 payload length prefix
	MaxMessageLen int = 1024 * 1024 // Largest payload accepted on any transport
	discardChunk  int = 64 * 1024   // Scratch size used when draining oversized payloads
	windowRadius  int = 10          // Characters shown on either side of a decode failure
	maxEmptyReads int = 100         // Consecutive (0, nil) reads tolerated before giving up
	windowPrefix      = "Received JSON: "
	caretMarker       = "^ HERE"
)
