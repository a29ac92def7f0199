// Package render orchestrates the decoder and encoder subprocesses and the
// frame overlay pipeline between them.
package render

// Progress is one transcoding progress report.
type Progress struct {
	Frame       int
	FPS         float64
	Speed       float64
	SizeKB      int
	Time        string
	BitrateKbps float64
	Raw         string
}

// Message is an outbound status message. Delivery order follows the
// originating subprocess's emission order per stream; the decoder and
// encoder streams interleave in real time.
type Message interface {
	isMessage()
}

// DecoderFatalError reports a render-terminating decoder fault.
type DecoderFatalError struct {
	Text string
}

// EncoderFatalError reports a render-terminating encoder fault.
type EncoderFatalError struct {
	Text string
}

// ProgressUpdate carries a transcoding progress report.
type ProgressUpdate struct {
	Progress Progress
}

// DecoderFinished reports the end of the decoder's event stream.
type DecoderFinished struct{}

// EncoderFinished reports the end of the encoder's event stream.
type EncoderFinished struct{}

func (DecoderFatalError) isMessage() {}
func (EncoderFatalError) isMessage() {}
func (ProgressUpdate) isMessage()    {}
func (DecoderFinished) isMessage()   {}
func (EncoderFinished) isMessage()   {}

// ControlMessage is an inbound control message.
type ControlMessage int

// AbortRender asks the orchestrator to stop feeding the encoder and
// terminate both subprocesses.
const AbortRender ControlMessage = iota
