package capture

import "strings"

// Format is an audio encoding: the file extension sent to the transcription
// service and the MIME type requested from the device.
type Format struct {
	Ext  string
	MIME string
}

// BaseMIME is MIME without parameters, e.g. "audio/webm".
func (f Format) BaseMIME() string {
	base, _, _ := strings.Cut(f.MIME, ";")
	return strings.TrimSpace(base)
}

// Formats is the preference order; the first supported one wins.
var Formats = []Format{
	{Ext: "webm", MIME: "audio/webm;codecs=opus"},
	{Ext: "ogg", MIME: "audio/ogg;codecs=opus"},
	{Ext: "mp4", MIME: "audio/mp4"},
	{Ext: "wav", MIME: "audio/wav"},
	{Ext: "mpeg", MIME: "audio/mpeg"},
	{Ext: "mpga", MIME: "audio/mpga"},
}

// SelectFormat returns the first entry of Formats accepted by supports.
func SelectFormat(supports func(mime string) bool) (Format, error) {
	for _, f := range Formats {
		if supports(f.MIME) {
			return f, nil
		}
	}
	return Format{}, ErrNoSupportedFormat
}
