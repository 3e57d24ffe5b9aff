package models

import (
	"errors"
	"strings"
)

const DefaultMediaType = "audio/wav"

// AudioClip is a finished recording handed over by the capture front-end.
type AudioClip struct {
	Data      []byte
	MediaType string
}

func NewAudioClip(data []byte, mediaType string) AudioClip {
	mediaType = strings.TrimSpace(mediaType)
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i]) // drop codecs=... params
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = DefaultMediaType
	}
	return AudioClip{Data: data, MediaType: strings.ToLower(mediaType)}
}

func (c AudioClip) Size() int { return len(c.Data) }

func (c AudioClip) Validate() error {
	if len(c.Data) == 0 {
		return errors.New("audio clip is empty")
	}
	if !strings.HasPrefix(c.MediaType, "audio/") {
		return errors.New("media type must be audio/*")
	}
	return nil
}

// Extension returns the object key suffix for the clip's media type.
func (c AudioClip) Extension() string {
	switch c.MediaType {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	default:
		return ""
	}
}
