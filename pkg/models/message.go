package models

// Message variants. A message carries at most one attachment, referenced by
// the URL field matching its variant.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVoice = "voice"
)

// ValidType reports whether t is a known message variant.
func ValidType(t string) bool {
	return t == TypeText || t == TypeImage || t == TypeVoice
}

type Message struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Content  string `json:"content,omitempty"`
	Room     string `json:"room"`
	// Created timestamp (ns)
	TS int64 `json:"ts"`
	// Expiry timestamp (ns); always TS + configured TTL
	ExpiresAt int64  `json:"expires_at"`
	Type      string `json:"message_type"`
	ImageURL  string `json:"image_url,omitempty"`
	VoiceURL  string `json:"voice_url,omitempty"`
}

// AttachmentURL returns the URL of the message's attachment, if any.
func (m Message) AttachmentURL() string {
	switch m.Type {
	case TypeImage:
		return m.ImageURL
	case TypeVoice:
		return m.VoiceURL
	}
	return ""
}

// StoredMessage is the persisted form of a message. StoragePath is the
// on-disk location of the attachment; it is used by the sweeper to delete
// the file and is never sent to clients.
type StoredMessage struct {
	Message
	StoragePath string `json:"storage_path,omitempty"`
}
