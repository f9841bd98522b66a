package domain

import "strings"

const imageOnlyContent = "Image"

// Draft is what the user submits to start a turn.
type Draft struct {
	Content  string
	Type     MessageType `validate:"omitempty,oneof=text image"`
	ImageRef string
}

// IsEmpty reports a draft carrying neither text nor an image.
func (d Draft) IsEmpty() bool {
	return strings.TrimSpace(d.Content) == "" && d.ImageRef == ""
}

// Normalize trims the content, labels image-only drafts and settles the type
// from the presence of an image reference, whatever type was asked.
func (d Draft) Normalize() Draft {
	d.Content = strings.TrimSpace(d.Content)
	if d.ImageRef != "" {
		d.Type = MessageImage
		if d.Content == "" {
			d.Content = imageOnlyContent
		}
		return d
	}
	d.Type = MessageText
	return d
}
