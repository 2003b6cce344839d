package domain

// Segment is one unit of an incoming chat message. Messages arrive as an
// ordered mix of text and images; the two variants are matched exhaustively
// by consumers.
type Segment interface {
	isSegment()
}

// TextSegment carries free-form user text.
type TextSegment struct {
	Text string
}

func (TextSegment) isSegment() {}

// ImageSegment carries the platform URL of an attached image.
type ImageSegment struct {
	URL string
}

func (ImageSegment) isSegment() {}
