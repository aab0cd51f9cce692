package model

// ExamContent is the read-only exam structure and answer key supplied by the
// content system.
type ExamContent struct {
	ExamRef   string          `json:"exam"`
	Listening []ListeningPart `json:"listening"`
	Reading   []ReadingPart   `json:"reading"`
}

// ListeningPart is one recording with its key by question number.
type ListeningPart struct {
	ID      string           `json:"id"`
	Answers map[string]Value `json:"answers"`
}

// ReadingPart is one passage. Containers are in display order.
type ReadingPart struct {
	ID         string           `json:"id"`
	Containers []Container      `json:"containers"`
	Answers    map[string]Value `json:"answers"`
}

// Container is a display group of consecutively numbered questions.
// From and To are zero when the content does not declare a range.
type Container struct {
	ID   string `json:"id"`
	From int    `json:"from,omitempty"`
	To   int    `json:"to,omitempty"`
}

// Slots is the number of questions the container declares, or 0 if unknown.
func (c Container) Slots() int {
	if c.From > 0 && c.To >= c.From {
		return c.To - c.From + 1
	}
	return 0
}
