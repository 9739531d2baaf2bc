package models

// VideoReport is the structured shape the analysis model is instructed to
// return: main subject, timestamped key events, and an overall summary.
type VideoReport struct {
	MainSubject    string     `json:"main_subject"`
	KeyEvents      []KeyEvent `json:"key_events"`
	OverallSummary string     `json:"overall_summary"`
}

// KeyEvent is a single notable moment in the analyzed video.
type KeyEvent struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
}
