package domain

// FeedbackTimeLayout is the timestamp format of stored feedback records.
const FeedbackTimeLayout = "2006-01-02 15:04:05"

type FeedbackKind string

const (
	FeedbackPositive FeedbackKind = "positive"
	FeedbackNegative FeedbackKind = "negative"
)

// Feedback is a user's verdict on one answer.
type Feedback struct {
	Question  string       `json:"question"`
	Answer    string       `json:"answer"`
	Feedback  FeedbackKind `json:"feedback"`
	Timestamp string       `json:"timestamp"`
}
