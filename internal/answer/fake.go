package answer

import "context"

// Fake is a test and development Answerer with scripted results.
type Fake struct {
	AnswerText string
	Found      bool
	Relevance  float64
	Err        error
}

// NewFake returns a Fake that reports every question as answered.
func NewFake() *Fake {
	return &Fake{AnswerText: "The lesson covers this on the current slide.", Found: true, Relevance: 0.9}
}

func (f *Fake) Answer(_ context.Context, _ int64, question string) (string, bool, float64, error) {
	if f.Err != nil {
		return "", false, 0, f.Err
	}
	if f.AnswerText == "" && !f.Found {
		return "The lesson material does not cover this question.", false, f.Relevance, nil
	}
	return f.AnswerText, f.Found, f.Relevance, nil
}
