package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrEmptyBank = errors.New("question bank is empty")

// Question is a single quiz item. Immutable once the bank is built.
type Question struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Correct int      `json:"correctAnswer"`
}

// Bank is an ordered, immutable set of questions shared by every party.
type Bank struct {
	questions []Question
}

func New(questions []Question) (*Bank, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyBank
	}
	for i, q := range questions {
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("question %d: need at least 2 options, got %d", i, len(q.Options))
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return nil, fmt.Errorf("question %d: correct index %d out of range", i, q.Correct)
		}
	}
	return &Bank{questions: questions}, nil
}

// Load reads a JSON array of questions from disk.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return New(questions)
}

func (b *Bank) Len() int { return len(b.questions) }

func (b *Bank) Question(i int) Question { return b.questions[i] }

// Default returns the built-in general-knowledge set.
func Default() *Bank {
	return &Bank{questions: []Question{
		{Text: "What is the capital of France?", Options: []string{"London", "Berlin", "Paris", "Madrid"}, Correct: 2},
		{Text: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Saturn"}, Correct: 1},
		{Text: "What is the largest ocean on Earth?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, Correct: 3},
		{Text: "Who painted the Mona Lisa?", Options: []string{"Van Gogh", "Da Vinci", "Picasso", "Rembrandt"}, Correct: 1},
		{Text: "What is the chemical symbol for gold?", Options: []string{"Ag", "Au", "Fe", "Cu"}, Correct: 1},
		{Text: "Which year did World War II end?", Options: []string{"1943", "1944", "1945", "1946"}, Correct: 2},
		{Text: "What is the square root of 144?", Options: []string{"10", "11", "12", "13"}, Correct: 2},
		{Text: "Which country is home to the kangaroo?", Options: []string{"New Zealand", "Australia", "South Africa", "India"}, Correct: 1},
		{Text: "What is the main component of the sun?", Options: []string{"Liquid lava", "Molten iron", "Hot gases", "Solid rock"}, Correct: 2},
		{Text: "How many sides does a hexagon have?", Options: []string{"5", "6", "7", "8"}, Correct: 1},
	}}
}
