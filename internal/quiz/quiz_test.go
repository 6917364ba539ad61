package quiz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_WellFormed(t *testing.T) {
	bank := Default()
	require.Equal(t, 10, bank.Len())

	for i := 0; i < bank.Len(); i++ {
		q := bank.Question(i)
		require.NotEmpty(t, q.Text)
		require.Len(t, q.Options, 4)
		require.GreaterOrEqual(t, q.Correct, 0)
		require.Less(t, q.Correct, len(q.Options))
	}
}

func TestNew_RejectsBadBanks(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrEmptyBank)

	_, err = New([]Question{{Text: "only one option", Options: []string{"a"}, Correct: 0}})
	require.Error(t, err)

	_, err = New([]Question{{Text: "index out of range", Options: []string{"a", "b"}, Correct: 2}})
	require.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	data := `[{"question":"2+2?","options":["3","4"],"correctAnswer":1}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	bank, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, bank.Len())
	require.Equal(t, "2+2?", bank.Question(0).Text)
	require.Equal(t, 1, bank.Question(0).Correct)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
