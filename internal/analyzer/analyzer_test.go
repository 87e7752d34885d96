package analyzer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcfangc/yahoo-crawler/internal/adapter/filestore"
	"github.com/jcfangc/yahoo-crawler/internal/domain"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
)

func TestTokens(t *testing.T) {
	a := New(nil, map[string]struct{}{"the": {}, "is": {}}, logger.NewNop())

	tests := []struct {
		in   string
		want []string
	}{
		{"The mail is DOWN again!", []string{"mail", "down", "again"}},
		{"yahoo-mail 2024 v2", []string{"yahoo", "mail", "v"}},
		{"Ünïcode ÉCOLE", []string{"ünïcode", "école"}},
		{"   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Tokens(tt.in))
		})
	}
}

func TestLoadStopWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(path, []byte("The\n  a \n\nof\n"), 0644))

	words, err := LoadStopWords(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"the": {}, "a": {}, "of": {}}, words)
}

func TestLoadStopWords_Missing(t *testing.T) {
	words, err := LoadStopWords(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Empty(t, words)
}

func seed(t *testing.T) domain.CommentStore {
	t.Helper()
	ctx := context.Background()
	store, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "a1", []domain.CommentRecord{
		{Text: "Mail is down"},
		{Text: "mail down again", Depth: 1, Order: 1},
	}))
	require.NoError(t, store.Put(ctx, "b2", []domain.CommentRecord{
		{Text: "Is mail down? Yes."},
	}))
	require.NoError(t, store.Put(ctx, "c3", nil))
	return store
}

func TestCount_SortedByCountThenWord(t *testing.T) {
	a := New(seed(t), map[string]struct{}{"is": {}}, logger.NewNop())

	got, err := a.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []WordCount{
		{"down", 3},
		{"mail", 3},
		{"again", 1},
		{"yes", 1},
	}, got)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []WordCount{{"mail", 3}, {"a,b", 1}}))
	assert.Equal(t, "word,count\nmail,3\n\"a,b\",1\n", buf.String())
}

func TestRun_WritesFile(t *testing.T) {
	a := New(seed(t), nil, logger.NewNop())
	path := filepath.Join(t.TempDir(), "out", "freq.csv")

	counts, err := a.Run(context.Background(), path)
	require.NoError(t, err)
	assert.NotEmpty(t, counts)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "word,count\n")
	assert.Contains(t, string(b), "mail,3\n")
}
