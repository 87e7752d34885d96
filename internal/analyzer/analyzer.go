// Package analyzer computes word frequencies over stored comments.
package analyzer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
)

// partitions bounds how many comment sets are counted concurrently.
const partitions = 4

// WordCount is one row of the frequency table.
type WordCount struct {
	Word  string
	Count int
}

// Analyzer counts words across every stored comment set.
type Analyzer struct {
	comments  domain.CommentStore
	stopWords map[string]struct{}
	lower     cases.Caser
	log       logger.Logger
}

// New creates an analyzer ignoring stopWords.
func New(comments domain.CommentStore, stopWords map[string]struct{}, log logger.Logger) *Analyzer {
	if stopWords == nil {
		stopWords = map[string]struct{}{}
	}
	return &Analyzer{
		comments:  comments,
		stopWords: stopWords,
		lower:     cases.Lower(language.Und),
		log:       log,
	}
}

// LoadStopWords reads one word per line. A missing file yields no stop words.
func LoadStopWords(path string) (map[string]struct{}, error) {
	words := make(map[string]struct{})
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return words, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lower := cases.Lower(language.Und)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words[lower.String(w)] = struct{}{}
		}
	}
	return words, sc.Err()
}

// Tokens lower-cases text and splits it on every non-letter rune.
func (a *Analyzer) Tokens(text string) []string {
	fields := strings.FieldsFunc(a.lower.String(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := a.stopWords[f]; !stop {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Count returns word counts sorted by count descending, then word.
func (a *Analyzer) Count(ctx context.Context) ([]WordCount, error) {
	keys, err := a.comments.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	var mu sync.Mutex
	total := make(map[string]int)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(partitions)
	for _, key := range keys {
		g.Go(func() error {
			records, err := a.comments.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("read comments %s: %w", key, err)
			}
			local := make(map[string]int)
			for _, r := range records {
				for _, tok := range a.Tokens(r.Text) {
					local[tok]++
				}
			}
			mu.Lock()
			for w, n := range local {
				total[w] += n
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make([]WordCount, 0, len(total))
	for w, n := range total {
		counts = append(counts, WordCount{Word: w, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})
	a.log.Info("counted words",
		logger.Int("comment_sets", len(keys)),
		logger.Int("distinct_words", len(counts)),
	)
	return counts, nil
}

// WriteCSV writes a word,count table.
func WriteCSV(w io.Writer, counts []WordCount) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"word", "count"}); err != nil {
		return err
	}
	for _, c := range counts {
		if err := cw.Write([]string{c.Word, strconv.Itoa(c.Count)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Run counts words and writes the table to path.
func (a *Analyzer) Run(ctx context.Context, path string) ([]WordCount, error) {
	counts, err := a.Count(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := WriteCSV(f, counts); err != nil {
		f.Close()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	a.log.Info("word frequencies written", logger.String("path", path))
	return counts, nil
}
