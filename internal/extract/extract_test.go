package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

const threadHTML = `<html><body>
<div id="sidebar">
  <shreddit-comment author="outside"><div slot="comment"><p>not in the thread</p></div></shreddit-comment>
</div>
<shreddit-comment-tree>
  <shreddit-comment author="alice">
    <faceplate-timeago ts="2024-01-01T00:00:00Z"></faceplate-timeago>
    <div slot="comment"><p>Hello</p><p>  world  </p></div>
    <shreddit-comment author="bob">
      <div slot="comment"><p>reply one</p></div>
      <shreddit-comment>
        <faceplate-timeago ts="2024-01-03T00:00:00Z"></faceplate-timeago>
        <div slot="comment"><p>deep
          reply</p></div>
      </shreddit-comment>
    </shreddit-comment>
    <shreddit-comment author="deleted"><div slot="comment"><p>   </p></div></shreddit-comment>
  </shreddit-comment>
  <shreddit-comment author="carol">
    <div slot="comment"><p>Caf` + "e\u0301" + `</p></div>
  </shreddit-comment>
</shreddit-comment-tree>
</body></html>`

func page(html string) domain.RawPage {
	return domain.RawPage{URL: "https://www.reddit.com/r/yahoo/comments/abc/", HTML: html}
}

func TestExtract_Tree(t *testing.T) {
	got, err := New(DefaultConfig()).Extract(page(threadHTML))
	require.NoError(t, err)

	want := []domain.CommentRecord{
		{Author: "alice", Text: "Hello world", Depth: 0, Order: 0, Timestamp: "2024-01-01T00:00:00Z"},
		{Author: "bob", Text: "reply one", Depth: 1, Order: 1},
		{Author: "", Text: "deep reply", Depth: 2, Order: 2, Timestamp: "2024-01-03T00:00:00Z"},
		{Author: "carol", Text: "Caf\u00e9", Depth: 0, Order: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	e := New(Config{})

	first, err := e.Extract(page(threadHTML))
	require.NoError(t, err)
	second, err := e.Extract(page(threadHTML))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtract_FallsBackToDocument(t *testing.T) {
	html := `<html><body>
<shreddit-comment author="a"><div slot="comment">plain body</div></shreddit-comment>
</body></html>`

	got, err := New(DefaultConfig()).Extract(page(html))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "plain body", got[0].Text)
	assert.Equal(t, 0, got[0].Depth)
}

func TestExtract_Empty(t *testing.T) {
	got, err := New(DefaultConfig()).Extract(page("<html><body><p>no comments</p></body></html>"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtract_CustomSelectors(t *testing.T) {
	html := `<ul class="thread">
<li class="c" data-user="x"><span class="body"><p>one</p></span>
  <ul><li class="c" data-user="y"><span class="body"><p>two</p></span></li></ul>
</li>
</ul>`
	e := New(Config{
		RegionSelector:  "ul.thread",
		CommentSelector: "li.c",
		AuthorAttr:      "data-user",
		BodySelector:    "span.body",
	})

	got, err := e.Extract(page(html))
	require.NoError(t, err)

	want := []domain.CommentRecord{
		{Author: "x", Text: "one", Depth: 0, Order: 0},
		{Author: "y", Text: "two", Depth: 1, Order: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a \n\t b  ", "a b"},
		{"", ""},
		{"e\u0301", "\u00e9"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clean(tt.in), "clean(%q)", tt.in)
	}
}
