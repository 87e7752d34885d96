package domain

import (
	"context"
	"errors"
	"iter"
	"testing"
)

// mockStore implements LinkStore for testing.
type mockStore struct {
	links  map[string]DiscussionLink
	order  []string
	addErr error
}

func newMockStore() *mockStore {
	return &mockStore{links: make(map[string]DiscussionLink)}
}

func (m *mockStore) Add(ctx context.Context, link DiscussionLink) (bool, error) {
	if m.addErr != nil {
		return false, m.addErr
	}
	if _, ok := m.links[link.Hash]; ok {
		return false, nil
	}
	m.links[link.Hash] = link
	m.order = append(m.order, link.Hash)
	return true, nil
}

func (m *mockStore) Pending(ctx context.Context, maxAttempts int) iter.Seq2[DiscussionLink, error] {
	return func(yield func(DiscussionLink, error) bool) {
		for _, h := range m.order {
			if !yield(m.links[h], nil) {
				return
			}
		}
	}
}

func (m *mockStore) Count(ctx context.Context) (int, error) {
	return len(m.links), nil
}

func TestLinkService_Submit(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{
			name: "valid URL",
			url:  "https://www.reddit.com/r/yahoo/comments/abc/title/",
		},
		{
			name:    "relative URL",
			url:     "/r/yahoo/comments/abc/",
			wantErr: ErrInvalidURL,
		},
		{
			name:    "unsupported scheme",
			url:     "ftp://example.com/file",
			wantErr: ErrInvalidURL,
		},
		{
			name:    "empty URL",
			url:     "",
			wantErr: ErrInvalidURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewLinkService(newMockStore())

			link, inserted, err := svc.Submit(context.Background(), tt.url)

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if !inserted {
					t.Error("Submit() inserted = false, want true")
				}
				if link.Hash == "" {
					t.Error("Submit() returned empty hash")
				}
			}
		})
	}
}

func TestLinkService_Submit_Duplicate(t *testing.T) {
	store := newMockStore()
	svc := NewLinkService(store)
	ctx := context.Background()

	first, inserted, err := svc.Submit(ctx, "https://www.reddit.com/r/yahoo/comments/abc/title/")
	if err != nil || !inserted {
		t.Fatalf("first Submit() = %v, %v", inserted, err)
	}

	// Same thread, different surface form
	second, inserted, err := svc.Submit(ctx, "HTTPS://www.reddit.com/r/yahoo/comments/abc/title#comments")
	if err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}
	if inserted {
		t.Error("second Submit() inserted = true, want false")
	}
	if second.Hash != first.Hash {
		t.Errorf("hash = %q, want %q", second.Hash, first.Hash)
	}

	count, _ := svc.Count(ctx)
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestLinkService_Submit_StoreError(t *testing.T) {
	store := newMockStore()
	store.addErr = errors.New("disk full")
	svc := NewLinkService(store)

	_, _, err := svc.Submit(context.Background(), "https://example.com/thread")
	if err == nil {
		t.Fatal("Submit() error = nil, want store error")
	}
}

func TestLinkService_Pending(t *testing.T) {
	svc := NewLinkService(newMockStore())
	ctx := context.Background()

	svc.Submit(ctx, "https://example.com/1")
	svc.Submit(ctx, "https://example.com/2")

	var got []string
	for link, err := range svc.Pending(ctx, 3) {
		if err != nil {
			t.Fatalf("Pending() error = %v", err)
		}
		got = append(got, link.URL)
	}
	if len(got) != 2 {
		t.Fatalf("Pending() yielded %d links, want 2", len(got))
	}
	if got[0] != "https://example.com/1" {
		t.Errorf("first = %q, want %q", got[0], "https://example.com/1")
	}
}
