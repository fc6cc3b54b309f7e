package chat

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/aniverse/backend/internal/llm"
	"github.com/aniverse/backend/internal/logger"
	"github.com/aniverse/backend/internal/model"
	"github.com/aniverse/backend/internal/store"
)

// fakeCompleter returns a canned assistant output, or fails.
type fakeCompleter struct {
	output string
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, system string, history []model.ChatTurn, user string) (string, error) {
	return f.output, f.err
}

func f64(v float64) *float64 { return &v }

func testDispatcher(t *testing.T, c llm.Completer) (*Dispatcher, *store.SQLiteStore, string) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	entries := []model.CatalogEntry{
		{ID: 1, Media: model.MediaAnime, Title: "Naruto", Genres: []string{"Action"}, Synopsis: "A young ninja seeks recognition."},
		{ID: 2, Media: model.MediaAnime, Title: "Attack on Titan", Genres: []string{"Action"}, Synopsis: "Humanity fights titans behind walls."},
	}
	for _, e := range entries {
		if err := s.PutEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	u, err := s.CreateUser(ctx, "yuki", "yuki@example.com", "x")
	if err != nil {
		t.Fatal(err)
	}

	return NewDispatcher(logger.Nop(), c, s, s), s, u.ID
}

func TestHandle_ExecutesActions(t *testing.T) {
	output := "Added it for you!\n```actions\n[{\"action\":\"add_to_list\",\"title\":\"Naruto\",\"status\":\"watching\"}]\n```"
	d, s, userID := testDispatcher(t, &fakeCompleter{output: output})

	resp, err := d.Handle(context.Background(), Request{UserID: userID, Message: "add naruto to my list"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Reply != "Added it for you!" {
		t.Errorf("fenced block not stripped from reply: %q", resp.Reply)
	}
	if len(resp.ActionsTaken) != 1 || !resp.ActionsTaken[0].Success {
		t.Fatalf("expected one successful action, got %+v", resp.ActionsTaken)
	}

	item, err := s.GetItem(context.Background(), userID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != "watching" {
		t.Errorf("expected status watching, got %q", item.Status)
	}
}

func TestHandle_PartialFailure(t *testing.T) {
	output := "Done.\n```actions\n" +
		`[{"action":"rate","title":"Naruto","rating":9},` +
		`{"action":"rate","title":"Totally Made Up Show","rating":8}]` +
		"\n```"
	d, s, userID := testDispatcher(t, &fakeCompleter{output: output})

	resp, err := d.Handle(context.Background(), Request{UserID: userID, Message: "rate these"})
	if err != nil {
		t.Fatalf("a failed action must not fail the turn: %v", err)
	}
	if len(resp.ActionsTaken) != 2 {
		t.Fatalf("expected both actions reported, got %d", len(resp.ActionsTaken))
	}
	if !resp.ActionsTaken[0].Success {
		t.Errorf("first action should succeed: %+v", resp.ActionsTaken[0])
	}
	if resp.ActionsTaken[1].Success {
		t.Errorf("second action should fail: %+v", resp.ActionsTaken[1])
	}

	item, err := s.GetItem(context.Background(), userID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if item.Rating == nil || *item.Rating != 9 {
		t.Errorf("first action's write missing: %+v", item)
	}
	// Rating an off-list entry implies completion.
	if item.Status != "completed" {
		t.Errorf("expected implied completed status, got %q", item.Status)
	}
}

func TestHandle_CompleterFailureFailsTurn(t *testing.T) {
	d, _, userID := testDispatcher(t, &fakeCompleter{err: llm.ErrUnavailable})

	_, err := d.Handle(context.Background(), Request{UserID: userID, Message: "hi"})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected wrapped llm.ErrUnavailable, got %v", err)
	}
}

func TestHandle_PlainReplyNoActions(t *testing.T) {
	d, _, userID := testDispatcher(t, &fakeCompleter{output: "You should try Attack on Titan."})

	resp, err := d.Handle(context.Background(), Request{UserID: userID, Message: "what should I watch?"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ActionsTaken) != 0 {
		t.Errorf("expected no actions, got %+v", resp.ActionsTaken)
	}
	if resp.ActionsTaken == nil {
		t.Error("actions must be an empty array, not null, on the wire")
	}
	if resp.Reply != "You should try Attack on Titan." {
		t.Errorf("unexpected reply %q", resp.Reply)
	}
}

func TestHandle_GenreContextFallback(t *testing.T) {
	d, _, userID := testDispatcher(t, &fakeCompleter{output: "Here are some picks."})

	// The literal message matches nothing, but the genre word should
	// still pull catalog context.
	resp, err := d.Handle(context.Background(), Request{UserID: userID, Message: "recommend good action shows please"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ContextEntries) == 0 {
		t.Fatal("expected genre-matched context entries")
	}
	for _, e := range resp.ContextEntries {
		if !e.HasGenre("Action") {
			t.Errorf("non-action entry %q in genre context", e.Title)
		}
	}
}

func TestDetectGenre(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"recommend some action shows", "Action"},
		{"something funny, please!", "Comedy"},
		{"I want a slice of life series", "Slice of Life"},
		{"what should I watch next", ""},
	}
	for _, tt := range tests {
		if got := detectGenre(tt.message); got != tt.want {
			t.Errorf("detectGenre(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestResolveTitle(t *testing.T) {
	d, _, _ := testDispatcher(t, &fakeCompleter{})
	ctx := context.Background()

	tests := []struct {
		name    string
		action  Action
		wantID  int64
		wantErr bool
	}{
		{"by id", Action{ID: 2}, 2, false},
		{"exact title", Action{Title: "Naruto"}, 1, false},
		{"case insensitive", Action{Title: "naruto"}, 1, false},
		{"substring", Action{Title: "Titan"}, 2, false},
		{"token overlap", Action{Title: "attack titan"}, 2, false},
		{"miss", Action{Title: "Cowboy Bebop"}, 0, true},
		{"empty", Action{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := d.resolveTitle(ctx, tt.action)
			if tt.wantErr {
				var nf *EntryNotFoundError
				if !errors.As(err, &nf) {
					t.Fatalf("expected EntryNotFoundError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if entry.ID != tt.wantID {
				t.Errorf("resolved to %d, want %d", entry.ID, tt.wantID)
			}
		})
	}
}

func TestParseAssistantOutput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		reply   string
		actions []Action
	}{
		{
			name:  "no block",
			raw:   "Just chatting.",
			reply: "Just chatting.",
		},
		{
			name:    "array block",
			raw:     "Sure!\n```actions\n[{\"action\":\"remove\",\"title\":\"Naruto\"}]\n```",
			reply:   "Sure!",
			actions: []Action{{Kind: ActionRemove, Title: "Naruto"}},
		},
		{
			name:    "single object block",
			raw:     "On it.\n```actions\n{\"action\":\"search\",\"query\":\"mecha\"}\n```",
			reply:   "On it.",
			actions: []Action{{Kind: ActionSearch, Query: "mecha"}},
		},
		{
			name:  "malformed json",
			raw:   "Oops.\n```actions\n[{\"action\":\n```",
			reply: "Oops.",
		},
		{
			name:    "unknown kinds dropped",
			raw:     "Hm.\n```actions\n[{\"action\":\"self_destruct\"},{\"action\":\"rate\",\"title\":\"Naruto\",\"rating\":7}]\n```",
			reply:   "Hm.",
			actions: []Action{{Kind: ActionRate, Title: "Naruto", Rating: 7}},
		},
		{
			name:  "unterminated fence",
			raw:   "Hi ```actions [{\"action\":\"rate\"}]",
			reply: "Hi ```actions [{\"action\":\"rate\"}]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, actions := parseAssistantOutput(tt.raw)
			if reply != tt.reply {
				t.Errorf("reply = %q, want %q", reply, tt.reply)
			}
			if len(actions) == 0 && len(tt.actions) == 0 {
				return
			}
			if !reflect.DeepEqual(actions, tt.actions) {
				t.Errorf("actions = %+v, want %+v", actions, tt.actions)
			}
		})
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := buildSystemPrompt([]model.CatalogEntry{
		{Title: "Naruto", Media: model.MediaAnime, Score: f64(7.9), Genres: []string{"Action"}},
	})
	if !strings.Contains(prompt, "Naruto") || !strings.Contains(prompt, "Relevant titles:") {
		t.Errorf("context entry missing from prompt")
	}

	if got := buildSystemPrompt(nil); strings.Contains(got, "Relevant titles:") {
		t.Error("empty context should not add a titles section")
	}
}
