// Package chat turns free-text conversation into assistant replies
// plus structured list actions executed against the user's list.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/aniverse/backend/internal/llm"
	"github.com/aniverse/backend/internal/logger"
	"github.com/aniverse/backend/internal/model"
	"github.com/aniverse/backend/internal/store"
)

// maxHistoryTurns bounds the caller-supplied conversation window.
const maxHistoryTurns = 6

// maxContextEntries bounds how many catalog entries are fed to the
// model as retrieval context.
const maxContextEntries = 5

// EntryNotFoundError reports a chat action whose title reference could
// not be resolved against the catalog.
type EntryNotFoundError struct {
	Title string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("no catalog entry matches %q", e.Title)
}

// Request is one chat turn from the client.
type Request struct {
	UserID  string
	Message string
	History []model.ChatTurn
}

// Response is the dispatcher's result for one turn.
type Response struct {
	Reply          string               `json:"reply"`
	ActionsTaken   []model.ActionResult `json:"actions_taken"`
	ContextEntries []model.CatalogEntry `json:"context_entries"`
}

// Dispatcher is stateless across turns: everything it needs arrives in
// the Request or lives in the read-only catalog and the list store.
type Dispatcher struct {
	log       *logger.Logger
	completer llm.Completer
	catalog   store.CatalogStore
	lists     store.ListStore
}

func NewDispatcher(log *logger.Logger, completer llm.Completer, catalog store.CatalogStore, lists store.ListStore) *Dispatcher {
	return &Dispatcher{
		log:       log.With("component", "chat"),
		completer: completer,
		catalog:   catalog,
		lists:     lists,
	}
}

// Handle runs one chat turn: gather catalog context, ask the model for
// a reply plus structured actions, then execute the actions in order.
// A failed LLM call fails the whole turn (wrapping llm.ErrUnavailable)
// with no actions attempted; a failed individual action is reported in
// its ActionResult and the remaining actions still run.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (*Response, error) {
	history := req.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	contextEntries, _ := d.catalog.Search(ctx, store.SearchParams{
		Query: req.Message,
		Limit: maxContextEntries,
	})
	if len(contextEntries) == 0 {
		if genre := detectGenre(req.Message); genre != "" {
			contextEntries, _ = d.catalog.Filter(ctx, store.FilterParams{
				Genre:  genre,
				SortBy: "score",
				Limit:  maxContextEntries,
			})
		}
	}

	system := buildSystemPrompt(contextEntries)
	raw, err := d.completer.Complete(ctx, system, history, req.Message)
	if err != nil {
		return nil, fmt.Errorf("chat turn: %w", err)
	}

	reply, actions := parseAssistantOutput(raw)

	// Always an array on the wire, even with nothing to do.
	results := []model.ActionResult{}
	for _, a := range actions {
		res := d.execute(ctx, req.UserID, a)
		results = append(results, res)
	}

	return &Response{
		Reply:          reply,
		ActionsTaken:   results,
		ContextEntries: contextEntries,
	}, nil
}

// execute runs one decoded action. Failures never abort the turn: each
// action is independent and idempotent-safe to retry, so the outcome
// is simply captured in the result.
func (d *Dispatcher) execute(ctx context.Context, userID string, a Action) model.ActionResult {
	switch a.Kind {
	case ActionAddToList:
		return d.executeAdd(ctx, userID, a)
	case ActionRate:
		return d.executeRate(ctx, userID, a)
	case ActionRemove:
		return d.executeRemove(ctx, userID, a)
	case ActionSearch:
		return d.executeSearch(ctx, a)
	default:
		return model.ActionResult{
			Action:  string(a.Kind),
			Success: false,
			Message: fmt.Sprintf("unrecognized action %q", a.Kind),
		}
	}
}

func (d *Dispatcher) executeAdd(ctx context.Context, userID string, a Action) model.ActionResult {
	status := a.Status
	if status == "" {
		status = "planned"
	}
	if !model.ValidStatuses[status] {
		return fail(a, fmt.Sprintf("invalid status %q", status))
	}

	entry, err := d.resolveTitle(ctx, a)
	if err != nil {
		return fail(a, err.Error())
	}

	p := store.UpsertParams{
		UserID:  userID,
		EntryID: entry.ID,
		Media:   entry.Media,
		Status:  &status,
	}
	if a.Rating > 0 {
		r := clampRating(a.Rating)
		p.Rating = &r
	}
	if _, err := d.lists.Upsert(ctx, p); err != nil {
		return fail(a, err.Error())
	}

	msg := fmt.Sprintf("Added %s to %s", entry.Title, status)
	if p.Rating != nil {
		msg += fmt.Sprintf(" with rating %.0f/10", *p.Rating)
	}
	return ok(a, entry, msg)
}

func (d *Dispatcher) executeRate(ctx context.Context, userID string, a Action) model.ActionResult {
	if !model.ValidRating(a.Rating) {
		return fail(a, fmt.Sprintf("rating %.1f out of range [1,10]", a.Rating))
	}

	entry, err := d.resolveTitle(ctx, a)
	if err != nil {
		return fail(a, err.Error())
	}

	rating := a.Rating
	// Rating an entry not yet on the list implies it was watched.
	status := "completed"
	p := store.UpsertParams{
		UserID:  userID,
		EntryID: entry.ID,
		Media:   entry.Media,
		Rating:  &rating,
	}
	if _, getErr := d.lists.GetItem(ctx, userID, entry.ID); getErr != nil {
		p.Status = &status
	}
	if _, err := d.lists.Upsert(ctx, p); err != nil {
		return fail(a, err.Error())
	}
	return ok(a, entry, fmt.Sprintf("Rated %s %.0f/10", entry.Title, rating))
}

func (d *Dispatcher) executeRemove(ctx context.Context, userID string, a Action) model.ActionResult {
	entry, err := d.resolveTitle(ctx, a)
	if err != nil {
		return fail(a, err.Error())
	}
	if err := d.lists.DeleteItem(ctx, userID, entry.ID); err != nil {
		if err == store.ErrNotFound {
			return fail(a, fmt.Sprintf("%s wasn't on your list", entry.Title))
		}
		return fail(a, err.Error())
	}
	return ok(a, entry, fmt.Sprintf("Removed %s from your list", entry.Title))
}

func (d *Dispatcher) executeSearch(ctx context.Context, a Action) model.ActionResult {
	entries, err := d.catalog.Search(ctx, store.SearchParams{Query: a.Query, Limit: 5})
	if err != nil {
		return fail(a, err.Error())
	}
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Title)
	}
	return model.ActionResult{
		Action:  string(a.Kind),
		Success: true,
		Message: fmt.Sprintf("Found: %s", strings.Join(titles, ", ")),
	}
}

// resolveTitle maps an action's title-or-id reference to a catalog
// entry: direct id, then exact title, then substring, then fuzzy
// token overlap. Misses below the fuzzy threshold return
// *EntryNotFoundError.
func (d *Dispatcher) resolveTitle(ctx context.Context, a Action) (*model.CatalogEntry, error) {
	if a.ID > 0 {
		entry, err := d.catalog.GetEntry(ctx, a.ID)
		if err != nil {
			return nil, &EntryNotFoundError{Title: fmt.Sprintf("id %d", a.ID)}
		}
		return entry, nil
	}

	title := strings.TrimSpace(a.Title)
	if title == "" {
		return nil, &EntryNotFoundError{Title: title}
	}

	candidates, err := d.catalog.Search(ctx, store.SearchParams{Query: title, Media: a.Media, Limit: 5})
	if err != nil {
		return nil, &EntryNotFoundError{Title: title}
	}
	if len(candidates) == 0 {
		// Multi-word references often reorder or drop words. Retry on
		// the longest token and let the overlap score decide.
		candidates, err = d.catalog.Search(ctx, store.SearchParams{Query: longestToken(title), Media: a.Media, Limit: 5})
		if err != nil || len(candidates) == 0 {
			return nil, &EntryNotFoundError{Title: title}
		}
	}

	want := strings.ToLower(title)
	for i := range candidates {
		if strings.ToLower(candidates[i].Title) == want {
			return &candidates[i], nil
		}
	}
	for i := range candidates {
		have := strings.ToLower(candidates[i].Title)
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return &candidates[i], nil
		}
	}

	best := -1
	bestScore := 0.0
	for i := range candidates {
		score := tokenOverlap(want, strings.ToLower(candidates[i].Title))
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best >= 0 && bestScore >= 0.5 {
		return &candidates[best], nil
	}
	return nil, &EntryNotFoundError{Title: title}
}

func longestToken(s string) string {
	best := ""
	for _, t := range strings.Fields(s) {
		if len(t) > len(best) {
			best = t
		}
	}
	if best == "" {
		return s
	}
	return best
}

// tokenOverlap is the fraction of a's tokens present in b.
func tokenOverlap(a, b string) float64 {
	aTokens := strings.Fields(a)
	if len(aTokens) == 0 {
		return 0
	}
	bSet := map[string]bool{}
	for _, t := range strings.Fields(b) {
		bSet[t] = true
	}
	hits := 0
	for _, t := range aTokens {
		if bSet[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(aTokens))
}

func clampRating(r float64) float64 {
	if r < 1 {
		return 1
	}
	if r > 10 {
		return 10
	}
	return r
}

func ok(a Action, entry *model.CatalogEntry, msg string) model.ActionResult {
	return model.ActionResult{
		Action:  string(a.Kind),
		Success: true,
		Message: msg,
		EntryID: entry.ID,
		Title:   entry.Title,
	}
}

func fail(a Action, msg string) model.ActionResult {
	return model.ActionResult{
		Action:  string(a.Kind),
		Success: false,
		Message: msg,
	}
}
