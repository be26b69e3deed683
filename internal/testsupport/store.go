package testsupport

import (
	"context"
	"testing"

	"notecast/internal/config"
	"notecast/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewNotebook creates a notebook for tests.
func NewNotebook(t testing.TB, st *store.Store, name string) *store.Notebook {
	t.Helper()

	nb, err := st.CreateNotebook(context.Background(), name, "")
	if err != nil {
		t.Fatalf("store.CreateNotebook: %v", err)
	}
	return nb
}

// AddTextSource inserts a pasted-text source whose full text is text.
func AddTextSource(t testing.TB, st *store.Store, notebookID, title, text string) *store.Source {
	t.Helper()

	src, err := st.CreateSource(context.Background(), store.NewSource{
		NotebookID: notebookID,
		Kind:       store.SourceText,
		Title:      title,
		RawContent: text,
		FullText:   text,
	})
	if err != nil {
		t.Fatalf("store.CreateSource: %v", err)
	}
	return src
}

// Template returns a valid two-voice episode template named name.
func Template(name string) store.EpisodeTemplate {
	return store.EpisodeTemplate{
		Name:                 name,
		PodcastName:          "Test Cast",
		Tagline:              "Notes read aloud",
		Language:             "English",
		Person1Roles:         []string{"host"},
		Person2Roles:         []string{"expert"},
		ConversationStyle:    []string{"friendly"},
		EngagementTechniques: []string{"questions"},
		DialogueStructure:    []string{"intro", "discussion", "wrap-up"},
		Creativity:           0.4,
		Voice1:               "alloy",
		Voice2:               "nova",
		EndingMessage:        "Thanks for listening.",
	}
}

// SaveTemplate stores Template(name).
func SaveTemplate(t testing.TB, st *store.Store, name string) *store.EpisodeTemplate {
	t.Helper()

	tpl, err := st.SaveTemplate(context.Background(), Template(name))
	if err != nil {
		t.Fatalf("store.SaveTemplate: %v", err)
	}
	return tpl
}
