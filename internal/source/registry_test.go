package source

import (
	"context"
	"reflect"
	"testing"

	"github.com/FranksOps/quarry/internal/result"
)

type stubAdapter struct{ id result.Source }

func (s stubAdapter) ID() result.Source { return s.id }

func (s stubAdapter) Search(context.Context, Request) Outcome { return Outcome{Source: s.id} }

func TestRegistry_Sources(t *testing.T) {
	reg := NewRegistry(newTestFetcher(t, nil), Options{})
	if got := reg.Sources(); !reflect.DeepEqual(got, result.AllSources) {
		t.Errorf("expected canonical order, got %v", got)
	}
	if _, err := reg.Get("altavista"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := NewEmptyRegistry()
	reg.Register(stubAdapter{id: "zeta"})
	reg.Register(stubAdapter{id: result.SourceFlickr})
	reg.Register(stubAdapter{id: result.SourceArchive})

	want := []result.Source{result.SourceArchive, result.SourceFlickr, "zeta"}
	if got := reg.Sources(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
