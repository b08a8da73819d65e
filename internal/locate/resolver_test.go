package locate

import (
	"context"
	"errors"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
)

type fakeStrategy struct {
	name   string
	target *Target
	err    error
	calls  int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Find(ctx context.Context, page *rod.Page) (*Target, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.target, nil
}

func TestResolveExhaustedChainReturnsNotLocatable(t *testing.T) {
	r := NewResolver()
	r.Register(ActionSplit,
		&fakeStrategy{name: "css", err: errors.New("no match")},
		&fakeStrategy{name: "text", err: errors.New("no match")},
	)

	_, err := r.Resolve(context.Background(), nil, ActionSplit)
	if !errors.Is(err, ErrActionNotLocatable) {
		t.Fatalf("expected ErrActionNotLocatable, got %v", err)
	}
}

func TestResolveUnknownActionReturnsNotLocatable(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve(context.Background(), nil, ActionExport)
	if !errors.Is(err, ErrActionNotLocatable) {
		t.Fatalf("expected ErrActionNotLocatable for unregistered action, got %v", err)
	}
}

func TestResolveFallsThroughToKeyboard(t *testing.T) {
	miss := errors.New("no match")
	chain := []Strategy{
		&fakeStrategy{name: "css-1", err: miss},
		&fakeStrategy{name: "css-2", err: miss},
		&fakeStrategy{name: "css-3", err: miss},
		&fakeStrategy{name: "text-1", err: miss},
		&fakeStrategy{name: "text-2", err: miss},
		&fakeStrategy{name: "text-3", err: miss},
		&fakeStrategy{name: "keys", target: &Target{Strategy: "keys", Keys: []input.Key{input.Key('s')}}},
	}
	r := NewResolver()
	r.Register(ActionSplit, chain...)

	target, err := r.Resolve(context.Background(), nil, ActionSplit)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if target.Strategy != "keys" {
		t.Errorf("expected keyboard target, got %q", target.Strategy)
	}
	if len(target.Keys) != 1 || target.Keys[0] != input.Key('s') {
		t.Errorf("unexpected key sequence: %v", target.Keys)
	}
	for _, s := range chain[:6] {
		fs := s.(*fakeStrategy)
		if fs.calls != 1 {
			t.Errorf("strategy %s tried %d times, expected 1", fs.name, fs.calls)
		}
	}
}

func TestResolveFirstHitShortCircuits(t *testing.T) {
	first := &fakeStrategy{name: "css", target: &Target{Strategy: "css"}}
	second := &fakeStrategy{name: "text", target: &Target{Strategy: "text"}}
	r := NewResolver()
	r.Register(ActionDownload, first, second)

	target, err := r.Resolve(context.Background(), nil, ActionDownload)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if target.Strategy != "css" {
		t.Errorf("expected first strategy to win, got %q", target.Strategy)
	}
	if second.calls != 0 {
		t.Errorf("second strategy tried %d times, expected 0", second.calls)
	}
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeStrategy{name: "css", target: &Target{Strategy: "css"}}
	r := NewResolver()
	r.Register(ActionTimeline, s)

	_, err := r.Resolve(ctx, nil, ActionTimeline)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.calls != 0 {
		t.Errorf("strategy tried %d times after cancel, expected 0", s.calls)
	}
}

func TestDefaultResolverCoversAllActions(t *testing.T) {
	r := DefaultResolver(0)
	actions := []Action{
		ActionUploadInput, ActionMediaTile, ActionProjectName, ActionTimeline,
		ActionZoomIn, ActionZoomOut, ActionPlayheadHome, ActionSplit,
		ActionDelete, ActionCutoutPanel, ActionCutoutSwitch,
		ActionExport, ActionExportConfirm, ActionDownload,
	}
	for _, a := range actions {
		if len(r.strategies[a]) == 0 {
			t.Errorf("action %s has no strategies", a)
		}
	}
}
