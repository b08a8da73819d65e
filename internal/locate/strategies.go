package locate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
)

// CSS tries structural selectors in order, each with its own short timeout so
// one dead selector costs seconds, not the whole stage budget.
type CSS struct {
	Label       string
	Selectors   []string
	Timeout     time.Duration
	AllowHidden bool // file inputs are legitimately display:none
}

// Name implements Strategy.
func (s CSS) Name() string {
	if s.Label != "" {
		return "css:" + s.Label
	}
	return "css"
}

// Find implements Strategy.
func (s CSS) Find(ctx context.Context, page *rod.Page) (*Target, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	var lastErr error
	for _, sel := range s.Selectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		el, err := page.Context(ctx).Timeout(timeout).Element(sel)
		if err != nil {
			lastErr = fmt.Errorf("selector %q: %w", sel, err)
			continue
		}
		el = el.CancelTimeout()
		if !s.AllowHidden && !isUsable(el) {
			lastErr = fmt.Errorf("selector %q matched a hidden element", sel)
			continue
		}
		return &Target{El: el}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no selectors configured")
	}
	return nil, lastErr
}

// Text scans candidate elements for keyword matches in their visible text,
// aria-label, or title. Matching is case-insensitive substring.
type Text struct {
	Label    string
	Scope    string // element query to scan, defaults to clickable things
	Keywords []string
}

// Name implements Strategy.
func (s Text) Name() string {
	if s.Label != "" {
		return "text:" + s.Label
	}
	return "text"
}

// Find implements Strategy.
func (s Text) Find(ctx context.Context, page *rod.Page) (*Target, error) {
	scope := s.Scope
	if scope == "" {
		scope = "button, [role='button'], [role='menuitem'], a, label, div, span"
	}

	elements, err := page.Context(ctx).Elements(scope)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", scope, err)
	}

	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if matchesKeywords(el, s.Keywords) && isUsable(el) {
			return &Target{El: el}, nil
		}
	}
	return nil, fmt.Errorf("no element matching %v", s.Keywords)
}

func matchesKeywords(el *rod.Element, keywords []string) bool {
	var haystack strings.Builder

	// Only short text counts: a control's label is a few words, while a
	// layout container's innerText is the whole page and matches anything.
	if text, err := el.Text(); err == nil {
		if trimmed := strings.TrimSpace(text); len(trimmed) > 0 && len(trimmed) <= 60 {
			haystack.WriteString(strings.ToLower(trimmed))
		}
	}
	for _, attr := range []string{"aria-label", "title"} {
		if v, err := el.Attribute(attr); err == nil && v != nil {
			haystack.WriteByte(' ')
			haystack.WriteString(strings.ToLower(*v))
		}
	}

	hs := haystack.String()
	for _, kw := range keywords {
		if strings.Contains(hs, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ToggleNearText finds a switch-like control inside the container whose text
// matches, for panels where the toggle itself carries no usable markup.
type ToggleNearText struct {
	Label    string
	Keywords []string
}

// Name implements Strategy.
func (s ToggleNearText) Name() string {
	if s.Label != "" {
		return "toggle-near-text:" + s.Label
	}
	return "toggle-near-text"
}

// Find implements Strategy.
func (s ToggleNearText) Find(ctx context.Context, page *rod.Page) (*Target, error) {
	el, err := page.Context(ctx).ElementByJS(&rod.EvalOptions{
		JS: `(keywords) => {
			const kws = keywords.map(k => k.toLowerCase());
			const matchesText = (node) => {
				const text = (node.innerText || '').toLowerCase();
				return kws.some(k => text.includes(k));
			};
			const toggleIn = (node) =>
				node.querySelector("input[type='checkbox'], [role='switch'], [class*='switch']");

			for (const node of document.querySelectorAll('div, section, li, label')) {
				if (!matchesText(node)) continue;
				// Prefer the tightest container that still holds a toggle
				let best = null;
				let cur = node;
				for (let depth = 0; cur && depth < 4; depth++) {
					const t = toggleIn(cur);
					if (t) best = t;
					cur = cur.parentElement;
				}
				if (best) return best;
			}
			return null;
		}`,
		JSArgs: []interface{}{s.Keywords},
	})
	if err != nil {
		return nil, fmt.Errorf("no toggle near %v: %w", s.Keywords, err)
	}
	return &Target{El: el}, nil
}

// Keys is the terminal fallback: the action's keyboard shortcut. It always
// resolves; whether the editor honors the keystroke is settled downstream by
// the stage's completion check.
type Keys struct {
	Label string
	Seq   []input.Key
}

// Name implements Strategy.
func (s Keys) Name() string {
	if s.Label != "" {
		return "keys:" + s.Label
	}
	return "keys"
}

// Find implements Strategy.
func (s Keys) Find(ctx context.Context, page *rod.Page) (*Target, error) {
	if len(s.Seq) == 0 {
		return nil, errors.New("no keys configured")
	}
	return &Target{Keys: s.Seq}, nil
}

// isUsable filters out collapsed or css-hidden matches, the same signals a
// user-visible control would never exhibit.
func isUsable(el *rod.Element) bool {
	res, err := el.Eval(`() => {
		const styles = window.getComputedStyle(this);
		const rect = this.getBoundingClientRect();
		return {
			display: styles.display,
			visibility: styles.visibility,
			opacity: styles.opacity,
			width: rect.width,
			height: rect.height
		};
	}`)
	if err != nil {
		return false
	}
	m := res.Value.Map()
	if m["display"].String() == "none" || m["visibility"].String() == "hidden" {
		return false
	}
	if m["opacity"].String() == "0" {
		return false
	}
	if m["width"].Num() <= 0 || m["height"].Num() <= 0 {
		return false
	}
	return true
}
