package synthetic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRunProducesNResults(t *testing.T) {
	t.Parallel()

	var progress []int
	results, err := Run(context.Background(), DefaultFields(), 3, Options{
		Delay:      time.Millisecond,
		Seed:       42,
		OnProgress: func(done, total int, _ Result) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Fatalf("progress = %v", progress)
	}
	for _, r := range results {
		if r.Status != StatusSuccess || r.Timestamp.IsZero() {
			t.Fatalf("unexpected result %+v", r)
		}
		if r.Action != ActionForScore(r.Score) {
			t.Fatalf("action %q does not match score %d", r.Action, r.Score)
		}
		for _, f := range DefaultFields() {
			if _, ok := r.Data[f.Name]; !ok {
				t.Fatalf("missing field %s in %v", f.Name, r.Data)
			}
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results, err := Run(ctx, DefaultFields(), 10, Options{
		Delay: time.Millisecond,
		Seed:  7,
		OnProgress: func(done, _ int, _ Result) {
			if done == 2 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
}

func TestRunPacing(t *testing.T) {
	t.Parallel()

	start := time.Now()
	if _, err := Run(context.Background(), DefaultFields(), 3, Options{Delay: 20 * time.Millisecond, Seed: 1}); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("three events at 20ms spacing finished in %v", elapsed)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1, MaxEvents + 1} {
		if _, err := Run(context.Background(), DefaultFields(), n, Options{}); !errors.Is(err, ErrEventCount) {
			t.Fatalf("n=%d: expected ErrEventCount, got %v", n, err)
		}
	}
	if _, err := Run(context.Background(), nil, 1, Options{}); !errors.Is(err, ErrNoFields) {
		t.Fatalf("expected ErrNoFields, got %v", err)
	}
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, map[string]any) (int, error) {
	return 0, errors.New("scoring engine unavailable")
}

func TestScorerErrorMarksResult(t *testing.T) {
	t.Parallel()

	results, err := Run(context.Background(), DefaultFields(), 1, Options{Delay: time.Millisecond, Seed: 3, Scorer: failingScorer{}})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Status != StatusError || results[0].Error == "" || results[0].Action != "" {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestActionForScore(t *testing.T) {
	t.Parallel()

	cases := map[int]string{0: "allow", 50: "allow", 51: "review", 80: "review", 81: "block", 99: "block"}
	for score, want := range cases {
		if got := ActionForScore(score); got != want {
			t.Fatalf("ActionForScore(%d) = %q, want %q", score, got, want)
		}
	}
}

func TestGeneratorValues(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	g := NewGenerator(99, func() time.Time { return fixed })

	if _, err := uuid.Parse(g.Value(TypeUUID).(string)); err != nil {
		t.Fatalf("uuid: %v", err)
	}
	if e := g.Value(TypeEmail).(string); !strings.HasPrefix(e, "user") || !strings.HasSuffix(e, "@example.com") {
		t.Fatalf("email = %q", e)
	}
	if n := g.Value(TypeNumber).(int); n < 100 || n >= 10100 {
		t.Fatalf("number = %d", n)
	}
	if _, ok := g.Value(TypeBoolean).(bool); !ok {
		t.Fatal("boolean is not a bool")
	}
	if d := g.Value(TypeDate).(string); d != "2025-01-02T03:04:05Z" {
		t.Fatalf("date = %q", d)
	}
	if ip := net.ParseIP(g.Value(TypeIP).(string)); ip == nil || ip.To4() == nil {
		t.Fatal("ip is not IPv4")
	}
	if s := g.Value(TypeString).(string); !strings.HasPrefix(s, "value_") {
		t.Fatalf("string = %q", s)
	}

	a := NewGenerator(5, nil).Event(DefaultFields())
	b := NewGenerator(5, nil).Event(DefaultFields())
	if a["transaction_id"] != b["transaction_id"] || a["amount"] != b["amount"] {
		t.Fatal("same seed must generate the same event")
	}
}

func TestParseField(t *testing.T) {
	t.Parallel()

	f, err := ParseField("country:string")
	if err != nil || f.Name != "country" || f.Type != TypeString {
		t.Fatalf("ParseField = %+v, %v", f, err)
	}
	if f, _ := ParseField("note"); f.Type != TypeString {
		t.Fatalf("default type = %s", f.Type)
	}
	if f, _ := ParseField(" ip : IP "); f.Type != TypeIP || f.Name != "ip" {
		t.Fatalf("ParseField trims: %+v", f)
	}
	if _, err := ParseField("x:money"); err == nil {
		t.Fatal("unknown type must fail")
	}
	if _, err := ParseField(":uuid"); err == nil {
		t.Fatal("empty name must fail")
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	rs := []Result{{Timestamp: time.Unix(0, 0).UTC(), Data: map[string]any{"a": 1}, Score: 90, Action: "block", Status: StatusSuccess}}
	if err := Export(&buf, rs); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Fatalf("expected indented output, got %s", buf.String())
	}
	var back []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil || back[0]["action"] != "block" {
		t.Fatalf("round trip: %v %v", back, err)
	}

	if got := ExportFileName(time.UnixMilli(1700000000123)); got != "synthetic-test-1700000000123.json" {
		t.Fatalf("ExportFileName = %q", got)
	}
}
