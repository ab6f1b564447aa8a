// Package synthetic generates fake events from a field schema and runs them
// through a scorer one at a time, for exercising rules without live traffic.
package synthetic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeUUID    FieldType = "uuid"
	TypeEmail   FieldType = "email"
	TypeIP      FieldType = "ip"
)

// FieldTypes lists every supported type with its display label.
var FieldTypes = []struct {
	Type  FieldType
	Label string
}{
	{TypeString, "String"},
	{TypeNumber, "Number"},
	{TypeBoolean, "Boolean"},
	{TypeDate, "Date/Time"},
	{TypeUUID, "UUID"},
	{TypeEmail, "Email"},
	{TypeIP, "IP Address"},
}

const (
	DefaultDelay = 300 * time.Millisecond
	MaxEvents    = 1000

	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	ErrEventCount = fmt.Errorf("synthetic: number of events must be between 1 and %d", MaxEvents)
	ErrNoFields   = errors.New("synthetic: schema has no fields")
)

type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
}

// DefaultFields is the schema a fresh test starts with.
func DefaultFields() []Field {
	return []Field{
		{Name: "transaction_id", Type: TypeUUID, Required: true},
		{Name: "amount", Type: TypeNumber, Required: true},
		{Name: "user_email", Type: TypeEmail, Required: true},
	}
}

// ParseField reads "name" or "name:type". The type defaults to string.
func ParseField(s string) (Field, error) {
	name, typ, _ := strings.Cut(strings.TrimSpace(s), ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return Field{}, fmt.Errorf("synthetic: field %q has no name", s)
	}
	f := Field{Name: name, Type: TypeString, Required: true}
	if typ = strings.TrimSpace(typ); typ != "" {
		f.Type = FieldType(strings.ToLower(typ))
	}
	if !validType(f.Type) {
		return Field{}, fmt.Errorf("synthetic: unknown field type %q", typ)
	}
	return f, nil
}

func validType(t FieldType) bool {
	for _, ft := range FieldTypes {
		if ft.Type == t {
			return true
		}
	}
	return false
}

// Generator produces field values. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

func NewGenerator(seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), now: now}
}

func (g *Generator) Value(t FieldType) any {
	switch t {
	case TypeUUID:
		id, err := uuid.NewRandomFromReader(g.rng)
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	case TypeEmail:
		return fmt.Sprintf("user%d@example.com", g.rng.Intn(10000))
	case TypeNumber:
		return g.rng.Intn(10000) + 100
	case TypeBoolean:
		return g.rng.Float64() > 0.5
	case TypeDate:
		return g.now().UTC().Format(time.RFC3339Nano)
	case TypeIP:
		return fmt.Sprintf("%d.%d.%d.%d", g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(256))
	default:
		return "value_" + g.token(6)
	}
}

func (g *Generator) token(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[g.rng.Intn(len(alphabet))]
	}
	return string(b)
}

// Event builds one payload following the schema.
func (g *Generator) Event(fields []Field) map[string]any {
	data := make(map[string]any, len(fields))
	for _, f := range fields {
		data[f.Name] = g.Value(f.Type)
	}
	return data
}

// ActionForScore buckets a 0..99 risk score.
func ActionForScore(score int) string {
	switch {
	case score > 80:
		return "block"
	case score > 50:
		return "review"
	}
	return "allow"
}

// Scorer assigns a risk score to an event.
type Scorer interface {
	Score(ctx context.Context, data map[string]any) (int, error)
}

// RandomScorer simulates the scoring engine with a uniform 0..99 score.
type RandomScorer struct {
	rng *rand.Rand
}

func NewRandomScorer(seed int64) *RandomScorer {
	return &RandomScorer{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomScorer) Score(context.Context, map[string]any) (int, error) {
	return s.rng.Intn(100), nil
}

type Result struct {
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Score     int            `json:"score"`
	Action    string         `json:"action"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
}

type Options struct {
	Delay      time.Duration
	Seed       int64
	Scorer     Scorer
	OnProgress func(done, total int, r Result)
	Now        func() time.Time
}

// Run issues n events one at a time, spaced by Delay. Cancelling ctx stops
// the run at the next event boundary or during the wait; the results
// gathered so far are returned together with ctx.Err().
func Run(ctx context.Context, fields []Field, n int, opts Options) ([]Result, error) {
	if n < 1 || n > MaxEvents {
		return nil, ErrEventCount
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Scorer == nil {
		opts.Scorer = NewRandomScorer(opts.Seed + 1)
	}

	gen := NewGenerator(opts.Seed, opts.Now)
	limiter := rate.NewLimiter(rate.Every(opts.Delay), 1)
	limiter.Allow()

	results := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		data := gen.Event(fields)
		if err := limiter.Wait(ctx); err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return results, cerr
			}
			return results, err
		}

		r := Result{Timestamp: opts.Now().UTC(), Data: data, Status: StatusSuccess}
		score, err := opts.Scorer.Score(ctx, data)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return results, cerr
			}
			r.Status = StatusError
			r.Error = err.Error()
		} else {
			r.Score = score
			r.Action = ActionForScore(score)
		}
		results = append(results, r)
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, n, r)
		}
	}
	return results, nil
}

// Export writes results as indented JSON.
func Export(w io.Writer, results []Result) error {
	if results == nil {
		results = []Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// ExportFileName names an export file after the moment it was taken.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("synthetic-test-%d.json", now.UnixMilli())
}
