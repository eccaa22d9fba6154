package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/outbound"
	"github.com/ppiankov/drillgrade/internal/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exerciseYAML = `name: January ETO
window:
  open: "2025-01-16 00:00"
  close: "2025-01-16 23:59"
fields:
  - id: msg.organization
    label: Agency/Group
    kind: EQUALS
    expected: EmComm Training Organization
    weight: 40
  - id: city
    label: City
    kind: REQUIRED
    weight: 20
counted: [city]
columns: [city]
lookup:
  path: cities.csv
  skip_rows: 1
  key_column: 0
  key_field: city
  label: City
  compare:
    - field: beds
      column: 1
      label: Beds
      weight: 20
image:
  suffix: .png
  reference: reference.png
  threshold: 0.9
  weight: 20
p2p:
  targets: targets.csv
  skip_rows: 1
messages: messages.json
`

const citiesCSV = `City,Beds
Seattle,10
Tacoma,5
Seattle,12
`

const targetsCSV = `Call,Band,Frequency,Latitude,Longitude
W7GW-10,2m,145.050,47.6,-122.3
K7RELAY,40m,7.101,,
`

// fakeScorer rates "good" attachments as identical to the reference
type fakeScorer struct{}

func (fakeScorer) Score(_ context.Context, data []byte) (float64, error) {
	switch string(data) {
	case "good":
		return 1, nil
	case "junk":
		return 0, similarity.ErrUndecodable
	}
	return 0.25, nil
}

func fakeScorerFactory(string) (similarity.Scorer, error) {
	return fakeScorer{}, nil
}

// cancellingScorer cancels the run while scoring its first image
type cancellingScorer struct {
	cancel context.CancelFunc
}

func (s cancellingScorer) Score(ctx context.Context, _ []byte) (float64, error) {
	s.cancel()
	return 0, ctx.Err()
}

// expiredScorer reports that the run's deadline passed
type expiredScorer struct{}

func (expiredScorer) Score(context.Context, []byte) (float64, error) {
	return 0, context.DeadlineExceeded
}

// recordingSender keeps every message it is asked to send
type recordingSender struct {
	mu   sync.Mutex
	sent []outbound.Message
	fail bool
}

func (r *recordingSender) Send(_ context.Context, m outbound.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("relay down")
	}
	r.sent = append(r.sent, m)
	return nil
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func fixtureMessages() []model.Message {
	return []model.Message{
		{
			ID:           "M1",
			From:         "K1ABC",
			To:           []string{"W7GW-10"},
			Date:         date("2025-01-16 10:00"),
			Kind:         "ICS-213",
			Organization: "EmComm Training Organization",
			Fields:       map[string]string{"city": "Seattle", "beds": "12"},
			Latitude:     "47.5",
			Longitude:    "-122.2",
			Attachments:  map[string][]byte{"photo.png": []byte("good")},
		},
		{
			ID:           "M2",
			From:         "W7XYZ",
			To:           []string{"K7RELAY", "NOBODY"},
			Date:         date("2025-01-15 23:59"),
			Kind:         "ICS-213",
			Organization: "EmComm Training Organization",
			Fields:       map[string]string{"city": "Tacoma", "beds": "5"},
			Attachments:  map[string][]byte{"photo.png": []byte("good")},
		},
		{
			ID:           "M3",
			From:         "N0ABC",
			To:           []string{"W7GW-10"},
			Date:         date("2025-01-16 12:00"),
			Kind:         "ICS-213",
			Organization: "Wrong",
			Fields:       map[string]string{"city": "Springfield"},
		},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeMessages(t *testing.T, path string, messages []model.Message) {
	t.Helper()
	data, err := json.Marshal(messages)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// fixture writes a complete exercise directory and returns the exercise path
func fixture(t *testing.T, exercise string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "exercise.yaml"), exercise)
	writeFile(t, filepath.Join(dir, "cities.csv"), citiesCSV)
	writeFile(t, filepath.Join(dir, "targets.csv"), targetsCSV)
	writeMessages(t, filepath.Join(dir, "messages.json"), fixtureMessages())
	return filepath.Join(dir, "exercise.yaml")
}

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Cache.Enabled = false
	return cfg
}

func rowByID(t *testing.T, res *Result, id string) []string {
	t.Helper()
	for _, r := range res.Rows {
		if r.Columns[0] == id {
			return r.Columns
		}
	}
	t.Fatalf("no row for %s", id)
	return nil
}

func gradeByID(t *testing.T, res *Result, id string) (int, string) {
	t.Helper()
	for _, r := range res.Rows {
		if r.Columns[0] == id {
			return r.Grade.Score, r.Grade.Explanation
		}
	}
	t.Fatalf("no row for %s", id)
	return 0, ""
}

func TestRun_GradesEveryMessage(t *testing.T) {
	cfg := testConfig(t)
	p := NewPipeline(cfg, nil, WithScorerFactory(fakeScorerFactory))

	res, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	require.NoError(t, err)

	assert.Equal(t, "January ETO", res.Exercise)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "january-eto"), res.OutputDir)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"Message", "From", "Date", "Kind", "City"}, res.Header)
	require.Len(t, res.Rows, 3)

	score, explanation := gradeByID(t, res, "M1")
	assert.Equal(t, 100, score)
	assert.Equal(t, "Perfect Score!", explanation)
	assert.Equal(t, []string{"M1", "K1ABC", "2025-01-16 10:00", "ICS-213", "Seattle"}, rowByID(t, res, "M1"))

	score, explanation = gradeByID(t, res, "M2")
	assert.Equal(t, 0, score)
	assert.Contains(t, explanation, "Message date (2025-01-15 23:59) should be on or after 2025-01-16 00:00")
	assert.Contains(t, explanation, "automatic fail: Message date")

	score, explanation = gradeByID(t, res, "M3")
	assert.Equal(t, 20, score)
	assert.Contains(t, explanation, "Agency/Group (Wrong) should be EmComm Training Organization")
	assert.Contains(t, explanation, "City (Springfield) should be a known value from cities.csv")
	assert.Contains(t, explanation, "Image (null) should be attached as *.png")
	assert.NotContains(t, explanation, "Beds")

	s := res.Summary
	assert.Equal(t, 3, s.Graded())
	assert.Equal(t, 1, s.Passed())
	assert.Equal(t, 1, s.AutomaticFails)
	assert.Equal(t, 100, s.Threshold)
	assert.Equal(t, 3, s.Messages)
	assert.Equal(t, []string{"Seattle"}, s.Duplicates)
	// M2, M3 and the unplaced relay
	assert.Equal(t, 3, s.Synthetic)
	require.Len(t, s.Histograms, 1)
	assert.Equal(t, "City", s.Histograms[0].Title)
}

func TestRun_FieldStats(t *testing.T) {
	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))

	res, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	require.NoError(t, err)

	stats := make(map[string][2]int)
	for _, f := range res.Summary.Fields {
		prev := stats[f.Label]
		stats[f.Label] = [2]int{prev[0] + f.Passes, prev[1] + f.Attempts}
	}

	assert.Equal(t, [2]int{2, 3}, stats["Agency/Group"])
	assert.Equal(t, [2]int{3, 3}, stats["City"])
	// the lookup miss on M3 skips the comparison entirely
	assert.Equal(t, [2]int{2, 2}, stats["Beds"])
	assert.Equal(t, [2]int{2, 3}, stats["Image"])
	// open and close bound, three messages each
	assert.Equal(t, [2]int{5, 6}, stats["Message date"])
}

func TestRun_WritesReports(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Metrics = true
	p := NewPipeline(cfg, nil, WithScorerFactory(fakeScorerFactory))

	res, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	require.NoError(t, err)

	var names []string
	for _, out := range res.Outputs {
		names = append(names, filepath.Base(out))
		assert.FileExists(t, out)
	}
	assert.ElementsMatch(t, []string{"grades.csv", "summary.txt", "grades.kml", "p2p.kml", "targets.csv", "fields.csv", "drillgrade.prom"}, names)

	f, err := os.Open(filepath.Join(res.OutputDir, "grades.csv"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Message", "From", "Date", "Kind", "City", "Grade", "Explanation"}, records[0])

	summary, err := os.ReadFile(filepath.Join(res.OutputDir, "summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "January ETO")

	targets, err := os.ReadFile(filepath.Join(res.OutputDir, "targets.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(targets), "Call,Band,Frequency,Latitude,Longitude,Approximate,Messages,Stations,"),
		"the spreadsheet's own header is kept")
	assert.Contains(t, string(targets), "W7GW-10,2m,145.050,47.6,-122.3,false,2,2")
	assert.Contains(t, string(targets), "K7RELAY")

	fields, err := os.ReadFile(filepath.Join(res.OutputDir, "fields.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(fields), "K1ABC")
	assert.Contains(t, string(fields), "N0ABC")
}

func TestRun_NoKML(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.KML = false
	p := NewPipeline(cfg, nil, WithScorerFactory(fakeScorerFactory))

	res, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	require.NoError(t, err)

	for _, out := range res.Outputs {
		assert.NotEqual(t, "grades.kml", filepath.Base(out))
	}
	assert.NoFileExists(t, filepath.Join(res.OutputDir, "grades.kml"))
}

func TestRun_Graph(t *testing.T) {
	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))

	res, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	require.NoError(t, err)
	require.NotNil(t, res.Graph)

	g := res.Graph
	require.Contains(t, g.Targets, "W7GW-10")
	require.Contains(t, g.Targets, "K7RELAY")
	assert.Len(t, g.Targets["W7GW-10"].Inbound, 2)
	assert.Len(t, g.Targets["K7RELAY"].Inbound, 1)
	assert.Equal(t, 1, g.DroppedCount)
	assert.Equal(t, []string{"Call", "Band", "Frequency", "Latitude", "Longitude"}, g.Header)

	relay := g.Targets["K7RELAY"]
	require.NotNil(t, relay.Location)
	assert.True(t, relay.Synthetic)
	assert.False(t, g.Targets["W7GW-10"].Synthetic)

	for call, field := range g.Fields {
		assert.NotNil(t, field.Location, call)
	}
	assert.False(t, g.Fields["K1ABC"].Synthetic)
	assert.True(t, g.Fields["W7XYZ"].Synthetic)
}

func TestRun_ImageChecks(t *testing.T) {
	tests := []struct {
		name        string
		attachment  string
		maxBytes    string
		wantScore   int
		explanation string
	}{
		{name: "similar", attachment: "good", wantScore: 100},
		{name: "dissimilar", attachment: "other", wantScore: 80, explanation: "Image (photo.png, similarity 0.25) should be similar to the reference (0.90)"},
		{name: "unreadable", attachment: "junk", wantScore: 80, explanation: "Image (photo.png) is unreadable, should be an image like the reference"},
		{name: "too big", attachment: "good", maxBytes: "\n  max_bytes: 2", wantScore: 80, explanation: "Image (photo.png, 4 bytes) should be at most 2 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exercise := strings.Replace(exerciseYAML, "  weight: 20\np2p:", "  weight: 20"+tt.maxBytes+"\np2p:", 1)
			path := fixture(t, exercise)

			messages := fixtureMessages()[:1]
			messages[0].Attachments = map[string][]byte{"photo.png": []byte(tt.attachment)}
			writeMessages(t, filepath.Join(filepath.Dir(path), "messages.json"), messages)

			p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))
			res, err := p.Run(context.Background(), path, "")
			require.NoError(t, err)

			score, explanation := gradeByID(t, res, "M1")
			assert.Equal(t, tt.wantScore, score)
			if tt.explanation != "" {
				assert.Equal(t, tt.explanation, explanation)
			}
		})
	}
}

func TestRun_MessagesArgumentOverridesExercise(t *testing.T) {
	path := fixture(t, exerciseYAML)
	other := filepath.Join(t.TempDir(), "other.json")
	writeMessages(t, other, fixtureMessages()[:1])

	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))
	res, err := p.Run(context.Background(), path, other)
	require.NoError(t, err)

	assert.Len(t, res.Rows, 1)
}

func TestRun_KindsFilter(t *testing.T) {
	path := fixture(t, "kinds: [Position Report]\n"+exerciseYAML)
	messages := fixtureMessages()
	messages[2].Kind = "Position Report"
	writeMessages(t, filepath.Join(filepath.Dir(path), "messages.json"), messages)

	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))
	res, err := p.Run(context.Background(), path, "")
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "M3", res.Rows[0].Columns[0])
	assert.Equal(t, 2, res.Summary.Skipped)
}

func TestRun_SenderMode(t *testing.T) {
	path := fixture(t, "unit: sender\nmin_messages: 2\npass_threshold: 60\n"+exerciseYAML)

	messages := fixtureMessages()
	// a second, later message from K1ABC with a broken organization
	late := messages[0]
	late.ID = "M4"
	late.Date = date("2025-01-16 18:00")
	late.Organization = "ETO"
	late.Attachments = nil
	messages = append(messages, late)
	writeMessages(t, filepath.Join(filepath.Dir(path), "messages.json"), messages)

	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))
	res, err := p.Run(context.Background(), path, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Sender", "Messages", "Latest", "City"}, res.Header)
	require.Len(t, res.Rows, 3)

	// senders are ordered by call
	assert.Equal(t, "K1ABC", res.Rows[0].Columns[0])
	assert.Equal(t, "N0ABC", res.Rows[1].Columns[0])
	assert.Equal(t, "W7XYZ", res.Rows[2].Columns[0])

	// the earlier passing organization and attachment still count
	k1 := res.Rows[0]
	assert.Equal(t, []string{"K1ABC", "2", "2025-01-16 18:00", "Seattle"}, k1.Columns)
	assert.Equal(t, 100, k1.Grade.Score)

	n0 := res.Rows[1]
	assert.Equal(t, 0, n0.Grade.Score)
	assert.Contains(t, n0.Grade.Explanation, "automatic fail: 1 message(s) sent, should be at least 2")

	assert.Equal(t, 60, res.Summary.Threshold)
	assert.Equal(t, 1, res.Summary.Passed())
}

func TestRun_WindowNotDisqualifying(t *testing.T) {
	exercise := strings.Replace(exerciseYAML, `  close: "2025-01-16 23:59"`, `  close: "2025-01-16 23:59"
  disqualifying: false`, 1)
	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))

	res, err := p.Run(context.Background(), fixture(t, exercise), "")
	require.NoError(t, err)

	score, explanation := gradeByID(t, res, "M2")
	assert.Equal(t, 100, score)
	assert.Contains(t, explanation, "should be on or after")
	assert.NotContains(t, explanation, "automatic fail")
	assert.Equal(t, 0, res.Summary.AutomaticFails)
}

func TestRun_Feedback(t *testing.T) {
	sender := &recordingSender{}
	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory), WithSender(sender))

	res, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	require.NoError(t, err)

	assert.Equal(t, 3, res.FeedbackSent)
	assert.Equal(t, 0, res.FeedbackFailed)
	require.Len(t, sender.sent, 3)

	var m1 outbound.Message
	for _, m := range sender.sent {
		if m.To == "K1ABC" {
			m1 = m
		}
	}
	assert.Equal(t, "GRADER", m1.From)
	assert.Equal(t, "January ETO: grade 100", m1.Subject)
	assert.Contains(t, m1.Body, "Message: M1 (ICS-213, 2025-01-16 10:00)")
	assert.Contains(t, m1.Body, "Perfect Score!")
	assert.NotEmpty(t, m1.ID)
}

func TestRun_FeedbackFailuresDoNotAbort(t *testing.T) {
	sender := &recordingSender{fail: true}
	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory), WithSender(sender))

	res, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	require.NoError(t, err)

	assert.Equal(t, 0, res.FeedbackSent)
	assert.Equal(t, 3, res.FeedbackFailed)
	assert.Len(t, res.Rows, 3)
}

func TestRun_FeedbackOutbox(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feedback.Enabled = true
	cfg.Feedback.OutboxDir = t.TempDir()
	p := NewPipeline(cfg, nil, WithScorerFactory(fakeScorerFactory))

	res, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.FeedbackSent)

	entries, err := os.ReadDir(cfg.Feedback.OutboxDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRun_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{
			name: "missing ground truth",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "cities.csv")))
			},
		},
		{
			name: "missing targets",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "targets.csv")))
			},
		},
		{
			name: "missing export",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "messages.json")))
			},
		},
		{
			name: "empty export",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "messages.json"), "[]")
			},
		},
		{
			name: "unknown key",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "exercise.yaml"), "colour: red\n"+exerciseYAML)
			},
		},
		{
			name: "unknown test kind",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "exercise.yaml"), strings.Replace(exerciseYAML, "kind: REQUIRED", "kind: MAYBE", 1))
			},
		},
		{
			name: "window closes before it opens",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "exercise.yaml"), strings.Replace(exerciseYAML, "2025-01-16 23:59", "2025-01-15 00:00", 1))
			},
		},
		{
			name: "missing exercise",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "exercise.yaml")))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := fixture(t, exerciseYAML)
			tt.setup(t, filepath.Dir(path))

			p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))
			_, err := p.Run(context.Background(), path, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestRun_ScorerFailureIsConfigurationError(t *testing.T) {
	p := NewPipeline(testConfig(t), nil, WithScorerFactory(func(string) (similarity.Scorer, error) {
		return nil, errors.New("no reference")
	}))

	_, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))
	_, err := p.Run(ctx, fixture(t, exerciseYAML), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_CanceledWhileScoring(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t)
	p := NewPipeline(cfg, nil, WithScorerFactory(func(string) (similarity.Scorer, error) {
		return cancellingScorer{cancel: cancel}, nil
	}))

	_, err := p.Run(ctx, fixture(t, exerciseYAML), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "january-eto", "grades.csv"))
}

func TestRun_ScorerDeadlineAborts(t *testing.T) {
	cfg := testConfig(t)
	p := NewPipeline(cfg, nil, WithScorerFactory(func(string) (similarity.Scorer, error) {
		return expiredScorer{}, nil
	}))

	_, err := p.Run(context.Background(), fixture(t, exerciseYAML), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "january-eto", "grades.csv"))
}

func TestRun_WindowComparesUTC(t *testing.T) {
	path := fixture(t, exerciseYAML)

	eastern := time.FixedZone("EST", -5*60*60)
	early := fixtureMessages()[0]
	// 21:00 in New York is already 02:00 UTC on the exercise day
	early.ID = "EVENING"
	early.Date = time.Date(2025, 1, 15, 21, 0, 0, 0, eastern)
	late := fixtureMessages()[0]
	// 20:00 in New York is 01:00 UTC the day after
	late.ID = "NEXTDAY"
	late.Date = time.Date(2025, 1, 16, 20, 0, 0, 0, eastern)
	writeMessages(t, filepath.Join(filepath.Dir(path), "messages.json"), []model.Message{early, late})

	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))
	res, err := p.Run(context.Background(), path, "")
	require.NoError(t, err)

	score, explanation := gradeByID(t, res, "EVENING")
	assert.Equal(t, 100, score)
	assert.Equal(t, "Perfect Score!", explanation)
	assert.Equal(t, "2025-01-16 02:00", rowByID(t, res, "EVENING")[2])

	score, explanation = gradeByID(t, res, "NEXTDAY")
	assert.Equal(t, 0, score)
	assert.Contains(t, explanation, "Message date (2025-01-17 01:00) should be on or before 2025-01-16 23:59")
}

func TestGraphOnly(t *testing.T) {
	cfg := testConfig(t)
	p := NewPipeline(cfg, nil)

	g, err := p.Graph(context.Background(), fixture(t, exerciseYAML), "")
	require.NoError(t, err)

	assert.Len(t, g.Edges, 3)
	assert.Equal(t, 1, g.DroppedCount)
	assert.NotNil(t, g.Targets["K7RELAY"].Location)

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGraphOnly_NoP2P(t *testing.T) {
	exercise := exerciseYAML[:strings.Index(exerciseYAML, "p2p:")] + "messages: messages.json\n"
	p := NewPipeline(testConfig(t), nil)

	_, err := p.Graph(context.Background(), fixture(t, exercise), "")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRunBatch(t *testing.T) {
	first := fixture(t, exerciseYAML)
	second := fixture(t, strings.Replace(exerciseYAML, "January ETO", "February ETO", 1))
	broken := filepath.Join(t.TempDir(), "missing.yaml")

	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))
	outcomes := p.RunBatch(context.Background(), []Job{
		{Exercise: first},
		{Exercise: broken},
		{Exercise: second},
	}, 2)

	require.Len(t, outcomes, 3)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, "January ETO", outcomes[0].Value.Exercise)
	assert.ErrorIs(t, outcomes[1].Err, ErrConfiguration)
	require.NoError(t, outcomes[2].Err)
	assert.Equal(t, "February ETO", outcomes[2].Value.Exercise)
}

func TestRunBatch_CanceledReportsEveryJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(testConfig(t), nil, WithScorerFactory(fakeScorerFactory))
	outcomes := p.RunBatch(ctx, []Job{
		{Exercise: fixture(t, exerciseYAML)},
		{Exercise: fixture(t, exerciseYAML)},
		{Exercise: fixture(t, exerciseYAML)},
	}, 1)

	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}
