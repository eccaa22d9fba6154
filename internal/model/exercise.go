package model

// GradingUnit selects what one grade covers
type GradingUnit string

const (
	UnitMessage GradingUnit = "message" // one grade per message
	UnitSender  GradingUnit = "sender"  // one grade per sender across all their messages
)

// Exercise is the per-exercise configuration: the literal expectations for
// one drill, loaded from YAML and consumed by the generic grading engine.
type Exercise struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Unit        GradingUnit `yaml:"unit,omitempty" validate:"omitempty,oneof=message sender"`

	// Messages is the default message export (file or directory)
	Messages string `yaml:"messages,omitempty"`

	// Kinds restricts grading to messages of these form types (all when empty)
	Kinds []string `yaml:"kinds,omitempty"`

	// MinMessages is the number of messages a sender must send in sender mode
	MinMessages int `yaml:"min_messages,omitempty" validate:"gte=0"`

	// PassThreshold is the lowest passing score for the summary (default 100)
	PassThreshold int `yaml:"pass_threshold,omitempty" validate:"gte=0,lte=100"`

	Window     Window        `yaml:"window,omitempty"`
	DateLayout string        `yaml:"date_layout,omitempty"`
	Fields     []FieldConfig `yaml:"fields"`

	// Counted lists field ids tallied into histograms for the summary
	Counted []string `yaml:"counted,omitempty"`

	// Columns lists field ids written as the leading CSV columns
	Columns []string `yaml:"columns,omitempty"`

	Lookup   *LookupConfig   `yaml:"lookup,omitempty"`
	Image    *ImageConfig    `yaml:"image,omitempty"`
	P2P      *P2PConfig      `yaml:"p2p,omitempty"`
	Location *LocationConfig `yaml:"location,omitempty"`
}

// Window bounds the exercise in time. Both ends are inclusive and either
// may be empty. Times use the exercise DateLayout.
type Window struct {
	Open  string `yaml:"open,omitempty"`
	Close string `yaml:"close,omitempty"`
	// Disqualifying makes a message outside the window an automatic fail
	Disqualifying *bool `yaml:"disqualifying,omitempty"`
}

// FieldConfig declares one field assertion
type FieldConfig struct {
	ID            string   `yaml:"id"`
	Label         string   `yaml:"label,omitempty"`
	Kind          string   `yaml:"kind"`
	Expected      string   `yaml:"expected,omitempty"`
	Placeholder   string   `yaml:"placeholder,omitempty"`
	Set           []string `yaml:"set,omitempty"`
	Bound         string   `yaml:"bound,omitempty"`
	Layout        string   `yaml:"layout,omitempty"`
	Weight        int      `yaml:"weight"`
	Disqualifying bool     `yaml:"disqualifying,omitempty"`
	IgnoreCase    bool     `yaml:"ignore_case,omitempty"`
}

// LookupConfig points at a ground-truth spreadsheet keyed by a natural key
// taken from each message (e.g. the reporting city)
type LookupConfig struct {
	Path      string          `yaml:"path" validate:"required"`
	SkipRows  int             `yaml:"skip_rows" validate:"gte=0"`
	KeyColumn int             `yaml:"key_column" validate:"gte=0"`
	KeyField  string          `yaml:"key_field" validate:"required"`
	Label     string          `yaml:"label,omitempty"`
	Compare   []LookupCompare `yaml:"compare" validate:"dive"`
}

// LookupCompare checks one message field against one spreadsheet column
type LookupCompare struct {
	Field  string `yaml:"field" validate:"required"`
	Column int    `yaml:"column" validate:"gte=0"`
	Label  string `yaml:"label,omitempty"`
	Weight int    `yaml:"weight"`
}

// ImageConfig describes an expected image attachment
type ImageConfig struct {
	Suffix        string  `yaml:"suffix"`
	Reference     string  `yaml:"reference" validate:"required"`
	Threshold     float64 `yaml:"threshold" validate:"gte=0,lte=1"`
	MaxBytes      int     `yaml:"max_bytes,omitempty" validate:"gte=0"`
	Weight        int     `yaml:"weight"`
	Disqualifying bool    `yaml:"disqualifying,omitempty"`
}

// P2PConfig enables the field/target graph for exercises where operators
// message relay or gateway stations directly
type P2PConfig struct {
	Targets  string `yaml:"targets" validate:"required"`
	SkipRows int    `yaml:"skip_rows" validate:"gte=0"`
	UseCc    bool   `yaml:"use_cc,omitempty"`
}

// LocationConfig overrides the run-wide jitter defaults for one exercise
type LocationConfig struct {
	Center       *Coordinate `yaml:"center,omitempty"`
	RadiusMeters float64     `yaml:"radius_meters,omitempty" validate:"gte=0"`
}

// EffectiveUnit returns the grading unit, defaulting to per-message
func (e *Exercise) EffectiveUnit() GradingUnit {
	if e.Unit == "" {
		return UnitMessage
	}
	return e.Unit
}

// Threshold returns the passing score, defaulting to a perfect score
func (e *Exercise) Threshold() int {
	if e.PassThreshold <= 0 {
		return 100
	}
	return e.PassThreshold
}

// Accepts reports whether a message kind is graded by this exercise
func (e *Exercise) Accepts(kind string) bool {
	if len(e.Kinds) == 0 {
		return true
	}
	for _, k := range e.Kinds {
		if equalFoldTrim(k, kind) {
			return true
		}
	}
	return false
}
