// Package transfer exports and imports complete study backups.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/studytrack/internal/model"
	"github.com/verte-zerg/studytrack/internal/state"
)

var (
	// ErrInvalidDocument is returned for input that is neither a backup document nor a legacy session list.
	ErrInvalidDocument = errors.New("invalid backup document")
	// ErrDeclined is returned when the user does not confirm a destructive import.
	ErrDeclined = errors.New("import declined")
)

// Format names a backup encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const filenamePrefix = "study-tracker-backup-"

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q (use json or yaml)", name)
	}
}

// FormatFromPath picks a format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DefaultFilename returns the date-stamped export name for now.
func DefaultFilename(now time.Time, format Format) string {
	ext := ".json"
	if format == FormatYAML {
		ext = ".yaml"
	}
	return filenamePrefix + now.Format("2006-01-02") + ext
}

// Export builds the backup document from a snapshot.
func Export(s state.Snapshot) model.Document {
	doc := model.Document{
		Sessions:  s.Sessions,
		StudyPlan: s.StudyPlan,
		MCQLogs:   s.MCQLogs,
	}
	if doc.Sessions == nil {
		doc.Sessions = []model.StudySession{}
	}
	if doc.StudyPlan == nil {
		doc.StudyPlan = []string{}
	}
	if doc.MCQLogs == nil {
		doc.MCQLogs = []model.MCQLog{}
	}
	return doc
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc model.Document, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// Kind tells which shape an imported document had.
type Kind int

// Document shapes.
const (
	KindLegacy Kind = iota + 1
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindLegacy:
		return "legacy session list"
	case KindDocument:
		return "backup document"
	default:
		return "unknown"
	}
}

// Payload is a decoded import. Nil fields were absent and stay untouched.
type Payload struct {
	Kind      Kind
	Sessions  *[]model.StudySession
	StudyPlan *[]string
	MCQLogs   *[]model.MCQLog
}

// Replacement converts the payload into a state replacement.
func (p Payload) Replacement() state.Replacement {
	return state.Replacement{Sessions: p.Sessions, StudyPlan: p.StudyPlan, MCQLogs: p.MCQLogs}
}

// Summary describes what the payload contains.
func (p Payload) Summary() string {
	var parts []string
	if p.Sessions != nil {
		parts = append(parts, english.Plural(len(*p.Sessions), "session", ""))
	}
	if p.StudyPlan != nil {
		parts = append(parts, english.Plural(len(*p.StudyPlan), "plan subject", ""))
	}
	if p.MCQLogs != nil {
		parts = append(parts, english.Plural(len(*p.MCQLogs), "MCQ log", ""))
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return english.OxfordWordSeries(parts, "and")
}

type wireDocument struct {
	Sessions  *[]model.StudySession `json:"sessions" yaml:"sessions"`
	StudyPlan *[]string             `json:"studyPlan" yaml:"studyPlan"`
	MCQLogs   *[]model.MCQLog       `json:"mcqLogs" yaml:"mcqLogs"`
}

// Decode parses an import in the given format. A bare sequence is a legacy
// session list; a mapping is a backup document. Anything else is rejected.
func Decode(data []byte, format Format) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch format {
	case FormatYAML:
		p, err = decodeYAML(data)
	case FormatJSON, "":
		p, err = decodeJSON(data)
	default:
		return Payload{}, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return Payload{}, err
	}
	if err := p.validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func decodeJSON(data []byte) (Payload, error) {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(trimmed) == 0 {
		return Payload{}, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}
	switch trimmed[0] {
	case '[':
		var sessions []model.StudySession
		if err := json.Unmarshal(trimmed, &sessions); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return legacy(sessions), nil
	case '{':
		var doc wireDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return document(doc)
	default:
		return Payload{}, fmt.Errorf("%w: expected an object or a list", ErrInvalidDocument)
	}
}

func decodeYAML(data []byte) (Payload, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	node := &root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return Payload{}, fmt.Errorf("%w: empty input", ErrInvalidDocument)
		}
		node = node.Content[0]
	}
	switch node.Kind {
	case yaml.SequenceNode:
		var sessions []model.StudySession
		if err := node.Decode(&sessions); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return legacy(sessions), nil
	case yaml.MappingNode:
		var doc wireDocument
		if err := node.Decode(&doc); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return document(doc)
	default:
		return Payload{}, fmt.Errorf("%w: expected a mapping or a sequence", ErrInvalidDocument)
	}
}

func legacy(sessions []model.StudySession) Payload {
	if sessions == nil {
		sessions = []model.StudySession{}
	}
	return Payload{Kind: KindLegacy, Sessions: &sessions}
}

func document(doc wireDocument) (Payload, error) {
	if doc.Sessions == nil && doc.StudyPlan == nil && doc.MCQLogs == nil {
		return Payload{}, fmt.Errorf("%w: no sessions, studyPlan or mcqLogs field", ErrInvalidDocument)
	}
	return Payload{
		Kind:      KindDocument,
		Sessions:  doc.Sessions,
		StudyPlan: doc.StudyPlan,
		MCQLogs:   doc.MCQLogs,
	}, nil
}

func (p Payload) validate() error {
	if p.Sessions != nil {
		seen := map[string]struct{}{}
		for _, s := range *p.Sessions {
			if err := checkID(seen, s.ID, "session"); err != nil {
				return err
			}
			if s.Duration < 0 {
				return fmt.Errorf("%w: session %q has negative duration", ErrInvalidDocument, s.ID)
			}
			if s.Concentration < model.MinConcentration || s.Concentration > model.MaxConcentration {
				return fmt.Errorf("%w: session %q has concentration %d outside %d-%d", ErrInvalidDocument, s.ID, s.Concentration, model.MinConcentration, model.MaxConcentration)
			}
			if s.EndTime < s.StartTime {
				return fmt.Errorf("%w: session %q ends before it starts", ErrInvalidDocument, s.ID)
			}
		}
	}
	if p.MCQLogs != nil {
		seen := map[string]struct{}{}
		for _, l := range *p.MCQLogs {
			if err := checkID(seen, l.ID, "mcq log"); err != nil {
				return err
			}
			if l.Count < 0 {
				return fmt.Errorf("%w: mcq log %q has negative count", ErrInvalidDocument, l.ID)
			}
		}
	}
	return nil
}

func checkID(seen map[string]struct{}, id, what string) error {
	if id == "" {
		return nil
	}
	if _, ok := seen[id]; ok {
		return fmt.Errorf("%w: duplicate %s id %q", ErrInvalidDocument, what, id)
	}
	seen[id] = struct{}{}
	return nil
}

// Confirm asks the user to approve a destructive replacement.
type Confirm func(prompt string) bool

// Overwrites lists the non-empty collections the payload would replace.
func Overwrites(st *state.State, p Payload) []string {
	var out []string
	if p.Sessions != nil && st.Sessions.Len() > 0 {
		out = append(out, english.Plural(st.Sessions.Len(), "session", ""))
	}
	if p.StudyPlan != nil {
		if n := len(st.Plan.Labels()); n > 0 {
			out = append(out, english.Plural(n, "plan subject", ""))
		}
	}
	if p.MCQLogs != nil && st.MCQLogs.Len() > 0 {
		out = append(out, english.Plural(st.MCQLogs.Len(), "MCQ log", ""))
	}
	return out
}

// Apply replaces the collections present in p. When that would discard
// existing data, confirm must approve first.
func Apply(ctx context.Context, st *state.State, p Payload, confirm Confirm) error {
	if lost := Overwrites(st, p); len(lost) > 0 {
		prompt := fmt.Sprintf("Replace %s with %s from the %s?", english.OxfordWordSeries(lost, "and"), p.Summary(), p.Kind)
		if confirm == nil || !confirm(prompt) {
			return ErrDeclined
		}
	}
	if err := st.Replace(ctx, p.Replacement()); err != nil {
		return fmt.Errorf("failed to apply import: %w", err)
	}
	return nil
}
