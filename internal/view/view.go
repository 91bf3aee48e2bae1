package view

import (
	"embed"
	"html/template"
	"strconv"
	"strings"

	"deeplink/internal/link"
	"deeplink/internal/model"
	"deeplink/internal/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

var Themes = []string{"auto", "light", "dark"}

// NormalizeTheme maps anything unknown to auto.
func NormalizeTheme(theme string) string {
	for _, t := range Themes {
		if theme == t {
			return t
		}
	}
	return "auto"
}

var funcs = template.FuncMap{
	"IsIP":       utils.IsIP,
	"statusIcon": statusIcon,
	"safeURL":    safeURL,
	"inc":        func(i int) int { return i + 1 },
}

func statusIcon(s model.CheckStatus) string {
	switch s {
	case model.StatusFail:
		return "❌"
	case model.StatusWarning:
		return "⚠️"
	case model.StatusNeutral:
		return "⚪"
	default:
		return "✅"
	}
}

// safeURL lets a validated custom-scheme link through as an href. Script
// schemes never pass.
func safeURL(value string) template.URL {
	if !link.ValidateLink(value).OK {
		return "#"
	}
	scheme, _, _ := strings.Cut(strings.ToLower(value), ":")
	switch scheme {
	case "javascript", "vbscript", "data":
		return "#"
	}
	return template.URL(value)
}

// NewRenderer parses the embedded templates into an echo renderer.
func NewRenderer() (*utils.TemplateRegistry, error) {
	t, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &utils.TemplateRegistry{Templates: t}, nil
}

// TesterRow is one input row of the link tester.
type TesterRow struct {
	Index  int
	Value  string
	Locked bool
	Valid  link.Validation
}

type TesterView struct {
	Rows     []TesterRow
	EditMode bool
	CanAdd   bool
	CanUndo  bool
	Undo     []string
	Values   []string
	ShareURL string
	Error    string
	History  []model.HistoryEntry
}

// BuildTester renders a link list and its undo stack into form state.
func BuildTester(l *link.List) TesterView {
	v := TesterView{
		EditMode: l.EditMode(),
		CanAdd:   l.EditMode() && l.Len() < link.MaxLinks,
		Values:   l.Values(),
	}
	for i, r := range l.Rows() {
		v.Rows = append(v.Rows, TesterRow{Index: i, Value: r.Value, Locked: r.Locked, Valid: link.ValidateLink(r.Value)})
	}
	for _, u := range l.UndoStack() {
		v.Undo = append(v.Undo, EncodeRemoved(u))
	}
	v.CanUndo = v.EditMode && len(v.Undo) > 0
	return v
}

// EncodeRemoved packs a removed row into a hidden form value.
func EncodeRemoved(r link.Removed) string {
	return strconv.Itoa(r.Index) + ":" + r.Row.Value
}

func DecodeRemoved(s string) (link.Removed, bool) {
	idx, value, ok := strings.Cut(s, ":")
	if !ok {
		return link.Removed{}, false
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 {
		return link.Removed{}, false
	}
	return link.Removed{Index: i, Row: link.Row{Value: value}}, true
}
