package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/meshforge/cli/reader"
	"github.com/justapithecus/meshforge/lode"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_mesh":
		content = m.renderInspectMesh()
	case "inspect_lod":
		content = m.renderInspectLOD()
	case "inspect_job":
		content = m.renderInspectJob()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

type field struct {
	label string
	value string
	style lipgloss.Style
}

func plain(label, value string) field { return field{label, value, ValueStyle} }

func renderFields(b *strings.Builder, fields []field) {
	for _, f := range fields {
		fmt.Fprintf(b, "%s %s\n", LabelStyle.Render(f.label+":"), f.style.Render(f.value))
	}
}

func (m InspectModel) renderInspectMesh() string {
	data, ok := m.data.(*reader.MeshInspection)
	if !ok {
		return "Invalid data type for inspect_mesh"
	}
	r, c := data.Report, data.Compatibility

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Mesh " + data.Source))
	b.WriteString("\n\n")
	renderFields(&b, []field{
		plain("Vertices", fmt.Sprintf("%d", r.VertexCount)),
		plain("Faces", fmt.Sprintf("%d", r.FaceCount)),
		plain("Euler", fmt.Sprintf("%d", r.EulerCharacteristic)),
		{"Watertight", yesNo(r.IsWatertight), BoolStyle(r.IsWatertight)},
		{"UVs", yesNo(r.HasUVs), BoolStyle(r.HasUVs)},
		plain("Degenerate faces", fmt.Sprintf("%d", r.DegenerateFaces)),
		plain("Non-manifold", fmt.Sprintf("%d", r.NonManifoldEdges)),
		plain("Surface area", fmt.Sprintf("%.4f", r.SurfaceArea)),
		plain("Volume", fmt.Sprintf("%.4f", r.Volume)),
		plain("Aspect mean/max", fmt.Sprintf("%.2f / %.2f", r.MeanAspectRatio, r.MaxAspectRatio)),
		plain("Quality score", fmt.Sprintf("%.1f", r.QualityScore)),
		{"Grade", string(c.Grade), GradeStyle(string(c.Grade))},
		plain("Polycount", string(c.PolycountRating)),
		{"Game ready", yesNo(c.GameReady), BoolStyle(c.GameReady)},
	})

	for _, issue := range c.Issues {
		b.WriteString(WarningStyle.Render("! " + issue))
		b.WriteString("\n")
	}
	for _, e := range c.Engines {
		line := fmt.Sprintf("%-10s %s", e.Engine, okOver(e.WithinLimits))
		for _, v := range e.Violations {
			line += "  " + v.String()
		}
		b.WriteString(BoolStyle(e.WithinLimits).Render(line))
		b.WriteString("\n")
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectLOD() string {
	data, ok := m.data.(*reader.LODResult)
	if !ok {
		return "Invalid data type for inspect_lod"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("LOD chain " + data.Source))
	b.WriteString("\n\n")

	header := fmt.Sprintf("%-6s %-8s %-8s %-8s %-10s", "Level", "Ratio", "Target", "Faces", "Distance")
	b.WriteString(LabelStyle.Width(0).Render(header))
	b.WriteString("\n")
	for _, l := range data.Levels {
		row := fmt.Sprintf("%-6d %-8.3g %-8d %-8d %-10.2f", l.Level, l.Ratio, l.TargetFaces, l.Faces, l.SwitchDistance)
		style := ValueStyle
		if l.UsedClustering {
			style = WarningStyle
		}
		b.WriteString(style.Render(row))
		b.WriteString("\n")
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectJob() string {
	data, ok := m.data.(lode.JobRecord)
	if !ok {
		if p, isPtr := m.data.(*lode.JobRecord); isPtr && p != nil {
			data, ok = *p, true
		}
	}
	if !ok {
		return "Invalid data type for inspect_job"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Job " + data.JobID))
	b.WriteString("\n\n")

	fields := []field{
		plain("Prompt", data.Prompt),
		{"State", data.State, StateStyle(data.State)},
	}
	if data.ErrorKind != "" {
		fields = append(fields,
			field{"Error kind", data.ErrorKind, ErrorStyle},
			field{"Error", data.Error, ErrorStyle})
	}
	fields = append(fields,
		plain("Vertices", fmt.Sprintf("%d", data.Vertices)),
		plain("Faces", fmt.Sprintf("%d", data.Faces)),
		plain("Quality score", fmt.Sprintf("%.1f", data.QualityScore)),
		field{"Grade", data.Grade, GradeStyle(data.Grade)},
		field{"Watertight", yesNo(data.Watertight), BoolStyle(data.Watertight)},
		plain("Completed at", data.CompletedAt),
	)
	if len(data.LODFaces) > 0 {
		faces := make([]string, len(data.LODFaces))
		for i, f := range data.LODFaces {
			faces[i] = fmt.Sprintf("%d", f)
		}
		fields = append(fields, plain("LOD faces", strings.Join(faces, " / ")))
	}
	renderFields(&b, fields)

	for _, p := range data.MeshPaths {
		b.WriteString(MutedStyle.Render(p))
		b.WriteString("\n")
	}
	for _, w := range data.Warnings {
		b.WriteString(WarningStyle.Render("! " + w))
		b.WriteString("\n")
	}

	return BoxStyle.Render(b.String())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func okOver(b bool) string {
	if b {
		return "ok"
	}
	return "over budget"
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	p := tea.NewProgram(NewInspectModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders an inspect view without a program loop.
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
