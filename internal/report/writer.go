package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/HerbHall/netscope/internal/catalog"
	"github.com/HerbHall/netscope/internal/recon"
	"github.com/HerbHall/netscope/pkg/models"
)

// Report file suffixes appended to the base path.
const (
	SuffixHosts    = "_hosts.txt"
	SuffixTopology = "_topology.txt"
	SuffixServices = "_services.txt"
	SuffixGraphML  = "_topology.graphml"
	SuffixCSV      = "_hosts.csv"
)

// Output describes one written report file.
type Output struct {
	Section string
	Path    string
	Bytes   int
	Err     error
}

// Writer renders every report for an inventory and writes them to disk.
type Writer struct {
	Engine       *catalog.Engine
	Title        string
	Unauthorized bool
	Logger       *zap.Logger
}

// NewWriter creates a Writer.
func NewWriter(engine *catalog.Engine, logger *zap.Logger) *Writer {
	return &Writer{Engine: engine, Logger: logger}
}

func (w *Writer) preamble(comment string) []byte {
	var buf bytes.Buffer
	if w.Unauthorized {
		fmt.Fprintf(&buf, "%s%s\n", comment, models.UnauthorizedBanner)
	}
	if w.Title != "" {
		fmt.Fprintf(&buf, "%s%s\n", comment, w.Title)
	}
	if buf.Len() > 0 && comment == "" {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func (w *Writer) notes() []string {
	var notes []string
	if w.Unauthorized {
		notes = append(notes, models.UnauthorizedBanner)
	}
	if w.Title != "" {
		notes = append(notes, w.Title)
	}
	return notes
}

// WriteAll writes the host report, topology diagram, service summary,
// GraphML export, and CSV inventory next to base. Each file is rendered and
// written independently; a failure in one does not stop the others.
func (w *Writer) WriteAll(inv *models.HostInventory, base string) ([]Output, error) {
	if dir := filepath.Dir(base); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create report dir: %w", err)
		}
	}

	text := func(render func() string) func() ([]byte, error) {
		return func() ([]byte, error) {
			return append(w.preamble(""), render()...), nil
		}
	}
	passes := []struct {
		section string
		suffix  string
		render  func() ([]byte, error)
	}{
		{"hosts", SuffixHosts, text(func() string { return HostReport(inv) })},
		{"topology", SuffixTopology, text(func() string { return TopologyDiagram(inv) })},
		{"services", SuffixServices, text(func() string { return ServiceSummary(inv, w.Engine) })},
		{"graphml", SuffixGraphML, func() ([]byte, error) { return GraphML(inv, w.notes()...) }},
		{"csv", SuffixCSV, func() ([]byte, error) {
			var buf bytes.Buffer
			buf.Write(w.preamble("# "))
			if !inv.HasData() {
				fmt.Fprintf(&buf, "# %s\n", NoDataMarker)
			}
			err := recon.WriteCSV(&buf, inv)
			return buf.Bytes(), err
		}},
	}

	outputs := make([]Output, 0, len(passes))
	var errs []error
	for _, p := range passes {
		out := Output{Section: p.section, Path: base + p.suffix}
		data, err := p.render()
		if err == nil {
			err = os.WriteFile(out.Path, data, 0o640)
		}
		if err != nil {
			out.Err = fmt.Errorf("%s report: %w", p.section, err)
			errs = append(errs, out.Err)
			w.Logger.Error("report section failed", zap.String("section", p.section), zap.Error(err))
		} else {
			out.Bytes = len(data)
		}
		outputs = append(outputs, out)
	}

	w.Logger.Info("reports written",
		zap.String("base", base),
		zap.Bool("has_data", inv.HasData()),
		zap.Int("failed", len(errs)),
	)
	return outputs, errors.Join(errs...)
}
