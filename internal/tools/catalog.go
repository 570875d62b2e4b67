package tools

import (
	"errors"

	"github.com/trayyy/trayyy/backend-go/internal/access"
)

// Tray groups related tools in the UI (one tray per format family)
type Tray struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tool is a static definition of one conversion utility. Stages is the
// ordered label list the progress tracker interpolates over; OutputRatio is
// the fabricated output-size factor of the simulated engine.
type Tool struct {
	ID          string   `json:"id"`
	TrayID      string   `json:"tray_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Stages      []string `json:"stages"`
	OutputRatio float64  `json:"-"`
	// RequiresFeature gates the tool on a plan feature flag; empty means
	// available on every tier.
	RequiresFeature access.Feature `json:"requires_feature,omitempty"`
}

var trays = []Tray{
	{ID: "pdf", Name: "PDF Tools", Description: "Merge, split, compress and convert PDF files"},
	{ID: "image", Name: "Image Tools", Description: "Convert and compress images"},
	{ID: "data", Name: "Data Tools", Description: "Convert between JSON, CSV and XML"},
	{ID: "ai", Name: "AI Tools", Description: "Summarize and clean up document content"},
}

var catalog = []Tool{
	{
		ID: "merge-pdf", TrayID: "pdf", Name: "Merge PDF",
		Description: "Combine multiple PDFs into a single document",
		Stages:      []string{"Uploading", "Reading pages", "Merging", "Optimizing", "Finalizing"},
		OutputRatio: 0.95,
	},
	{
		ID: "split-pdf", TrayID: "pdf", Name: "Split PDF",
		Description: "Split a PDF into separate documents",
		Stages:      []string{"Uploading", "Reading pages", "Splitting", "Packaging", "Finalizing"},
		OutputRatio: 1.02,
	},
	{
		ID: "compress-pdf", TrayID: "pdf", Name: "Compress PDF",
		Description: "Reduce PDF file size",
		Stages:      []string{"Uploading", "Analyzing", "Compressing images", "Rebuilding", "Finalizing"},
		OutputRatio: 0.45,
	},
	{
		ID: "pdf-to-word", TrayID: "pdf", Name: "PDF to Word",
		Description: "Convert PDF documents to editable Word files",
		Stages:      []string{"Uploading", "Extracting text", "Detecting layout", "Writing document", "Finalizing"},
		OutputRatio: 0.7,
	},
	{
		ID: "ocr-pdf", TrayID: "pdf", Name: "OCR PDF",
		Description: "Make scanned PDFs searchable",
		Stages:          []string{"Uploading", "Rendering pages", "Recognizing text", "Embedding text layer", "Finalizing"},
		OutputRatio:     1.1,
		RequiresFeature: access.FeatureOCR,
	},
	{
		ID: "image-convert", TrayID: "image", Name: "Image Converter",
		Description: "Convert between PNG, JPEG and WebP",
		Stages:      []string{"Uploading", "Decoding", "Converting", "Encoding", "Finalizing"},
		OutputRatio: 0.8,
	},
	{
		ID: "image-compress", TrayID: "image", Name: "Image Compressor",
		Description: "Shrink images without visible quality loss",
		Stages:      []string{"Uploading", "Analyzing", "Compressing", "Finalizing"},
		OutputRatio: 0.35,
	},
	{
		ID: "json-to-csv", TrayID: "data", Name: "JSON to CSV",
		Description: "Flatten JSON arrays into CSV tables",
		Stages:      []string{"Uploading", "Parsing", "Flattening", "Writing rows", "Finalizing"},
		OutputRatio: 0.6,
	},
	{
		ID: "csv-to-json", TrayID: "data", Name: "CSV to JSON",
		Description: "Turn CSV tables into JSON arrays",
		Stages:      []string{"Uploading", "Parsing", "Building objects", "Finalizing"},
		OutputRatio: 1.4,
	},
	{
		ID: "summarize-text", TrayID: "ai", Name: "Summarizer",
		Description: "Summarize long documents into key points",
		Stages:      []string{"Uploading", "Extracting text", "Summarizing", "Finalizing"},
		OutputRatio: 0.05,
	},
	{
		ID: "clean-text", TrayID: "ai", Name: "Content Cleaner",
		Description: "Strip boilerplate and fix formatting in documents",
		Stages:      []string{"Uploading", "Extracting text", "Cleaning", "Finalizing"},
		OutputRatio: 0.85,
	},
}

var toolsByID = func() map[string]Tool {
	m := make(map[string]Tool, len(catalog))
	for _, t := range catalog {
		m[t.ID] = t
	}
	return m
}()

// Catalog errors
var (
	ErrToolNotFound = errors.New("tool not found")
	ErrTrayNotFound = errors.New("tray not found")
)

// Trays returns all trays in display order
func Trays() []Tray {
	return append([]Tray(nil), trays...)
}

// All returns every tool in the catalog
func All() []Tool {
	return append([]Tool(nil), catalog...)
}

// Find looks up a tool by its identifier
func Find(id string) (Tool, error) {
	if t, ok := toolsByID[id]; ok {
		return t, nil
	}
	return Tool{}, ErrToolNotFound
}

// ByTray returns the tools of one tray, in catalog order
func ByTray(trayID string) ([]Tool, error) {
	found := false
	for _, tr := range trays {
		if tr.ID == trayID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrTrayNotFound
	}

	out := []Tool{}
	for _, t := range catalog {
		if t.TrayID == trayID {
			out = append(out, t)
		}
	}
	return out, nil
}
