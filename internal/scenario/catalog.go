package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/bridgecheck/internal/browser/dom"
	"github.com/xkilldash9x/bridgecheck/internal/browser/wait"
	"github.com/xkilldash9x/bridgecheck/internal/config"
	"github.com/xkilldash9x/bridgecheck/internal/fixtures"
)

// Labels rendered by the application under test.
const (
	labelDrums       = "Drums"
	labelBass        = "Bass"
	labelFilters     = "Filtros"
	labelCategory    = "Categoría"
	labelLibraries   = "LIBRERÍAS"
	labelAddSamples  = "Añadir Samples"
	labelScanFolder  = "Escanear Carpeta"
	selectorAddLib   = "svg.lucide-plus"
	importedFileName = "Loop 120bpm Am.wav"
)

// sidebarTimeout is how long the sidebar gets to list the libraries.
const sidebarTimeout = 5 * time.Second

// paginationExtra is how many records beyond one page the pagination
// scenario generates.
const paginationExtra = 10

// Catalog returns the built-in scenarios in their canonical order.
func Catalog() []Scenario {
	return []Scenario{
		{
			Name:        "app",
			Description: "Two records render after the listing call; full-page screenshot.",
			Spec: func(config.ScenarioConfig) *fixtures.Spec {
				return fixtures.SamplesSpec(fixtures.TwoSamples())
			},
			Steps: func(p config.ScenarioConfig) []Step {
				return []Step{
					Navigate(""),
					WaitText(p.AppTitle, 0),
					WaitText("Kick_01.wav", 0),
					WaitText("Snare_01.wav", 0),
					ExpectBridgeCall(fixtures.ChannelGetAllSamples, 1),
					Capture("app_screenshot.png"),
				}
			},
		},
		{
			Name:        "sidebar",
			Description: "Library labels appear in the sidebar and react to hover.",
			Spec: func(config.ScenarioConfig) *fixtures.Spec {
				return fixtures.SamplesSpec(fixtures.SidebarLibraries())
			},
			Steps: func(p config.ScenarioConfig) []Step {
				return []Step{
					Navigate(""),
					WaitText(labelDrums, sidebarTimeout),
					WaitText(labelBass, sidebarTimeout),
					Hover(dom.Text(labelDrums)),
					Capture("sidebar_test.png"),
				}
			},
		},
		{
			Name:        "updates",
			Description: "The filter panel shows the category filter over a large listing.",
			Spec: func(p config.ScenarioConfig) *fixtures.Spec {
				return fixtures.SamplesSpec(fixtures.Paginated(p.PageSize + paginationExtra))
			},
			Steps: func(p config.ScenarioConfig) []Step {
				steps := []Step{
					Navigate(""),
					WaitText(p.AppTitle, 0),
				}
				if !p.FiltersOpen {
					steps = append(steps,
						WaitText(labelFilters, 0),
						Click(dom.Text(labelFilters)),
					)
				}
				return append(steps,
					WaitText(labelCategory, 0),
					Capture("updated_ui.png"),
				)
			},
		},
		{
			Name:        "pagination",
			Description: "One page renders first; load-more reveals the rest without navigating.",
			Spec: func(p config.ScenarioConfig) *fixtures.Spec {
				return fixtures.SamplesSpec(fixtures.Paginated(p.PageSize + paginationExtra))
			},
			Steps: func(p config.ScenarioConfig) []Step {
				total := p.PageSize + paginationExtra
				rows := dom.CSS(p.RowSelector)
				loadMore := dom.Text(p.LoadMoreText)
				last := fmt.Sprintf("Sample_%d.wav", total-1)
				return []Step{
					Navigate(""),
					WaitFor(wait.Count(rows, p.PageSize), 0),
					WaitFor(wait.Visible(loadMore), 0),
					Expect(wait.Hidden(dom.Text(last))),
					Click(loadMore),
					WaitFor(wait.Count(rows, total), 0),
					WaitText(last, 0),
					// The list is exhausted; a second trigger must change nothing.
					ClickIfVisible(loadMore),
					Expect(wait.Count(rows, total)),
					ExpectBridgeCall(fixtures.ChannelGetAllSamples, 1),
					Capture("pagination.png"),
				}
			},
		},
		{
			Name:        "import",
			Description: "Scanning a folder from the add-samples modal lists the imported file.",
			Spec: func(config.ScenarioConfig) *fixtures.Spec {
				return fixtures.SamplesSpec(fixtures.TwoSamples())
			},
			Steps: func(p config.ScenarioConfig) []Step {
				return []Step{
					Navigate(""),
					WaitText(labelLibraries, 0),
					Click(dom.CSS(selectorAddLib)),
					WaitText(labelAddSamples, 0),
					Click(dom.Text(labelScanFolder)),
					WaitForBridgeCall(fixtures.ChannelImportContent, 1, 0),
					WaitText(importedFileName, 0),
					Capture("import.png"),
				}
			},
		},
	}
}

// Names lists the catalog's scenario names in order.
func Names() []string {
	cat := Catalog()
	names := make([]string, len(cat))
	for i, sc := range cat {
		names[i] = sc.Name
	}
	return names
}

// Select returns the named scenarios in catalog order. No names selects
// the whole catalog.
func Select(names ...string) ([]Scenario, error) {
	cat := Catalog()
	if len(names) == 0 {
		return cat, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Scenario
	for _, sc := range cat {
		if want[sc.Name] {
			out = append(out, sc)
			delete(want, sc.Name)
		}
	}
	if len(want) > 0 {
		var unknown []string
		for _, n := range names {
			if want[n] {
				unknown = append(unknown, n)
				delete(want, n)
			}
		}
		return nil, fmt.Errorf("unknown scenario(s): %s (available: %s)", strings.Join(unknown, ", "), strings.Join(Names(), ", "))
	}
	return out, nil
}

// Describe renders a scenario's steps for p, one per line.
func Describe(sc Scenario, p config.ScenarioConfig) string {
	if sc.Steps == nil {
		return ""
	}
	return describe(sc.Steps(p))
}
