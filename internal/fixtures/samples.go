package fixtures

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
)

// DefaultImportFolder is the library name every import result reports.
const DefaultImportFolder = "Imported"

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

// TwoSamples is the small fixed set: one fully tagged record and one with
// neither tempo nor key.
func TwoSamples() []schemas.Sample {
	return []schemas.Sample{
		{ID: "1", Name: "Kick_01.wav", Path: "/audio/Kick_01.wav", Library: "Test Lib", Category: "Kick", BPM: intPtr(120), Key: strPtr("C")},
		{ID: "2", Name: "Snare_01.wav", Path: "/audio/Snare_01.wav", Library: "Test Lib", Category: "Snare"},
	}
}

// SidebarLibraries spreads two records over two libraries so the sidebar
// lists both. Each optional attribute is present on one record only.
func SidebarLibraries() []schemas.Sample {
	return []schemas.Sample{
		{ID: "k1", Name: "Kick 1", Path: "/a/b/k1.wav", Library: "Drums", Category: "Kick", BPM: intPtr(124)},
		{ID: "b1", Name: "Bass 1", Path: "/a/b/b1.wav", Library: "Bass", Category: "Bass", Key: strPtr("E")},
	}
}

// Paginated generates n records named Sample_<i>.wav with alternating
// Kick/Snare categories. Every tenth record (i%10 == 9) has no tempo and
// every tenth (i%10 == 4) has no key.
func Paginated(n int) []schemas.Sample {
	out := make([]schemas.Sample, 0, n)
	for i := 0; i < n; i++ {
		s := schemas.Sample{
			ID:       fmt.Sprintf("%d", i),
			Name:     fmt.Sprintf("Sample_%d.wav", i),
			Path:     fmt.Sprintf("/audio/Sample_%d.wav", i),
			Library:  "Test Lib",
			Category: "Kick",
		}
		if i%2 == 1 {
			s.Category = "Snare"
		}
		if i%10 != 9 {
			s.BPM = intPtr(120 + i)
		}
		if i%10 != 4 {
			s.Key = strPtr("C")
		}
		out = append(out, s)
	}
	return out
}

// ImportResult answers an import-content request. A folder scan finds one
// loop; every other import type finds nothing.
func ImportResult(req schemas.ImportRequest) schemas.ImportResult {
	res := schemas.ImportResult{FolderName: DefaultImportFolder, Files: []schemas.ImportedFile{}}
	if req.Type == "folder" {
		res.Files = append(res.Files, schemas.ImportedFile{
			ID:   "imp-1",
			Name: "Loop 120bpm Am.wav",
			Path: "/import/Loop 120bpm Am.wav",
		})
	}
	return res
}

// ImportRule binds ImportResult as a dynamic rule. Arguments that do not
// decode are treated as an import of unknown type.
func ImportRule() Rule {
	return Func(func(args json.RawMessage) any {
		var req schemas.ImportRequest
		if len(args) > 0 {
			_ = json.Unmarshal(args, &req)
		}
		return ImportResult(req)
	})
}

// SamplesSpec is the standard mapping for a listing scenario.
func SamplesSpec(samples []schemas.Sample) *Spec {
	return NewSpec().
		With(ChannelGetAllSamples, Static(samples)).
		With(ChannelImportContent, ImportRule())
}

// CheckOptionalCoverage verifies every optional attribute is both present and
// absent somewhere in the set, so rendering code that assumes presence is hit.
func CheckOptionalCoverage(samples []schemas.Sample) error {
	var bpmSet, bpmNil, keySet, keyNil bool
	for _, s := range samples {
		if s.BPM != nil {
			bpmSet = true
		} else {
			bpmNil = true
		}
		if s.Key != nil {
			keySet = true
		} else {
			keyNil = true
		}
	}
	var missing []string
	if !bpmSet {
		missing = append(missing, "bpm present")
	}
	if !bpmNil {
		missing = append(missing, "bpm absent")
	}
	if !keySet {
		missing = append(missing, "key present")
	}
	if !keyNil {
		missing = append(missing, "key absent")
	}
	if len(missing) > 0 {
		return fmt.Errorf("fixture set never exercises: %s", strings.Join(missing, ", "))
	}
	return nil
}
