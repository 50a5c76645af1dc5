package schemas

// -- Host Domain Schemas --
// These mirror the records the desktop host normally returns over IPC.

// Sample is a single audio sample record as listed by the host.
// BPM and Key are optional and legitimately null for many samples.
type Sample struct {
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Library  string  `json:"library"`
	Category string  `json:"category"`
	BPM      *int    `json:"bpm"`
	Key      *string `json:"key"`
}

// ImportedFile is one file discovered by an import action.
type ImportedFile struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// ImportRequest is the argument object of the import-content channel.
type ImportRequest struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths"`
}

// ImportResult is the response of the import-content channel.
type ImportResult struct {
	FolderName string         `json:"folderName"`
	Files      []ImportedFile `json:"files"`
}
