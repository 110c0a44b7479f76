package fs

// Drive represents a mounted drive/volume
type Drive struct {
	Name      string `json:"label"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
}
