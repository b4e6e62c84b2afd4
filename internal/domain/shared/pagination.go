package shared

// ListOptions holds pagination for findMany-style repository calls.
type ListOptions struct {
	Offset int
	Limit  int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Normalized clamps the options to sane bounds.
func (o ListOptions) Normalized() ListOptions {
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	return o
}

// SourceFile describes the spreadsheet a batch was imported from. Both fields
// are empty when the batch arrived as a plain JSON payload.
type SourceFile struct {
	Name string `json:"file_name,omitempty"`
	Link string `json:"file_link,omitempty"`
}

// IsZero reports whether no file was attached.
func (f SourceFile) IsZero() bool {
	return f.Name == "" && f.Link == ""
}
