package domain

// Source is one uploaded workbook: either its bytes or a URL to fetch them from.
type Source struct {
	Name string
	Data []byte
	URL  string
}

// IsRemote reports whether the bytes still have to be fetched.
func (s Source) IsRemote() bool { return len(s.Data) == 0 && s.URL != "" }

// Validate checks that the source carries something to load.
func (s Source) Validate() error {
	if len(s.Data) == 0 && s.URL == "" {
		return ErrEmptySource
	}
	return nil
}
