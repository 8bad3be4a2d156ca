package models

// Scope a registered scope: a named permission unit attached to grants.
type Scope struct {
	ID          string
	Description string
}

// GetID scope id
func (s *Scope) GetID() string {
	return s.ID
}

// GetDescription human readable description
func (s *Scope) GetDescription() string {
	return s.Description
}
