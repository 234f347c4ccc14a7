package templates

import (
	"errors"
	"fmt"
)

// Validate checks catalog-level rules: unique ids and a non-empty pack.
// It returns every problem found.
func Validate(c *Catalog) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]string, len(c.Templates))
	for _, t := range c.Templates {
		if first, ok := seen[t.ID]; ok {
			errs = append(errs, ValidationError{
				Path:    t.Path,
				Field:   "id",
				Message: fmt.Sprintf("duplicate template id %q (first defined in %s)", t.ID, first),
				Code:    ErrDuplicateID,
			})
			continue
		}
		seen[t.ID] = t.Path
	}
	if len(c.Templates) == 0 {
		errs = append(errs, ValidationError{
			Field:   "pack",
			Message: fmt.Sprintf("no templates loaded for pack %q", c.Pack),
			Code:    ErrEmptyPack,
		})
	}
	return errs
}

// Validate loads pack and validates it. Load failures are returned as a
// single ValidationError when they carry one.
func (s Source) Validate(pack string) ([]ValidationError, error) {
	c, err := s.Catalog(pack)
	if err != nil {
		var ve ValidationError
		if errors.As(err, &ve) {
			return []ValidationError{ve}, nil
		}
		return nil, err
	}
	return Validate(c), nil
}
