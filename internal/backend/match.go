package backend

import (
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/models"
)

// Match reports whether doc satisfies every filter. Backends that cannot push
// filters down to the server evaluate them with Match.
func Match(doc models.Document, filters []Filter) (bool, error) {
	for _, f := range filters {
		ok, err := matchOne(doc[f.Field], f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchOne(have any, f Filter) (bool, error) {
	if have == nil {
		return false, nil
	}

	if want, ok := f.Value.(string); ok {
		got, ok := have.(string)
		if !ok {
			return false, nil
		}
		switch f.Op {
		case OpEqual:
			return got == want, nil
		case OpGreater:
			return got > want, nil
		}
		return false, fmt.Errorf("unsupported operator %q", f.Op)
	}

	want, ok := models.ToInt64(f.Value)
	if !ok {
		return false, fmt.Errorf("unsupported filter value %T for field %q", f.Value, f.Field)
	}
	got, ok := models.ToInt64(have)
	if !ok {
		return false, nil
	}
	switch f.Op {
	case OpEqual:
		return got == want, nil
	case OpGreater:
		return got > want, nil
	}
	return false, fmt.Errorf("unsupported operator %q", f.Op)
}
