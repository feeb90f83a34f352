package model

// DefaultSep joins nested key paths in projected rows.
const DefaultSep = "."

// Projector flattens normalized mappings into rows.
type Projector struct {
	// Sep joins parent and child keys; DefaultSep when empty.
	Sep string
}

// Project flattens d into rows using DefaultSep.
func Project(d *Dict) []*Dict {
	return Projector{}.Project(d)
}

// Project flattens d into rows. Scalars and nested mappings contribute one
// value per row; every sequence multiplies the rows by its length, in
// nested-loop order with the first key outermost. A sequence nested inside a
// sequence fans out under the same column. An empty sequence yields no rows
// at all.
func (p Projector) Project(d *Dict) []*Dict {
	if d == nil {
		return nil
	}
	return p.rows("", d)
}

func (p Projector) rows(prefix string, d *Dict) []*Dict {
	rows := []*Dict{NewDict()}
	for pair := d.Oldest(); pair != nil; pair = pair.Next() {
		rows = product(rows, p.partials(p.join(prefix, pair.Key), pair.Value))
		if len(rows) == 0 {
			return nil
		}
	}
	return rows
}

func (p Projector) partials(key string, v any) []*Dict {
	switch t := v.(type) {
	case *Dict:
		return p.rows(key, t)
	case []any:
		var out []*Dict
		for _, elem := range t {
			out = append(out, p.partials(key, elem)...)
		}
		return out
	default:
		return []*Dict{cell(key, v)}
	}
}

func (p Projector) join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	sep := p.Sep
	if sep == "" {
		sep = DefaultSep
	}
	return prefix + sep + key
}

func cell(key string, v any) *Dict {
	d := NewDict()
	d.Set(key, v)
	return d
}

// product merges every left row with every right row, left outermost.
func product(left, right []*Dict) []*Dict {
	out := make([]*Dict, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			row := NewDict()
			for pair := l.Oldest(); pair != nil; pair = pair.Next() {
				row.Set(pair.Key, pair.Value)
			}
			for pair := r.Oldest(); pair != nil; pair = pair.Next() {
				row.Set(pair.Key, pair.Value)
			}
			out = append(out, row)
		}
	}
	return out
}
