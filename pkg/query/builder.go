package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// SortField is one ORDER BY term. Field is resolved through the projection;
// fields it does not know are dropped.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields splits a sort parameter such as "name,-createdAt" into
// sort fields. A leading "-" sorts descending. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	if s == "" {
		return nil
	}

	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// params hands out positional placeholders in the order arguments are bound.
type params struct {
	args []any
}

func (p *params) bind(v any) string {
	p.args = append(p.args, v)
	return fmt.Sprintf("$%d", len(p.args))
}

// predicate renders one WHERE term, binding its arguments as it goes.
type predicate func(p *params) string

// Builder assembles SELECT statements over a ProjectionMap. Predicates are
// ANDed together and numbered when a statement is built, so one Builder can
// produce both the page and count queries of a listing.
type Builder struct {
	projection  *ProjectionMap
	predicates  []predicate
	sort        []SortField
	defaultSort []SortField
}

// NewBuilder starts a query over projection, ordered by defaultSort unless
// OrderByFields supplies a usable order.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// Build returns the filtered, ordered SELECT.
func (b *Builder) Build() (string, []any) {
	return b.selectWith(b.orderBy())
}

// BuildCount returns COUNT(*) over the filtered rows.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return "SELECT COUNT(*) FROM " + b.projection.From() + where, args
}

// BuildPage returns one page of the ordered SELECT. Pages are 1-based.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	offset := (page - 1) * pageSize
	return b.selectWith(fmt.Sprintf("%s LIMIT %d OFFSET %d", b.orderBy(), pageSize, offset))
}

// BuildSingleOrNull returns the first filtered row, if any.
func (b *Builder) BuildSingleOrNull() (string, []any) {
	return b.selectWith(" LIMIT 1")
}

// BuildSingle selects the row whose idField equals id. Other predicates
// on the builder are ignored.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.From(),
		b.projection.Column(idField),
	)
	return sql, []any{id}
}

// BuildSingleForUpdate is BuildSingle with a row lock held until the
// surrounding transaction ends. Only the base table is locked.
func (b *Builder) BuildSingleForUpdate(idField string, id any) (string, []any) {
	sql, args := b.BuildSingle(idField, id)
	return sql + " FOR UPDATE OF " + b.projection.Alias(), args
}

// OrderByFields replaces the default order. Unknown fields are dropped,
// and the default applies again when none remain.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// WhereEquals filters field = value. Nil values, including typed nil
// pointers, add nothing.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	return b.compare(field, "=", value)
}

// WhereContains filters field ILIKE %value%. Nil or empty values add nothing.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.compare(field, "ILIKE", "%"+*value+"%")
}

// WhereNotIn excludes rows whose field matches any of values.
func (b *Builder) WhereNotIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}
	col := b.projection.Column(field)
	b.predicates = append(b.predicates, func(p *params) string {
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = p.bind(v)
		}
		return fmt.Sprintf("%s NOT IN (%s)", col, strings.Join(marks, ", "))
	})
	return b
}

// WhereRange bounds field to the half-open window [from, to). Either end
// may be nil.
func (b *Builder) WhereRange(field string, from, to *time.Time) *Builder {
	if from != nil {
		b.compare(field, ">=", *from)
	}
	if to != nil {
		b.compare(field, "<", *to)
	}
	return b
}

// WhereSearch matches search as a substring of any of fields.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	pattern := "%" + *search + "%"
	b.predicates = append(b.predicates, func(p *params) string {
		terms := make([]string, len(fields))
		for i, f := range fields {
			terms[i] = b.projection.Column(f) + " ILIKE " + p.bind(pattern)
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	})
	return b
}

func (b *Builder) compare(field, op string, value any) *Builder {
	col := b.projection.Column(field)
	b.predicates = append(b.predicates, func(p *params) string {
		return col + " " + op + " " + p.bind(value)
	})
	return b
}

func (b *Builder) selectWith(tail string) (string, []any) {
	where, args := b.where()
	sql := "SELECT " + b.projection.Columns() + " FROM " + b.projection.From() + where + tail
	return sql, args
}

func (b *Builder) where() (string, []any) {
	if len(b.predicates) == 0 {
		return "", nil
	}
	var p params
	terms := make([]string, len(b.predicates))
	for i, pred := range b.predicates {
		terms[i] = pred(&p)
	}
	return " WHERE " + strings.Join(terms, " AND "), p.args
}

func (b *Builder) orderBy() string {
	terms := b.orderTerms(b.sort)
	if len(terms) == 0 {
		terms = b.orderTerms(b.defaultSort)
	}
	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (b *Builder) orderTerms(fields []SortField) []string {
	var terms []string
	for _, f := range fields {
		col, ok := b.projection.sortColumn(f.Field)
		if !ok {
			continue
		}
		if f.Descending {
			terms = append(terms, col+" DESC")
		} else {
			terms = append(terms, col+" ASC")
		}
	}
	return terms
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
