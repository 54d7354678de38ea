package maximo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Where builds an oslc.where filter expression from typed terms. Callers
// never interpolate raw input into filter syntax; every string literal
// goes through quoteLiteral.
type Where struct {
	terms []string
}

// Eq adds an exact-match term: field="value".
func (w *Where) Eq(field, value string) *Where {
	w.terms = append(w.terms, field+"="+quoteLiteral(value))
	return w
}

// EqInt adds an exact-match term against a numeric field.
func (w *Where) EqInt(field string, value int) *Where {
	w.terms = append(w.terms, field+"="+strconv.Itoa(value))
	return w
}

// Like adds a contains term: field~"value".
func (w *Where) Like(field, value string) *Where {
	w.terms = append(w.terms, field+"~"+quoteLiteral(value))
	return w
}

// AnyLike adds an OR group of contains terms across several fields, for
// free-text query search: (a~"v" or b~"v").
func (w *Where) AnyLike(fields []string, value string) *Where {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + "~" + quoteLiteral(value)
	}
	w.terms = append(w.terms, "("+strings.Join(parts, " or ")+")")
	return w
}

// FieldBelow adds a field-to-field comparison term: field<other.
// Used for the low-stock filter (curbal<reorder).
func (w *Where) FieldBelow(field, other string) *Where {
	w.terms = append(w.terms, field+"<"+other)
	return w
}

// Empty reports whether no terms have been added.
func (w *Where) Empty() bool { return len(w.terms) == 0 }

// String renders the full expression, terms joined with "and".
func (w *Where) String() string {
	return strings.Join(w.terms, " and ")
}

// quoteLiteral renders a string as an OSLC double-quoted literal.
// Embedded quotes are doubled and control characters dropped, so user
// input can never terminate the literal and smuggle filter syntax.
func quoteLiteral(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range v {
		switch {
		case r == '"':
			b.WriteString(`""`)
		case r < 0x20 || r == 0x7f:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// oslcQuery assembles the standard query parameters for a list request.
func oslcQuery(selectFields string, where *Where, pageSize int) url.Values {
	q := url.Values{}
	q.Set("oslc.select", selectFields)
	q.Set("lean", "1")
	if where != nil && !where.Empty() {
		q.Set("oslc.where", where.String())
	}
	if pageSize > 0 {
		q.Set("oslc.pageSize", fmt.Sprintf("%d", pageSize))
	}
	return q
}
