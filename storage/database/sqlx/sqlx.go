// Package sqlxrepos implements the repositories on Postgres.
package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func isNoRows(err error) bool { return errors.Cause(err) == sql.ErrNoRows }

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

func orderBy(b sq.SelectBuilder, ordering []core.DBOrdering, fallback string) sq.SelectBuilder {
	if len(ordering) == 0 {
		return b.OrderBy(fallback)
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		clauses = append(clauses, ord.String())
	}
	return b.OrderBy(clauses...)
}

// jsonAttrs is a jsonb column holding a JSON object.
type jsonAttrs map[string]interface{}

func (a *jsonAttrs) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*a = jsonAttrs{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.Errorf("jsonAttrs: unsupported type %T", src)
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(b, &m); err != nil {
		return errors.Wrap(err, "decoding attrs")
	}
	*a = m
	return nil
}

func encodeAttrs(attrs map[string]interface{}) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", errors.Wrap(err, "encoding attrs")
	}
	return string(b), nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
