package repository

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"notebook-server/internal/domain"
)

type columnKind int

const (
	kindInt columnKind = iota
	kindString
	kindBool
	kindTime
)

// columns whitelists the columns a list query may filter and sort on.
type columns map[string]columnKind

var userColumns = columns{
	"id":         kindInt,
	"username":   kindString,
	"email":      kindString,
	"is_admin":   kindBool,
	"created_at": kindTime,
	"last_seen":  kindTime,
}

var noteColumns = columns{
	"id":            kindInt,
	"created_by":    kindInt,
	"title":         kindString,
	"text":          kindString,
	"created_at":    kindTime,
	"last_modified": kindTime,
	"version_num":   kindInt,
}

type condition struct {
	clause string
	args   []any
}

type listStatement struct {
	where   string
	args    []any
	orderBy string
	limit   int
	offset  int
}

// buildList turns a list query into SQL fragments. Scope conditions are
// always applied; filters missing a column, type or value are ignored, as
// are unknown filter types.
func buildList(cols columns, q domain.ListQuery, scope ...condition) (*listStatement, error) {
	q.Normalize()

	var clauses []string
	var args []any
	for _, c := range scope {
		clauses = append(clauses, c.clause)
		args = append(args, c.args...)
	}

	for _, f := range q.Filters {
		if f.Column == "" || f.Type == "" || f.Value == nil {
			continue
		}
		kind, ok := cols[f.Column]
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", domain.ErrInvalidQuery, f.Column)
		}

		var op string
		switch f.Type {
		case domain.FilterLike:
			clauses = append(clauses, f.Column+" LIKE ?")
			args = append(args, "%"+fmt.Sprint(f.Value)+"%")
			continue
		case domain.FilterEq:
			op = "="
		case domain.FilterGeq:
			op = ">="
		case domain.FilterLeq:
			op = "<="
		default:
			continue
		}

		value, err := convertValue(kind, f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", domain.ErrInvalidQuery, f.Column, err)
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", f.Column, op))
		args = append(args, value)
	}

	order := q.Order
	if _, ok := cols[order.Column]; !ok {
		return nil, fmt.Errorf("%w: unknown order column %q", domain.ErrInvalidQuery, order.Column)
	}
	dir := "ASC"
	if strings.EqualFold(order.Dir, "desc") {
		dir = "DESC"
	}
	orderBy := order.Column + " " + dir
	if order.Column != "id" {
		orderBy += ", id ASC"
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	return &listStatement{
		where:   where,
		args:    args,
		orderBy: orderBy,
		limit:   q.PerPage,
		offset:  (q.Page - 1) * q.PerPage,
	}, nil
}

func convertValue(kind columnKind, v any) (any, error) {
	switch kind {
	case kindInt:
		switch n := v.(type) {
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%v is not an integer", n)
			}
			return int64(n), nil
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case string:
			return strconv.ParseInt(n, 10, 64)
		}
	case kindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case float64:
			return b != 0, nil
		case string:
			return strconv.ParseBool(b)
		}
	case kindTime:
		switch t := v.(type) {
		case float64:
			sec, frac := math.Modf(t)
			return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(), nil
		case int64:
			return time.Unix(t, 0).UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return nil, err
			}
			return parsed.UTC(), nil
		}
	case kindString:
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("unsupported value %v", v)
}
