// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/relabs-tech/modelgate/core/csql"
	"github.com/relabs-tech/modelgate/core/logger"
)

// PostgresStore keeps every entity type in its own table with the columns
// id, create_date, write_date and a jsonb column holding all other fields.
type PostgresStore struct {
	db          *csql.DB
	collections map[string]*PostgresCollection
}

// NewPostgresStore creates a store serving the given entity types. Missing tables are created.
func NewPostgresStore(ctx context.Context, db *csql.DB, models ...string) (*PostgresStore, error) {
	s := &PostgresStore{
		db:          db,
		collections: make(map[string]*PostgresCollection, len(models)),
	}
	for _, m := range models {
		c := &PostgresCollection{name: m, db: db, table: db.Table(m)}
		logger.FromContext(ctx).Debugln("  entity table:", c.table)
		_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+c.table+`
(id SERIAL PRIMARY KEY,
create_date timestamp with time zone NOT NULL DEFAULT now(),
write_date timestamp with time zone NOT NULL DEFAULT now(),
properties jsonb NOT NULL DEFAULT '{}'::jsonb
);`)
		if err != nil {
			return nil, fmt.Errorf("cannot create table for %s: %w", m, err)
		}
		s.collections[m] = c
	}
	return s, nil
}

// Resolve implements Store
func (s *PostgresStore) Resolve(name string) (Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return c, nil
}

// Models implements Store
func (s *PostgresStore) Models() []string {
	models := make([]string, 0, len(s.collections))
	for m := range s.collections {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// PostgresCollection is the collection of one entity type in a PostgresStore
type PostgresCollection struct {
	name  string
	table string
	db    *csql.DB
}

// Name implements Collection
func (c *PostgresCollection) Name() string {
	return c.name
}

// SearchRead implements Collection
func (c *PostgresCollection) SearchRead(ctx context.Context, domain Domain, fields []string) ([]Record, error) {
	where, args, err := compileDomain(domain)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, create_date, write_date, properties FROM ` + c.table + where + ` ORDER BY id;`
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot search %s: %w", c.name, err)
	}
	defer rows.Close()

	res := []Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", c.name, err)
		}
		res = append(res, Project(c.name, record, fields))
	}
	return res, rows.Err()
}

// Create implements Collection
func (c *PostgresCollection) Create(ctx context.Context, values Record) (int64, error) {
	body, err := json.Marshal(withoutReserved(values))
	if err != nil {
		return 0, fmt.Errorf("cannot serialize values: %w", err)
	}
	now := time.Now().UTC()
	var id int64
	err = c.db.QueryRowContext(ctx,
		`INSERT INTO `+c.table+` (create_date, write_date, properties) VALUES ($1, $1, $2) RETURNING id;`,
		now, string(body)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", c.name, err)
	}
	return id, nil
}

// Update implements Collection
func (c *PostgresCollection) Update(ctx context.Context, id int64, values Record) error {
	body, err := json.Marshal(withoutReserved(values))
	if err != nil {
		return fmt.Errorf("cannot serialize values: %w", err)
	}
	res, err := c.db.ExecContext(ctx,
		`UPDATE `+c.table+` SET properties = properties || $2::jsonb, write_date = $3 WHERE id = $1;`,
		id, string(body), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cannot update %s %d: %w", c.name, id, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s %d", ErrNotFound, c.name, id)
	}
	return nil
}

// Delete implements Collection
func (c *PostgresCollection) Delete(ctx context.Context, id int64) (Record, error) {
	row := c.db.QueryRowContext(ctx,
		`DELETE FROM `+c.table+` WHERE id = $1 RETURNING id, create_date, write_date, properties;`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, c.name, id)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot delete %s %d: %w", c.name, id, err)
	}
	return record, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		id                    int64
		createDate, writeDate time.Time
		properties            []byte
	)
	if err := row.Scan(&id, &createDate, &writeDate, &properties); err != nil {
		return nil, err
	}
	record := Record{}
	if err := json.Unmarshal(properties, &record); err != nil {
		return nil, err
	}
	record[FieldID] = id
	record[FieldCreateDate] = createDate.UTC()
	record[FieldWriteDate] = writeDate.UTC()
	return record, nil
}

var sqlOperators = map[Operator]string{
	OperatorEqual:        "=",
	OperatorNotEqual:     "<>",
	OperatorLess:         "<",
	OperatorLessEqual:    "<=",
	OperatorGreater:      ">",
	OperatorGreaterEqual: ">=",
}

// compileDomain translates a domain into a WHERE clause with positional arguments.
// Column fields are compared directly, all other fields through the jsonb column.
func compileDomain(domain Domain) (string, []interface{}, error) {
	if err := domain.Validate(); err != nil {
		return "", nil, err
	}
	if len(domain) == 0 {
		return "", nil, nil
	}
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, c := range domain {
		var clause string
		switch c.Field {
		case FieldID, FieldCreateDate, FieldWriteDate:
			column := c.Field
			switch c.Operator {
			case OperatorIn, OperatorNotIn:
				values, _ := sliceValues(c.Value)
				clause = column + " = ANY(" + arg(columnArray(c.Field, values)) + ")"
				if c.Operator == OperatorNotIn {
					clause = "NOT (" + clause + ")"
				}
			default:
				if c.Value == nil {
					clause = "FALSE"
					if c.Operator == OperatorNotEqual {
						clause = "TRUE"
					}
					break
				}
				clause = column + " " + sqlOperators[c.Operator] + " " + arg(columnValue(c.Field, c.Value))
			}
		default:
			field := arg(c.Field) + "::text"
			switch c.Operator {
			case OperatorIn, OperatorNotIn:
				values, _ := sliceValues(c.Value)
				texts := make([]string, len(values))
				for i, v := range values {
					texts[i] = textValue(v)
				}
				clause = "COALESCE(properties->>" + field + " = ANY(" + arg(pq.Array(texts)) + "), FALSE)"
				if c.Operator == OperatorNotIn {
					clause = "NOT " + clause
				}
			default:
				if c.Value == nil {
					clause = "COALESCE(properties->" + field + ", 'null'::jsonb) = 'null'::jsonb"
					if c.Operator == OperatorNotEqual {
						clause = "NOT (" + clause + ")"
					} else if c.Operator != OperatorEqual {
						clause = "FALSE"
					}
					break
				}
				op := sqlOperators[c.Operator]
				if n, ok := toNumber(c.Value); ok {
					clause = "(CASE WHEN jsonb_typeof(properties->" + field + ") = 'number' THEN (properties->>" + field + ")::numeric END) " + op + " " + arg(n)
				} else if b, ok := c.Value.(bool); ok {
					clause = "(CASE WHEN jsonb_typeof(properties->" + field + ") = 'boolean' THEN (properties->>" + field + ")::boolean END) " + op + " " + arg(b)
				} else {
					clause = "properties->>" + field + " " + op + " " + arg(textValue(c.Value))
				}
				if c.Operator == OperatorNotEqual {
					clause = "COALESCE(" + clause + ", TRUE)"
				}
			}
		}
		clauses = append(clauses, clause)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func columnValue(field string, v interface{}) interface{} {
	if field == FieldID {
		if n, ok := toNumber(v); ok {
			return int64(n)
		}
		return v
	}
	if t, ok := toTime(v); ok {
		return t.UTC()
	}
	return v
}

func columnArray(field string, values []interface{}) interface{} {
	if field == FieldID {
		ids := make([]int64, 0, len(values))
		for _, v := range values {
			if n, ok := toNumber(v); ok {
				ids = append(ids, int64(n))
			}
		}
		return pq.Array(ids)
	}
	stamps := make([]string, 0, len(values))
	for _, v := range values {
		if t, ok := toTime(v); ok {
			stamps = append(stamps, t.UTC().Format(time.RFC3339Nano))
		}
	}
	return pq.Array(stamps)
}

// textValue renders a value the way postgres renders the corresponding jsonb scalar with ->>
func textValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	if n, ok := toNumber(v); ok {
		body, _ := json.Marshal(n)
		return string(body)
	}
	body, _ := json.Marshal(v)
	return string(body)
}
