package postgres

import (
	"context"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/talklens/talklens/store"
)

// UpsertPerson inserts or replaces a person row.
func (d *DB) UpsertPerson(ctx context.Context, person *store.Person) (*store.Person, error) {
	stmt := `
		INSERT INTO person (id, name, company, job_title)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			company = EXCLUDED.company,
			job_title = EXCLUDED.job_title
	`
	_, err := d.db.ExecContext(ctx, stmt, person.ID, person.Name, person.Company, person.JobTitle)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert person")
	}
	return person, nil
}

// ListPersons lists persons matching the find condition.
func (d *DB) ListPersons(ctx context.Context, find *store.FindPerson) ([]*store.Person, error) {
	if find == nil {
		find = &store.FindPerson{}
	}
	where, args := []string{"1 = 1"}, []any{}

	if len(find.IDs) > 0 {
		where, args = append(where, "id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.IDs))
	}
	if find.Name != nil {
		where, args = append(where, "name = "+placeholder(len(args)+1)), append(args, *find.Name)
	}
	if find.NameContains != nil {
		where, args = append(where, "name ILIKE "+placeholder(len(args)+1)), append(args, "%"+*find.NameContains+"%")
	}
	if find.Company != nil {
		where, args = append(where, "company = "+placeholder(len(args)+1)), append(args, *find.Company)
	}

	query := `SELECT id, name, company, job_title FROM person WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list persons")
	}
	defer rows.Close()

	var persons []*store.Person
	for rows.Next() {
		var person store.Person
		if err := rows.Scan(&person.ID, &person.Name, &person.Company, &person.JobTitle); err != nil {
			return nil, errors.Wrap(err, "failed to scan person")
		}
		persons = append(persons, &person)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return persons, nil
}

// UpsertSpeakerEdge records a talk-to-speaker relation.
func (d *DB) UpsertSpeakerEdge(ctx context.Context, edge *store.SpeakerEdge) error {
	stmt := `
		INSERT INTO speaker_edge (talk_id, person_id)
		VALUES ($1, $2)
		ON CONFLICT (talk_id, person_id) DO NOTHING
	`
	if _, err := d.db.ExecContext(ctx, stmt, edge.TalkID, edge.PersonID); err != nil {
		return errors.Wrap(err, "failed to upsert speaker edge")
	}
	return nil
}

// ListSpeakerEdges lists speaker edges restricted by talk or person IDs.
func (d *DB) ListSpeakerEdges(ctx context.Context, find *store.FindSpeakerEdge) ([]*store.SpeakerEdge, error) {
	if find == nil {
		find = &store.FindSpeakerEdge{}
	}
	where, args := []string{"1 = 1"}, []any{}

	if len(find.TalkIDs) > 0 {
		where, args = append(where, "talk_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.TalkIDs))
	}
	if len(find.PersonIDs) > 0 {
		where, args = append(where, "person_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.PersonIDs))
	}

	query := `SELECT talk_id, person_id FROM speaker_edge WHERE ` + strings.Join(where, " AND ") + ` ORDER BY talk_id ASC, person_id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list speaker edges")
	}
	defer rows.Close()

	var edges []*store.SpeakerEdge
	for rows.Next() {
		var edge store.SpeakerEdge
		if err := rows.Scan(&edge.TalkID, &edge.PersonID); err != nil {
			return nil, errors.Wrap(err, "failed to scan speaker edge")
		}
		edges = append(edges, &edge)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return edges, nil
}
