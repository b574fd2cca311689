package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/ehr/console/internal/platform/db"
)

var pg = goqu.Dialect("postgres")

type viewRepoPG struct{ conn db.Querier }

func NewViewRepoPG(conn db.Querier) ViewRepository { return &viewRepoPG{conn: conn} }

// markViewedSQL upserts a marker. A repeated mark only moves viewed_at
// forward.
func markViewedSQL(patientID, userID string, at time.Time) (string, []interface{}, error) {
	return pg.Insert("patient_views").
		Rows(goqu.Record{"patient_id": patientID, "user_id": userID, "viewed_at": at}).
		OnConflict(goqu.DoUpdate("patient_id, user_id", goqu.Record{
			"viewed_at": goqu.L("GREATEST(patient_views.viewed_at, EXCLUDED.viewed_at)"),
		})).
		Prepared(true).
		ToSQL()
}

func viewedSinceSQL(userID string, since time.Time) (string, []interface{}, error) {
	ds := pg.From("patient_views").
		Select("patient_id", "viewed_at").
		Where(goqu.Ex{"user_id": userID})
	if !since.IsZero() {
		ds = ds.Where(goqu.C("viewed_at").Gte(since))
	}
	return ds.Prepared(true).ToSQL()
}

func (r *viewRepoPG) MarkViewed(ctx context.Context, patientID, userID string, at time.Time) error {
	query, args, err := markViewedSQL(patientID, userID, at)
	if err != nil {
		return fmt.Errorf("build mark viewed: %w", err)
	}
	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark viewed: %w", err)
	}
	return nil
}

func (r *viewRepoPG) ViewedSince(ctx context.Context, userID string, since time.Time) (map[string]time.Time, error) {
	query, args, err := viewedSinceSQL(userID, since)
	if err != nil {
		return nil, fmt.Errorf("build viewed since: %w", err)
	}
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query viewed markers: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		out[id] = at
	}
	return out, rows.Err()
}
