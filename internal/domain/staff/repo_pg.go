package staff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var pg = goqu.Dialect("postgres")

var staffCols = []interface{}{
	"id", "name", "email", "phone", "role", "center_id",
	"specialization", "upstream_id", "active", "created_at", "updated_at",
}

type repoPG struct{ db *sqlx.DB }

func NewRepoPG(db *sqlx.DB) Repository { return &repoPG{db: db} }

func record(s *Staff) goqu.Record {
	return goqu.Record{
		"name":           s.Name,
		"email":          s.Email,
		"phone":          s.Phone,
		"role":           s.Role,
		"center_id":      centerValue(s.CenterID),
		"specialization": s.Specialization,
		"upstream_id":    s.UpstreamID,
		"active":         s.Active,
		"updated_at":     s.UpdatedAt,
	}
}

func centerValue(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func (r *repoPG) Create(ctx context.Context, s *Staff) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	rec := record(s)
	rec["id"] = s.ID
	rec["created_at"] = s.CreatedAt

	query, args, err := pg.Insert("staff").Rows(rec).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert staff: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert staff: %w", err)
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, where goqu.Ex) (*Staff, error) {
	query, args, err := pg.From("staff").Select(staffCols...).Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select staff: %w", err)
	}
	var s Staff
	if err := r.db.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select staff: %w", err)
	}
	return &s, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return r.get(ctx, goqu.Ex{"id": id})
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Staff, error) {
	return r.get(ctx, goqu.Ex{"email": email})
}

func (r *repoPG) Update(ctx context.Context, s *Staff) error {
	s.UpdatedAt = time.Now().UTC()
	query, args, err := pg.Update("staff").Set(record(s)).Where(goqu.Ex{"id": s.ID}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update staff: %w", err)
	}
	return r.execOne(ctx, query, args)
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query, args, err := pg.Update("staff").
		Set(goqu.Record{"active": active, "updated_at": time.Now().UTC()}).
		Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build set staff active: %w", err)
	}
	return r.execOne(ctx, query, args)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := pg.Delete("staff").Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete staff: %w", err)
	}
	return r.execOne(ctx, query, args)
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Staff, int, error) {
	ds := pg.From("staff").Prepared(true)
	if f.Role != "" {
		ds = ds.Where(goqu.Ex{"role": f.Role})
	}
	if f.CenterID != nil {
		ds = ds.Where(goqu.Ex{"center_id": *f.CenterID})
	}
	if f.Active != nil {
		ds = ds.Where(goqu.Ex{"active": *f.Active})
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		ds = ds.Where(goqu.Or(goqu.C("name").ILike(like), goqu.C("email").ILike(like)))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count staff: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}

	query, args, err := ds.Select(staffCols...).Order(goqu.C("name").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list staff: %w", err)
	}
	var items []*Staff
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}
	return items, total, nil
}

func (r *repoPG) execOne(ctx context.Context, query string, args []interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
